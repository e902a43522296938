package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"seedtrace/internal/audit"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
	"seedtrace/pkg/requestcontext"
)

// Service defines the audit operations exposed over HTTP.
type Service interface {
	Trail(ctx context.Context, entityType, entityID string, filter audit.TrailFilter) ([]*audit.Record, error)
	VerifyChain(ctx context.Context, startID, endID int64) (*audit.ChainVerification, error)
	Report(ctx context.Context, from, to time.Time) (*audit.Report, error)
}

// Handler serves the audit trail, chain verification and activity report.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/verify", h.handleVerify)
	r.Get("/audit/report", h.handleReport)
	r.Get("/audit/{entityType}/{entityId}", h.handleTrail)
}

type trailResponse struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Records    []*audit.Record `json:"records"`
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := audit.TrailFilter{
		Operation: audit.Operation(q.Get("operation")),
		ActorID:   q.Get("actor"),
	}
	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	entityType, entityID := chi.URLParam(r, "entityType"), chi.URLParam(r, "entityId")
	records, err := h.service.Trail(ctx, entityType, entityID, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trailResponse{EntityType: entityType, EntityID: entityID, Records: records})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, err := parseID(r.URL.Query().Get("start"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	end, err := parseID(r.URL.Query().Get("end"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	result, err := h.service.VerifyChain(ctx, start, end)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if !result.Valid {
		h.logger.WarnContext(ctx, "audit chain verification reported a break",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", result.BrokenAtID,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	report, err := h.service.Report(ctx, from, to)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "audit request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

// parseTime accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "invalid time: "+v)
	}
	return t, nil
}

func parseID(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid record id: "+v)
	}
	return id, nil
}
