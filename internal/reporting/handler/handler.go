package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"seedtrace/internal/compliance"
	"seedtrace/internal/lifecycle"
	"seedtrace/internal/reporting"
	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
	"seedtrace/pkg/requestcontext"
)

// Service defines the read-side operations exposed over HTTP.
type Service interface {
	SearchLots(ctx context.Context, filter lifecycle.LotFilter, page, pageSize int) (*reporting.LotPage, error)
	TrackingHistory(ctx context.Context, subjectID string) (*reporting.TrackingHistory, error)
	CheckCompliance(ctx context.Context, subjectID string) (*compliance.Result, error)
	SummaryReport(ctx context.Context) (*reporting.Summary, error)
}

// Handler serves search, history, compliance and summary routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/lots", h.handleSearchLots)
	r.Get("/lots/{id}/history", h.handleHistory)
	r.Get("/plants/{id}/history", h.handleHistory)
	r.Get("/verify/{id}", h.handleVerify)
	r.Get("/reports/summary", h.handleSummary)
}

func (h *Handler) handleSearchLots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter, err := parseLotFilter(q)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	page, err := parseInt(q.Get("page"), 1)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	pageSize, err := parseInt(q.Get("page_size"), 0)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	result, err := h.service.SearchLots(ctx, filter, page, pageSize)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.service.TrackingHistory(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.CheckCompliance(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.service.SummaryReport(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// parseLotFilter reads species, location, status, type, date_from and
// date_to. A plain date in date_to includes that whole day.
func parseLotFilter(q url.Values) (lifecycle.LotFilter, error) {
	filter := lifecycle.LotFilter{
		Species:  q.Get("species"),
		Location: q.Get("location"),
		Status:   domain.LotStatus(q.Get("status")),
		Type:     domain.LotType(q.Get("type")),
	}
	if v := q.Get("date_from"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			return filter, err
		}
		filter.CreatedFrom = t
	}
	if v := q.Get("date_to"); v != "" {
		t, dateOnly, err := parseDate(v)
		if err != nil {
			return filter, err
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		filter.CreatedTo = t
	}
	return filter, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, false, dErrors.New(dErrors.CodeBadRequest, "invalid date: "+v)
	}
	return t, true, nil
}

func parseInt(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid number: "+v)
	}
	return n, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "reporting request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
