package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seedtrace/internal/identity"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
	"seedtrace/pkg/requestcontext"
)

// Service is the QR lookup surface used by the scanner endpoints.
type Service interface {
	Get(ctx context.Context, qrID string) (*identity.QRIdentity, error)
	Verify(ctx context.Context, qrID string) (*identity.VerifyResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/qr/{id}", h.handleGet)
	r.Get("/qr/{id}/verify", h.handleVerify)
	r.Post("/qr/scan", h.handleScan)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	qr, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, qr)
}

// handleVerify answers 200 for unknown or tampered ids; validity is in the body.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.Verify(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type scanRequest struct {
	Content string `json:"content"`
}

// handleScan verifies the raw text read from a QR image.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[scanRequest](r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	payload, err := identity.DecodePayload([]byte(req.Content))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	result, err := h.service.Verify(ctx, payload.QRID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if result.Valid && result.Data.EntityID != payload.EntityID {
		result = &identity.VerifyResult{Valid: false, Reason: "scanned payload does not match issued entity"}
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "qr request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
