package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"seedtrace/internal/ledger"
	"seedtrace/internal/lifecycle"
	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/httputil"
	"seedtrace/pkg/requestcontext"
)

// Service defines the lot and plant operations exposed over HTTP.
type Service interface {
	CreateLot(ctx context.Context, req lifecycle.CreateLotRequest) (*lifecycle.Lot, error)
	GetLot(ctx context.Context, id string) (*lifecycle.Lot, error)
	UpdateLot(ctx context.Context, lotID string, update lifecycle.LotUpdate) (*lifecycle.Lot, error)
	Lineage(ctx context.Context, lotID string) ([]*lifecycle.Lot, error)
	ListPlantsByLot(ctx context.Context, lotID string) ([]*lifecycle.Plant, error)
	CreatePlant(ctx context.Context, req lifecycle.CreatePlantRequest) (*lifecycle.Plant, error)
	GetPlant(ctx context.Context, id string) (*lifecycle.Plant, error)
	UpdatePlantLifecycle(ctx context.Context, plantID string, stage domain.LifecycleStage, sc lifecycle.StageContext) (*lifecycle.Plant, error)
}

// Events records and reads ledger events for the track and detail routes.
type Events interface {
	RecordEvent(ctx context.Context, req ledger.RecordEventRequest) (*ledger.Event, error)
	History(ctx context.Context, subjectID string) ([]*ledger.Event, error)
}

// QRRenderer draws the PNG for a QR identity.
type QRRenderer interface {
	Render(ctx context.Context, qrID string, size int) ([]byte, error)
}

// Handler serves the lot and plant routes.
type Handler struct {
	service Service
	events  Events
	qr      QRRenderer
	logger  *slog.Logger
}

func New(service Service, events Events, qr QRRenderer, logger *slog.Logger) *Handler {
	return &Handler{service: service, events: events, qr: qr, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/lots", h.handleCreateLot)
	r.Get("/lots/{id}", h.handleGetLot)
	r.Patch("/lots/{id}", h.handleUpdateLot)
	r.Get("/lots/{id}/lineage", h.handleLineage)
	r.Get("/lots/{id}/plants", h.handleListPlants)
	r.Get("/lots/{id}/qr", h.handleLotQR)
	r.Post("/lots/{id}/track", h.handleTrackLot)

	r.Post("/plants", h.handleCreatePlant)
	r.Get("/plants/{id}", h.handleGetPlant)
	r.Patch("/plants/{id}/lifecycle", h.handleUpdateLifecycle)
	r.Get("/plants/{id}/qr", h.handlePlantQR)
	r.Post("/plants/{id}/track", h.handleTrackPlant)
}

type lotResponse struct {
	Lot     *lifecycle.Lot  `json:"lot"`
	Metrics *ledger.Metrics `json:"metrics"`
}

type plantResponse struct {
	Plant   *lifecycle.Plant `json:"plant"`
	Metrics *ledger.Metrics  `json:"metrics"`
}

type lineageResponse struct {
	LotID     string           `json:"lot_id"`
	Ancestors []*lifecycle.Lot `json:"ancestors"`
}

type lifecycleRequest struct {
	Stage     domain.LifecycleStage `json:"stage"`
	Operator  string                `json:"operator,omitempty"`
	Location  *domain.Location      `json:"location,omitempty"`
	Notes     string                `json:"notes,omitempty"`
	Timestamp time.Time             `json:"timestamp,omitempty"`
}

func (h *Handler) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[lifecycle.CreateLotRequest](r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	lot, err := h.service.CreateLot(ctx, *req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, lot)
}

func (h *Handler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot, err := h.service.GetLot(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	m, err := h.metricsFor(ctx, lot.ID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lotResponse{Lot: lot, Metrics: m})
}

func (h *Handler) handleUpdateLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	update, err := httputil.DecodeJSON[lifecycle.LotUpdate](r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	lot, err := h.service.UpdateLot(ctx, chi.URLParam(r, "id"), *update)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lot)
}

func (h *Handler) handleLineage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	ancestors, err := h.service.Lineage(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lineageResponse{LotID: id, Ancestors: ancestors})
}

func (h *Handler) handleListPlants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plants, err := h.service.ListPlantsByLot(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plants)
}

func (h *Handler) handleLotQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot, err := h.service.GetLot(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeQR(ctx, w, r, lot.QRID)
}

func (h *Handler) handleTrackLot(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, func(req *ledger.RecordEventRequest, id string) {
		req.LotID, req.PlantID = id, ""
	})
}

func (h *Handler) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[lifecycle.CreatePlantRequest](r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	plant, err := h.service.CreatePlant(ctx, *req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, plant)
}

func (h *Handler) handleGetPlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plant, err := h.service.GetPlant(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	m, err := h.metricsFor(ctx, plant.ID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plantResponse{Plant: plant, Metrics: m})
}

func (h *Handler) handleUpdateLifecycle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[lifecycleRequest](r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	plant, err := h.service.UpdatePlantLifecycle(ctx, chi.URLParam(r, "id"), req.Stage, lifecycle.StageContext{
		Operator:  req.Operator,
		Location:  req.Location,
		Notes:     req.Notes,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plant)
}

func (h *Handler) handlePlantQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plant, err := h.service.GetPlant(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.writeQR(ctx, w, r, plant.QRID)
}

func (h *Handler) handleTrackPlant(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, func(req *ledger.RecordEventRequest, id string) {
		req.PlantID, req.LotID = id, ""
	})
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request, bind func(*ledger.RecordEventRequest, string)) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[ledger.RecordEventRequest](r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	bind(req, chi.URLParam(r, "id"))
	event, err := h.events.RecordEvent(ctx, *req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) metricsFor(ctx context.Context, subjectID string) (*ledger.Metrics, error) {
	events, err := h.events.History(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	m := ledger.ComputeMetrics(events)
	return &m, nil
}

func (h *Handler) writeQR(ctx context.Context, w http.ResponseWriter, r *http.Request, qrID string) {
	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid size: "+v))
			return
		}
		size = n
	}
	png, err := h.qr.Render(ctx, qrID, size)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "lifecycle request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
