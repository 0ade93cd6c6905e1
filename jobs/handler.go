package jobs

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stocklane/stocklane/internal/importer"
	"github.com/stocklane/stocklane/internal/platform/httpx"
)

// Handler exposes queued imports over HTTP: submission and status lookup.
type Handler struct {
	logger *slog.Logger
	client *Client
	status *StatusStore
}

// NewHandler constructs an HTTP handler for queued imports.
func NewHandler(logger *slog.Logger, client *Client, status *StatusStore) *Handler {
	return &Handler{logger: logger, client: client, status: status}
}

// MountRoutes attaches queued import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{target}/queue", h.enqueue)
	r.Get("/queue/{id}", h.get)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	target, err := importer.ParseTarget(chi.URLParam(r, "target"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	file, err := importer.CSVFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	defer file.Close()

	rows, err := importer.ParseCSV(file)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	batch := Batch{
		ID:        uuid.NewString(),
		Target:    string(target),
		Status:    BatchQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.status.Put(r.Context(), batch); err != nil {
		h.logger.Error("record batch", slog.String("batch_id", batch.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "an unexpected error occurred")
		return
	}

	payload := ImportRunPayload{BatchID: batch.ID, Target: string(target)}
	payload.Rows = make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		payload.Rows = append(payload.Rows, map[string]string(row))
	}
	if _, err := h.client.EnqueueImportRun(r.Context(), payload); err != nil {
		h.logger.Error("enqueue import", slog.String("batch_id", batch.ID), slog.Any("error", err))
		if ferr := h.status.Finish(r.Context(), batch.ID, nil, err); ferr != nil {
			h.logger.Error("mark batch failed", slog.String("batch_id", batch.ID), slog.Any("error", ferr))
		}
		httpx.Problem(w, http.StatusBadGateway, "Queue Unavailable", "import batch could not be enqueued")
		return
	}
	httpx.JSON(w, http.StatusAccepted, batch)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	batch, err := h.status.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("batch status", slog.String("batch_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "an unexpected error occurred")
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}
