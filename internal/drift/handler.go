package drift

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stocklane/stocklane/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	journal *Journal
}

func NewHandler(logger *slog.Logger, journal *Journal) *Handler {
	return &Handler{logger: logger, journal: journal}
}

// MountRoutes registers the reconciliation journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Kind:      r.URL.Query().Get("kind"),
		VariantID: r.URL.Query().Get("variantId"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	entries, err := h.journal.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list journal", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "an unexpected error occurred")
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}
