package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stocklane/stocklane/internal/ledger"
	"github.com/stocklane/stocklane/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the variant catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Delete("/by-name/{name}", h.deleteByName)
}

// respondError translates catalog errors into RFC7807 responses.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateVariant):
		httpx.Problem(w, http.StatusConflict, "Duplicate Variant", err.Error())
	case errors.Is(err, ErrVariantNotFound), errors.Is(err, ledger.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "an unexpected error occurred")
	}
}

type variantRequest struct {
	Name      string          `json:"productName" validate:"required"`
	Color     string          `json:"productColor"`
	Size      string          `json:"productSize"`
	Quantity  float64         `json:"actualProductQuantity" validate:"gte=0"`
	Threshold float64         `json:"thresholdProductQuantity" validate:"gte=0"`
	Unit      string          `json:"productUnit" validate:"required"`
	Price     decimal.Decimal `json:"productPrice"`
}

func (req variantRequest) toVariant() ledger.Variant {
	return ledger.Variant{
		Name:      req.Name,
		Color:     req.Color,
		Size:      req.Size,
		Quantity:  req.Quantity,
		Threshold: req.Threshold,
		Unit:      req.Unit,
		Price:     req.Price,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	variants, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list variants", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, variants)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variant, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, variant)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), req.toVariant())
	if err != nil {
		h.logger.Warn("create variant", slog.String("name", req.Name), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req variantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	variant := req.toVariant()
	variant.ID = id
	updated, err := h.service.Update(r.Context(), variant)
	if err != nil {
		h.logger.Warn("update variant", slog.String("variant_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) deleteByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := h.service.DeleteByName(r.Context(), name)
	if err != nil {
		h.logger.Warn("bulk delete variants", slog.String("name", name), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
