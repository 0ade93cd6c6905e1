package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stocklane/stocklane/internal/ledger"
	"github.com/stocklane/stocklane/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the reconciliation operations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountSales registers sale routes.
func (h *Handler) MountSales(r chi.Router) {
	r.Post("/", h.createSale)
	r.Put("/{id}", h.updateSale)
	r.Delete("/{id}", h.deleteChange)
}

// MountStock registers stock addition routes.
func (h *Handler) MountStock(r chi.Router) {
	r.Post("/", h.createStockAddition)
	r.Put("/{id}", h.updateStockAddition)
	r.Delete("/{id}", h.deleteChange)
}

// MountAdjustments registers adjustment routes. No update: adjustments are
// create/delete only.
func (h *Handler) MountAdjustments(r chi.Router) {
	r.Post("/", h.createAdjustment)
	r.Delete("/{id}", h.deleteAdjustment)
}

type stockChangeRequest struct {
	VariantID string          `json:"productVariantID" validate:"required"`
	Quantity  float64         `json:"productQuantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"productPrice"`
	AddedDate string          `json:"addedDate"`
}

type stockChangeUpdateRequest struct {
	Quantity  float64         `json:"productQuantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"productPrice"`
	AddedDate string          `json:"addedDate"`
}

type adjustmentRequest struct {
	VariantID string  `json:"productVariantId" validate:"required"`
	Quantity  float64 `json:"productQuantity" validate:"required"`
	Reason    string  `json:"reason"`
	Number    string  `json:"adjustmentNo"`
}

type recountRequest struct {
	Repair bool `json:"repair"`
}

// respondError translates reconciliation errors into RFC7807 responses.
func respondError(w http.ResponseWriter, err error) {
	var partial *PartialFailureError
	var ledgerWrite *LedgerWriteError
	switch {
	case errors.As(err, &partial):
		httpx.Problem(w, http.StatusBadGateway, "Partially Reconciled", partial.Error())
	case errors.As(err, &ledgerWrite):
		httpx.Problem(w, http.StatusBadGateway, "Ledger Write Failed", ledgerWrite.Error())
	case errors.Is(err, ErrNonPositiveQuantity),
		errors.Is(err, ErrZeroAdjustment),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrNegativeProjection):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateAdjustmentNo):
		httpx.Problem(w, http.StatusConflict, "Duplicate Adjustment", err.Error())
	case errors.Is(err, ErrVariantNotFound),
		errors.Is(err, ErrEventNotFound),
		errors.Is(err, ledger.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "an unexpected error occurred")
	}
}

func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req stockChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateSale(r.Context(), SaleInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		SoldAt:    parseDate(req.AddedDate),
	})
	if err != nil {
		h.logger.Warn("create sale", slog.String("variant_id", req.VariantID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) createStockAddition(w http.ResponseWriter, r *http.Request) {
	var req stockChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateStockAddition(r.Context(), StockAdditionInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		AddedAt:   parseDate(req.AddedDate),
	})
	if err != nil {
		h.logger.Warn("create stock addition", slog.String("variant_id", req.VariantID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req stockChangeUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdateSale(r.Context(), id, SaleInput{
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		SoldAt:    parseDate(req.AddedDate),
	})
	if err != nil {
		h.logger.Warn("update sale", slog.String("event_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) updateStockAddition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req stockChangeUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdateStockAddition(r.Context(), id, StockAdditionInput{
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		AddedAt:   parseDate(req.AddedDate),
	})
	if err != nil {
		h.logger.Warn("update stock addition", slog.String("event_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteChange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.DeleteStockChange(r.Context(), id)
	if err != nil {
		h.logger.Warn("delete stock change", slog.String("event_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateAdjustment(r.Context(), AdjustmentInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Number:    req.Number,
	})
	if err != nil {
		h.logger.Warn("create adjustment", slog.String("variant_id", req.VariantID), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteAdjustment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.DeleteAdjustment(r.Context(), id)
	if err != nil {
		h.logger.Warn("delete adjustment", slog.String("event_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// HandleRecount recomputes one variant from the full ledger.
func (h *Handler) HandleRecount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req recountRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	result, err := h.service.Recount(r.Context(), id, req.Repair)
	if err != nil {
		h.logger.Warn("recount", slog.String("variant_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
