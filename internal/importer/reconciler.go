package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/stocklane/stocklane/internal/catalog"
	"github.com/stocklane/stocklane/internal/ledger"
	"github.com/stocklane/stocklane/internal/reconcile"
)

// Result reports a finished batch. Imported plus Failed always equals the
// number of rows; a failing row never rolls back the rows before it.
type Result struct {
	Target   Target     `json:"target"`
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
}

// RowError ties a failure message to its 1-based CSV data row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Reconciler replays the single-item reconciliation workflow per CSV row.
// Rows run strictly sequentially so each row's view of "current quantity"
// includes every earlier row's writes.
type Reconciler struct {
	catalog  *catalog.Service
	engine   *reconcile.Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(cat *catalog.Service, engine *reconcile.Service, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		catalog:  cat,
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
	}
}

// Run imports a batch. The product list is fetched once at the start; rows
// after a variant-creating or quantity-changing row see its effect through
// the shared snapshot.
func (r *Reconciler) Run(ctx context.Context, target Target, rows []Row) (Result, error) {
	snapshot, err := r.catalog.TakeSnapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("importer: load product list: %w", err)
	}

	result := Result{Target: target, Total: len(rows)}
	for i, row := range rows {
		rowNum := i + 1
		if err := r.applyRow(ctx, target, snapshot, row); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			r.logger.Warn("import row failed",
				slog.String("target", string(target)),
				slog.Int("row", rowNum),
				slog.Any("error", err))
			continue
		}
		result.Imported++
	}
	r.logger.Info("import finished",
		slog.String("target", string(target)),
		slog.Int("imported", result.Imported),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (r *Reconciler) applyRow(ctx context.Context, target Target, snapshot *catalog.Snapshot, row Row) error {
	if err := checkRequired(target, row); err != nil {
		return err
	}
	switch target {
	case TargetProducts:
		return r.applyProduct(ctx, snapshot, row)
	case TargetSales:
		return r.applySale(ctx, snapshot, row)
	case TargetStock:
		return r.applyStock(ctx, snapshot, row)
	case TargetAdjustments:
		return r.applyAdjustment(ctx, snapshot, row)
	}
	return fmt.Errorf("unknown target %q", target)
}

func (r *Reconciler) applyProduct(ctx context.Context, snapshot *catalog.Snapshot, row Row) error {
	parsed, err := decodeProductRow(r.validate, row)
	if err != nil {
		return err
	}
	if _, ok := snapshot.Find(parsed.Name, parsed.Color, parsed.Size); ok {
		return fmt.Errorf("variant already exists")
	}
	created, err := r.catalog.Create(ctx, ledger.Variant{
		Name:      parsed.Name,
		Color:     parsed.Color,
		Size:      parsed.Size,
		Quantity:  parsed.Quantity,
		Threshold: parsed.Threshold,
		Unit:      parsed.Unit,
		Price:     parsed.Price,
	})
	if err != nil {
		return err
	}
	snapshot.Put(created)
	return nil
}

func (r *Reconciler) applySale(ctx context.Context, snapshot *catalog.Snapshot, row Row) error {
	parsed, err := decodeSaleRow(r.validate, row)
	if err != nil {
		return err
	}
	variant, ok := snapshot.Find(parsed.Name, parsed.Color, parsed.Size)
	if !ok {
		return fmt.Errorf("product not found")
	}
	if parsed.Quantity > variant.Quantity {
		return fmt.Errorf("insufficient stock: %v on hand, %v requested", variant.Quantity, parsed.Quantity)
	}
	if _, err := r.engine.CreateSale(ctx, reconcile.SaleInput{
		VariantID: variant.ID,
		Quantity:  parsed.Quantity,
		UnitPrice: parsed.Price,
		SoldAt:    parsed.SoldAt,
	}); err != nil {
		return err
	}
	variant.Quantity = reconcile.Apply(variant.Quantity, reconcile.EffectStockOut, parsed.Quantity)
	snapshot.Put(variant)
	return nil
}

func (r *Reconciler) applyStock(ctx context.Context, snapshot *catalog.Snapshot, row Row) error {
	parsed, err := decodeStockRow(r.validate, row)
	if err != nil {
		return err
	}
	variant, ok := snapshot.Find(parsed.Name, parsed.Color, parsed.Size)
	if !ok {
		return fmt.Errorf("product not found")
	}
	if _, err := r.engine.CreateStockAddition(ctx, reconcile.StockAdditionInput{
		VariantID: variant.ID,
		Quantity:  parsed.Quantity,
		UnitPrice: parsed.Price,
		AddedAt:   parsed.AddedAt,
	}); err != nil {
		return err
	}
	variant.Quantity = reconcile.Apply(variant.Quantity, reconcile.EffectStockIn, parsed.Quantity)
	snapshot.Put(variant)
	return nil
}

func (r *Reconciler) applyAdjustment(ctx context.Context, snapshot *catalog.Snapshot, row Row) error {
	parsed, err := decodeAdjustmentRow(r.validate, row)
	if err != nil {
		return err
	}
	variant, ok := snapshot.Find(parsed.Name, parsed.Color, parsed.Size)
	if !ok {
		return fmt.Errorf("product not found")
	}
	// The delta is taken from the CSV's stated baseline, not live state:
	// the file is treated as a physical count. The live quantity is still
	// guarded so the batch cannot drive stock negative.
	delta := parsed.Adjusted - parsed.Current
	if parsed.Current != variant.Quantity {
		r.logger.Warn("adjustment baseline differs from live quantity",
			slog.String("variant_id", variant.ID),
			slog.Float64("stated", parsed.Current),
			slog.Float64("live", variant.Quantity))
	}
	if delta == 0 {
		// The stated count already matches: nothing to record. The row
		// still counts as imported.
		return nil
	}
	if variant.Quantity+delta < 0 {
		return fmt.Errorf("adjustment would drive stock negative: %v on hand, delta %v", variant.Quantity, delta)
	}
	if _, err := r.engine.CreateAdjustment(ctx, reconcile.AdjustmentInput{
		VariantID: variant.ID,
		Quantity:  delta,
		Reason:    parsed.Reason,
		Number:    parsed.Number,
	}); err != nil {
		return err
	}
	variant.Quantity = reconcile.Apply(variant.Quantity, reconcile.EffectAdjustment, delta)
	snapshot.Put(variant)
	return nil
}
