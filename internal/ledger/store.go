package ledger

import "context"

// VariantStore is the remote ProductVariant resource.
type VariantStore interface {
	ListVariants(ctx context.Context) ([]Variant, error)
	GetVariant(ctx context.Context, id string) (Variant, error)
	CreateVariant(ctx context.Context, v Variant) (Variant, error)
	UpdateVariant(ctx context.Context, v Variant) error
	DeleteVariant(ctx context.Context, id string) error
}

// StockChangeStore is the remote StockChange resource (sales and receipts).
type StockChangeStore interface {
	ListStockChanges(ctx context.Context, variantID string) ([]StockChange, error)
	GetStockChange(ctx context.Context, id string) (StockChange, error)
	CreateStockChange(ctx context.Context, c StockChange) (StockChange, error)
	UpdateStockChange(ctx context.Context, c StockChange) error
	DeleteStockChange(ctx context.Context, id string) error
}

// AdjustmentStore is the remote StockAdjustment resource. The store exposes
// no update: adjustments are create/delete only.
type AdjustmentStore interface {
	ListAdjustments(ctx context.Context, variantID string) ([]Adjustment, error)
	GetAdjustment(ctx context.Context, id string) (Adjustment, error)
	CreateAdjustment(ctx context.Context, a Adjustment) (Adjustment, error)
	DeleteAdjustment(ctx context.Context, id string) error
}

// Store aggregates the three remote resources. Each call is individually
// atomic; nothing spans two calls.
type Store interface {
	VariantStore
	StockChangeStore
	AdjustmentStore
}
