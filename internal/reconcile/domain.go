package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocklane/stocklane/internal/ledger"
)

// Validation errors. Nothing is written when one of these is returned.
var (
	// ErrNonPositiveQuantity rejects zero or negative sale/receipt magnitudes.
	ErrNonPositiveQuantity = errors.New("reconcile: quantity must be positive")
	// ErrZeroAdjustment rejects adjustments that would change nothing.
	ErrZeroAdjustment = errors.New("reconcile: adjustment quantity must not be zero")
	// ErrInsufficientStock rejects a sale larger than the on-hand quantity.
	ErrInsufficientStock = errors.New("reconcile: insufficient stock")
	// ErrNegativeProjection rejects an adjustment that would drive stock negative.
	ErrNegativeProjection = errors.New("reconcile: adjustment would drive stock negative")
	// ErrVariantNotFound indicates the referenced variant does not exist.
	ErrVariantNotFound = errors.New("reconcile: variant not found")
	// ErrEventNotFound indicates the referenced ledger event does not exist.
	ErrEventNotFound = errors.New("reconcile: ledger event not found")
	// ErrDuplicateAdjustmentNo indicates the adjustment number was already used.
	ErrDuplicateAdjustmentNo = errors.New("reconcile: adjustment number already used")
)

// LedgerWriteError wraps a failed write to the remote ledger. The operation
// aborted before any quantity write, so ledger and cache still agree.
type LedgerWriteError struct {
	Op  string
	Err error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("reconcile: %s: ledger write failed: %v", e.Op, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// PartialFailureError is the one state the engine cannot self-heal: the
// ledger write succeeded but the variant quantity write did not. The cache
// and the ledger now disagree until someone repairs the variant.
type PartialFailureError struct {
	Op        string
	EventID   string
	VariantID string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("reconcile: %s: event %s saved, but failed to update product quantity on variant %s: %v",
		e.Op, e.EventID, e.VariantID, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// SaleInput describes a new or edited sale.
type SaleInput struct {
	VariantID string
	Quantity  float64
	UnitPrice decimal.Decimal
	SoldAt    time.Time
}

// StockAdditionInput describes a new or edited stock receipt.
type StockAdditionInput struct {
	VariantID string
	Quantity  float64
	UnitPrice decimal.Decimal
	AddedAt   time.Time
}

// AdjustmentInput describes a manual correction. Quantity is signed.
type AdjustmentInput struct {
	VariantID string
	Quantity  float64
	Reason    string
	Number    string
}

// DeleteResult reports a ledger event delete. When the variant could not be
// resolved the delete still went through, reconciliation was skipped, and
// the divergence was journaled.
type DeleteResult struct {
	EventID               string  `json:"eventId"`
	VariantID             string  `json:"variantId"`
	NewQuantity           float64 `json:"newQuantity"`
	ReconciliationSkipped bool    `json:"reconciliationSkipped"`
}

// RecountResult reports a full ledger recomputation for one variant.
type RecountResult struct {
	VariantID   string  `json:"variantId"`
	Cached      float64 `json:"cachedQuantity"`
	Expected    float64 `json:"expectedQuantity"`
	Drift       float64 `json:"drift"`
	StockIn     float64 `json:"stockIn"`
	StockOut    float64 `json:"stockOut"`
	Adjustments float64 `json:"adjustments"`
	Events      int     `json:"events"`
	Repaired    bool    `json:"repaired"`
}

// JournalEntry records a divergence or notable reconciliation outcome for
// operators to act on.
type JournalEntry struct {
	Kind      string
	Op        string
	VariantID string
	EventID   string
	Delta     float64
	Detail    string
}

// Journal entry kinds.
const (
	JournalQuantityWriteFailed = "quantity_write_failed"
	JournalLookupMissing       = "lookup_missing"
	JournalDriftDetected       = "drift_detected"
	JournalDriftRepaired       = "drift_repaired"
	JournalOrphanedHistory     = "orphaned_history"
)

// JournalPort persists journal entries. Implemented by the drift package;
// recording never blocks an operation from completing.
type JournalPort interface {
	Record(ctx context.Context, entry JournalEntry) error
}

// IdempotencyPort guards keys that must be used at most once, such as
// adjustment numbers the remote store does not enforce.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// saleFromInput builds the wire event for a sale.
func saleFromInput(in SaleInput) ledger.StockChange {
	return ledger.StockChange{
		VariantID: in.VariantID,
		Kind:      ledger.ChangeStockOut,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		AddedAt:   in.SoldAt,
	}
}

// additionFromInput builds the wire event for a stock receipt.
func additionFromInput(in StockAdditionInput) ledger.StockChange {
	return ledger.StockChange{
		VariantID: in.VariantID,
		Kind:      ledger.ChangeStockIn,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		AddedAt:   in.AddedAt,
	}
}
