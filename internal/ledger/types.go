package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ChangeKind discriminates stock change events on the wire.
type ChangeKind string

const (
	// ChangeStockIn represents a stock receipt.
	ChangeStockIn ChangeKind = "Stock In"
	// ChangeStockOut represents a sale.
	ChangeStockOut ChangeKind = "Stock Out"
)

// AdjustmentKind labels a manual correction. It is derived from the sign of
// the adjustment quantity; the signed quantity stays authoritative.
type AdjustmentKind string

const (
	// AdjustmentAddition labels a positive adjustment.
	AdjustmentAddition AdjustmentKind = "Addition"
	// AdjustmentReduction labels a negative adjustment.
	AdjustmentReduction AdjustmentKind = "Reduction"
)

// Variant is the cached-quantity resource kept by the remote store.
// Identity is the (name, color, size) triple; ID is the surrogate key.
type Variant struct {
	ID       string  `json:"productId"`
	Name     string  `json:"productName"`
	Color    string  `json:"productColor"`
	Size     string  `json:"productSize"`
	Quantity float64 `json:"actualProductQuantity"`
	// InitialQuantity is the opening stock recorded at creation. It never
	// changes afterwards; recounts use it as the ledger baseline.
	InitialQuantity float64         `json:"initialProductQuantity"`
	Threshold       float64         `json:"thresholdProductQuantity"`
	Unit            string          `json:"productUnit"`
	Price           decimal.Decimal `json:"productPrice"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// StockChange is one sale or stock receipt. Quantity is always the positive
// magnitude of the movement; the signed effect on the variant is -Quantity
// for Stock Out and +Quantity for Stock In.
type StockChange struct {
	ID        string          `json:"id"`
	VariantID string          `json:"productVariantID"`
	Kind      ChangeKind      `json:"stockChangeType"`
	Quantity  float64         `json:"productQuantity"`
	UnitPrice decimal.Decimal `json:"productPrice"`
	AddedAt   time.Time       `json:"addedDate"`
}

// Total returns the monetary value of the movement.
func (c StockChange) Total() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromFloat(c.Quantity))
}

// Adjustment is a manual correction. Quantity is signed: positive adds,
// negative reduces.
type Adjustment struct {
	ID        string         `json:"id"`
	VariantID string         `json:"productVariantId"`
	Quantity  float64        `json:"productQuantity"`
	Kind      AdjustmentKind `json:"adjustmentType"`
	Reason    string         `json:"reason"`
	Number    string         `json:"adjustmentNo"`
	AddedAt   time.Time      `json:"addedDate"`
}

// DerivedKind computes the label matching the signed quantity.
func (a Adjustment) DerivedKind() AdjustmentKind {
	if a.Quantity < 0 {
		return AdjustmentReduction
	}
	return AdjustmentAddition
}

// ErrNotFound indicates the remote store has no such resource.
var ErrNotFound = errors.New("ledger: resource not found")
