package importer

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocklane/stocklane/internal/catalog"
	"github.com/stocklane/stocklane/internal/ledger"
	"github.com/stocklane/stocklane/internal/reconcile"
)

func newTestReconciler(t *testing.T) (*Reconciler, *ledger.Memory) {
	t.Helper()
	store := ledger.NewMemory()
	logger := slog.Default()
	cat := catalog.NewService(store, nil, logger)
	engine := reconcile.NewService(store, nil, nil, logger)
	return NewReconciler(cat, engine, logger), store
}

func seed(t *testing.T, store *ledger.Memory, name, color, size string, qty float64) ledger.Variant {
	t.Helper()
	v, err := store.CreateVariant(context.Background(), ledger.Variant{
		Name: name, Color: color, Size: size,
		Quantity: qty, InitialQuantity: qty, Unit: "pcs",
	})
	require.NoError(t, err)
	return v
}

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"productName,productColor,productSize,quantitySold",
		"Shirt, Blue ,M,5",
		",,,",
		"Hat,Red,S,2",
	}, "\n")
	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Blue", rows[0]["productColor"])
	require.Equal(t, "2", rows[1]["quantitySold"])
}

func TestSalesImportRowIsolation(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()
	v := seed(t, store, "Shirt", "Blue", "M", 100)

	rows := []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "quantitySold": "10"},
		{"productName": "Ghost", "productColor": "Red", "productSize": "L", "quantitySold": "5"},
		{"productName": "Shirt", "productColor": "blue", "productSize": "m", "quantitySold": "20"},
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M"},
	}
	result, err := rec.Run(ctx, TargetSales, rows)
	require.NoError(t, err)
	require.Equal(t, 4, result.Total)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 2, result.Failed)
	require.Equal(t, result.Total, result.Imported+result.Failed)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[0].Message, "product not found")
	require.Contains(t, result.Errors[1].Message, "missing required field")

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 70.0, got.Quantity, 0.0001)
}

func TestSalesImportInsufficientStockRowRejected(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()
	v := seed(t, store, "Shirt", "Blue", "M", 10)

	result, err := rec.Run(ctx, TargetSales, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "quantitySold": "15"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 0, result.Imported)
	require.Contains(t, result.Errors[0].Message, "insufficient stock")

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, got.Quantity, 0.0001)
	changes, err := store.ListStockChanges(ctx, v.ID)
	require.NoError(t, err)
	require.Empty(t, changes)
}

func TestSequentialVisibilityWithinBatch(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()
	v := seed(t, store, "Shirt", "Blue", "M", 10)

	// Row 2 only fits because row 1's receipt is already visible.
	result, err := rec.Run(ctx, TargetStock, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "quantityAdded": "5"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)

	saleResult, err := rec.Run(ctx, TargetSales, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "quantitySold": "12"},
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "quantitySold": "3"},
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "quantitySold": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, saleResult.Imported)
	require.Equal(t, 0, saleResult.Failed)

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.0, got.Quantity, 0.0001)
}

func TestAdjustmentImportTrustsStatedBaseline(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()
	v := seed(t, store, "Shirt", "Blue", "M", 20)

	result, err := rec.Run(ctx, TargetAdjustments, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "currentQuantity": "20", "adjustedQuantity": "18", "reason": "Damaged"},
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "currentQuantity": "18", "adjustedQuantity": "20", "reason": "Found"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 0, result.Failed)

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 20.0, got.Quantity, 0.0001)

	adjs, err := store.ListAdjustments(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 2)
}

func TestAdjustmentImportNoOpRowSucceeds(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()
	v := seed(t, store, "Shirt", "Blue", "M", 20)

	result, err := rec.Run(ctx, TargetAdjustments, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "currentQuantity": "20", "adjustedQuantity": "20", "reason": "Recount"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 0, result.Failed)

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 20.0, got.Quantity, 0.0001)

	adjs, err := store.ListAdjustments(ctx, v.ID)
	require.NoError(t, err)
	require.Empty(t, adjs)
}

func TestAdjustmentImportNegativeGuard(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()
	v := seed(t, store, "Shirt", "Blue", "M", 3)

	result, err := rec.Run(ctx, TargetAdjustments, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "currentQuantity": "10", "adjustedQuantity": "2"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, result.Errors[0].Message, "negative")

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 3.0, got.Quantity, 0.0001)
}

func TestProductsImportCreatesVariants(t *testing.T) {
	rec, store := newTestReconciler(t)
	ctx := context.Background()

	result, err := rec.Run(ctx, TargetProducts, []Row{
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "actualProductQuantity": "40", "productUnit": "pcs", "productPrice": "19.90"},
		{"productName": "Shirt", "productColor": "Blue", "productSize": "M", "actualProductQuantity": "10", "productUnit": "pcs"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, result.Errors[0].Message, "already exists")

	variants, err := store.ListVariants(ctx)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	require.InDelta(t, 40.0, variants[0].Quantity, 0.0001)
	require.InDelta(t, 40.0, variants[0].InitialQuantity, 0.0001)
}
