package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocklane/stocklane/internal/ledger"
)

type memoryJournal struct {
	entries []JournalEntry
}

func (j *memoryJournal) Record(ctx context.Context, entry JournalEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

type memoryIdem struct {
	keys map[string]bool
}

func (i *memoryIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if i.keys == nil {
		i.keys = make(map[string]bool)
	}
	if i.keys[key] {
		return errors.New("duplicate key")
	}
	i.keys[key] = true
	return nil
}

func (i *memoryIdem) Delete(ctx context.Context, key string) error {
	delete(i.keys, key)
	return nil
}

func newTestService(store *ledger.Memory) (*Service, *memoryJournal) {
	journal := &memoryJournal{}
	svc := NewService(store, journal, &memoryIdem{}, slog.Default())
	return svc, journal
}

func seedVariant(t *testing.T, store *ledger.Memory, qty float64) ledger.Variant {
	t.Helper()
	v, err := store.CreateVariant(context.Background(), ledger.Variant{
		Name: "Shirt", Color: "Blue", Size: "M",
		Quantity: qty, InitialQuantity: qty, Unit: "pcs",
	})
	require.NoError(t, err)
	return v
}

func TestSaleLifecycle(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 100)

	sale, err := svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 30})
	require.NoError(t, err)
	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 70.0, got.Quantity, 0.0001)

	_, err = svc.UpdateSale(ctx, sale.ID, SaleInput{Quantity: 10})
	require.NoError(t, err)
	got, err = store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 90.0, got.Quantity, 0.0001)

	res, err := svc.DeleteStockChange(ctx, sale.ID)
	require.NoError(t, err)
	require.False(t, res.ReconciliationSkipped)
	got, err = store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 100.0, got.Quantity, 0.0001)
}

func TestStockAdditionLifecycle(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 50)

	add, err := svc.CreateStockAddition(ctx, StockAdditionInput{VariantID: v.ID, Quantity: 20})
	require.NoError(t, err)
	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 70.0, got.Quantity, 0.0001)

	_, err = svc.UpdateStockAddition(ctx, add.ID, StockAdditionInput{Quantity: 25})
	require.NoError(t, err)
	got, err = store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 75.0, got.Quantity, 0.0001)
}

func TestAdjustmentLifecycle(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 10)

	adj, err := svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: -3, Reason: "Damaged", Number: "ADJ-001"})
	require.NoError(t, err)
	require.Equal(t, ledger.AdjustmentReduction, adj.Kind)
	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 7.0, got.Quantity, 0.0001)

	_, err = svc.DeleteAdjustment(ctx, adj.ID)
	require.NoError(t, err)
	got, err = store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, got.Quantity, 0.0001)
}

func TestConservationAcrossCreates(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 0)

	_, err := svc.CreateStockAddition(ctx, StockAdditionInput{VariantID: v.ID, Quantity: 40})
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 15})
	require.NoError(t, err)
	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: 5, Number: "ADJ-100"})
	require.NoError(t, err)
	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: -2, Number: "ADJ-101"})
	require.NoError(t, err)

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	// 0 + 40 - 15 + 5 - 2
	require.InDelta(t, 28.0, got.Quantity, 0.0001)

	recount, err := svc.Recount(ctx, v.ID, false)
	require.NoError(t, err)
	require.InDelta(t, 0.0, recount.Drift, 0.0001)
}

func TestSaleValidation(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 10)

	_, err := svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 0})
	require.ErrorIs(t, err, ErrNonPositiveQuantity)

	_, err = svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 15})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// Nothing was written on either rejection.
	changes, err := store.ListStockChanges(ctx, v.ID)
	require.NoError(t, err)
	require.Empty(t, changes)
	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, got.Quantity, 0.0001)
}

func TestAdjustmentValidation(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 2)

	_, err := svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: 0})
	require.ErrorIs(t, err, ErrZeroAdjustment)

	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: -5, Number: "ADJ-001"})
	require.ErrorIs(t, err, ErrNegativeProjection)

	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: -1, Number: "ADJ-002"})
	require.NoError(t, err)
	_, err = svc.CreateAdjustment(ctx, AdjustmentInput{VariantID: v.ID, Quantity: 1, Number: "ADJ-002"})
	require.ErrorIs(t, err, ErrDuplicateAdjustmentNo)
}

func TestLedgerWriteFailureAbortsCleanly(t *testing.T) {
	store := ledger.NewMemory()
	svc, journal := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 100)

	boom := errors.New("store down")
	store.CreateStockChangeErr = func(ledger.StockChange) error { return boom }

	_, err := svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 30})
	var lwe *LedgerWriteError
	require.ErrorAs(t, err, &lwe)

	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 100.0, got.Quantity, 0.0001)
	require.Empty(t, journal.entries)
}

func TestQuantityWriteFailureIsPartial(t *testing.T) {
	store := ledger.NewMemory()
	svc, journal := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 100)

	boom := errors.New("store down")
	store.UpdateVariantErr = func(ledger.Variant) error { return boom }

	_, err := svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 30})
	var pfe *PartialFailureError
	require.ErrorAs(t, err, &pfe)
	require.Contains(t, pfe.Error(), "failed to update product quantity")

	// Ledger holds the sale, cache still shows 100: the documented
	// divergence, captured in the journal.
	changes, err := store.ListStockChanges(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	got, err := store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 100.0, got.Quantity, 0.0001)
	require.Len(t, journal.entries, 1)
	require.Equal(t, JournalQuantityWriteFailed, journal.entries[0].Kind)
	require.InDelta(t, -30.0, journal.entries[0].Delta, 0.0001)

	// Recount sees the drift and repairs the cache.
	store.UpdateVariantErr = nil
	recount, err := svc.Recount(ctx, v.ID, true)
	require.NoError(t, err)
	require.InDelta(t, 30.0, recount.Drift, 0.0001)
	require.True(t, recount.Repaired)
	got, err = store.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	require.InDelta(t, 70.0, got.Quantity, 0.0001)
}

func TestDeleteWithMissingVariantProceeds(t *testing.T) {
	store := ledger.NewMemory()
	svc, journal := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 50)

	sale, err := svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 10})
	require.NoError(t, err)
	require.NoError(t, store.DeleteVariant(ctx, v.ID))

	res, err := svc.DeleteStockChange(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, res.ReconciliationSkipped)

	_, err = store.GetStockChange(ctx, sale.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
	require.Len(t, journal.entries, 1)
	require.Equal(t, JournalLookupMissing, journal.entries[0].Kind)
}

func TestUpdateSaleInsufficientStock(t *testing.T) {
	store := ledger.NewMemory()
	svc, _ := newTestService(store)
	ctx := context.Background()
	v := seedVariant(t, store, 40)

	sale, err := svc.CreateSale(ctx, SaleInput{VariantID: v.ID, Quantity: 30})
	require.NoError(t, err)

	// 10 on hand; raising the sale to 45 would project -5.
	_, err = svc.UpdateSale(ctx, sale.ID, SaleInput{Quantity: 45})
	require.ErrorIs(t, err, ErrInsufficientStock)

	got, err := store.GetStockChange(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 30.0, got.Quantity, 0.0001)
}
