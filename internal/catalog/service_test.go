package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocklane/stocklane/internal/ledger"
	"github.com/stocklane/stocklane/internal/reconcile"
)

func newTestService(t *testing.T) (*Service, *ledger.Memory) {
	t.Helper()
	store := ledger.NewMemory()
	return NewService(store, nil, slog.Default()), store
}

func TestKeyFoldsCase(t *testing.T) {
	require.Equal(t, Key("Shirt", "Blue", "M"), Key(" shirt ", "BLUE", "m"))
	require.Equal(t, Key("Größe", "Weiß", "XL"), Key("GRÖSSE", "WEISS", "xl"))
	require.NotEqual(t, Key("Shirt", "Blue", "M"), Key("Shirt", "Blue", "L"))
}

func TestCreateRejectsDuplicateIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 10})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ledger.Variant{Name: "SHIRT", Color: "blue", Size: "m", Quantity: 5})
	require.ErrorIs(t, err, ErrDuplicateVariant)
}

func TestCreateRecordsInitialQuantity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 42})
	require.NoError(t, err)
	got, err := store.GetVariant(ctx, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 42.0, got.InitialQuantity, 0.0001)
}

func TestFindByIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 10})
	require.NoError(t, err)

	found, err := svc.FindByIdentity(ctx, "shirt", "BLUE", "m")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.FindByIdentity(ctx, "Ghost", "Red", "L")
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestDeleteByNameIsolation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 1})
	require.NoError(t, err)
	b, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Red", Size: "L", Quantity: 2})
	require.NoError(t, err)
	other, err := svc.Create(ctx, ledger.Variant{Name: "Hat", Color: "Black", Size: "S", Quantity: 3})
	require.NoError(t, err)

	boom := errors.New("store down")
	store.DeleteVariantErr = func(id string) error {
		if id == b.ID {
			return boom
		}
		return nil
	}

	result, err := svc.DeleteByName(ctx, "shirt")
	require.NoError(t, err)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)

	_, err = store.GetVariant(ctx, a.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = store.GetVariant(ctx, b.ID)
	require.NoError(t, err)
	_, err = store.GetVariant(ctx, other.ID)
	require.NoError(t, err)
}

func TestDeleteByNameUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.DeleteByName(context.Background(), "nothing")
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestSnapshotSequentialUpdates(t *testing.T) {
	snap := BuildSnapshot([]ledger.Variant{
		{ID: "v1", Name: "Shirt", Color: "Blue", Size: "M", Quantity: 10},
	})
	v, ok := snap.Find("SHIRT", "blue", "m")
	require.True(t, ok)
	v.Quantity = 4
	snap.Put(v)

	again, ok := snap.Find("Shirt", "Blue", "M")
	require.True(t, ok)
	require.InDelta(t, 4.0, again.Quantity, 0.0001)

	byID, ok := snap.FindByID("v1")
	require.True(t, ok)
	require.InDelta(t, 4.0, byID.Quantity, 0.0001)
}

type recordingJournal struct {
	entries []reconcile.JournalEntry
}

func (j *recordingJournal) Record(_ context.Context, entry reconcile.JournalEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

func TestDeleteJournalsOrphanedHistory(t *testing.T) {
	svc, store := newTestService(t)
	journal := &recordingJournal{}
	svc.WithJournal(journal)
	ctx := context.Background()

	created, err := store.CreateVariant(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 5})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.Len(t, journal.entries, 1)
	require.Equal(t, reconcile.JournalOrphanedHistory, journal.entries[0].Kind)
	require.Equal(t, created.ID, journal.entries[0].VariantID)

	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrVariantNotFound)
	require.Len(t, journal.entries, 1)
}

func TestUpdatePreservesRecountBaseline(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 100, Unit: "pcs"})
	require.NoError(t, err)
	require.InDelta(t, 100.0, created.InitialQuantity, 0.0001)
	require.False(t, created.CreatedAt.IsZero())

	updated, err := svc.Update(ctx, ledger.Variant{
		ID: created.ID, Name: "Shirt Premium", Color: "Blue", Size: "M",
		Quantity: 100, Threshold: 10, Unit: "pcs",
	})
	require.NoError(t, err)
	require.InDelta(t, 100.0, updated.InitialQuantity, 0.0001)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)

	stored, err := store.GetVariant(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Shirt Premium", stored.Name)
	require.InDelta(t, 10.0, stored.Threshold, 0.0001)
	require.InDelta(t, 100.0, stored.InitialQuantity, 0.0001)
	require.Equal(t, created.CreatedAt, stored.CreatedAt)

	_, err = svc.Update(ctx, ledger.Variant{ID: "ghost", Name: "Shirt", Unit: "pcs"})
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestRecountAfterUpdateReportsNoDrift(t *testing.T) {
	svc, store := newTestService(t)
	engine := reconcile.NewService(store, nil, nil, slog.Default())
	ctx := context.Background()

	created, err := svc.Create(ctx, ledger.Variant{Name: "Shirt", Color: "Blue", Size: "M", Quantity: 100, Unit: "pcs"})
	require.NoError(t, err)

	_, err = engine.CreateSale(ctx, reconcile.SaleInput{VariantID: created.ID, Quantity: 30})
	require.NoError(t, err)

	_, err = svc.Update(ctx, ledger.Variant{
		ID: created.ID, Name: "Shirt", Color: "Navy", Size: "M",
		Quantity: 70, Threshold: 5, Unit: "pcs",
	})
	require.NoError(t, err)

	result, err := engine.Recount(ctx, created.ID, false)
	require.NoError(t, err)
	require.InDelta(t, 70.0, result.Expected, 0.0001)
	require.InDelta(t, 70.0, result.Cached, 0.0001)
	require.Zero(t, result.Drift)
}
