package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stocklane/stocklane/internal/ledger"
)

// Service runs the reconciliation workflows: every ledger mutation is
// followed by a compensating variant-quantity write. The two writes are
// independent network calls with no transaction spanning them; the ledger
// write always goes first, and a failure after it is journaled as a partial
// failure rather than retried.
type Service struct {
	variants    ledger.VariantStore
	changes     ledger.StockChangeStore
	adjustments ledger.AdjustmentStore
	journal     JournalPort
	idempotency IdempotencyPort
	logger      *slog.Logger

	locks sync.Map // variant id -> *sync.Mutex
}

// NewService constructs Service. journal and idempotency may be nil.
func NewService(store ledger.Store, journal JournalPort, idempotency IdempotencyPort, logger *slog.Logger) *Service {
	return &Service{
		variants:    store,
		changes:     store,
		adjustments: store,
		journal:     journal,
		idempotency: idempotency,
		logger:      logger,
	}
}

// lockVariant serializes operations per variant within this process. The
// dashboard serializes per item; two imports or a late retry must not
// interleave a read-modify-write on the same variant.
func (s *Service) lockVariant(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// CreateSale records a stock-out event and debits the variant quantity.
func (s *Service) CreateSale(ctx context.Context, in SaleInput) (ledger.StockChange, error) {
	return s.createChange(ctx, "sale create", saleFromInput(in))
}

// CreateStockAddition records a stock-in event and credits the variant
// quantity.
func (s *Service) CreateStockAddition(ctx context.Context, in StockAdditionInput) (ledger.StockChange, error) {
	return s.createChange(ctx, "stock addition create", additionFromInput(in))
}

func (s *Service) createChange(ctx context.Context, op string, event ledger.StockChange) (ledger.StockChange, error) {
	if event.Quantity <= 0 {
		return ledger.StockChange{}, ErrNonPositiveQuantity
	}
	unlock := s.lockVariant(event.VariantID)
	defer unlock()

	variant, err := s.variants.GetVariant(ctx, event.VariantID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.StockChange{}, ErrVariantNotFound
	}
	if err != nil {
		return ledger.StockChange{}, err
	}
	effect := effectOf(event.Kind)
	if effect == EffectStockOut && event.Quantity > variant.Quantity {
		return ledger.StockChange{}, ErrInsufficientStock
	}
	if event.AddedAt.IsZero() {
		event.AddedAt = time.Now().UTC()
	}

	created, err := s.changes.CreateStockChange(ctx, event)
	if err != nil {
		return ledger.StockChange{}, &LedgerWriteError{Op: op, Err: err}
	}

	variant.Quantity = Apply(variant.Quantity, effect, created.Quantity)
	if err := s.variants.UpdateVariant(ctx, variant); err != nil {
		return created, s.partialFailure(ctx, op, created.ID, variant.ID, signedDelta(effect, created.Quantity), err)
	}
	return created, nil
}

// UpdateSale replaces a sale's magnitude and reconciles the variant with
// the edit delta.
func (s *Service) UpdateSale(ctx context.Context, id string, in SaleInput) (ledger.StockChange, error) {
	return s.updateChange(ctx, "sale update", id, saleFromInput(in))
}

// UpdateStockAddition replaces a receipt's magnitude and reconciles the
// variant with the edit delta.
func (s *Service) UpdateStockAddition(ctx context.Context, id string, in StockAdditionInput) (ledger.StockChange, error) {
	return s.updateChange(ctx, "stock addition update", id, additionFromInput(in))
}

func (s *Service) updateChange(ctx context.Context, op, id string, updated ledger.StockChange) (ledger.StockChange, error) {
	if updated.Quantity <= 0 {
		return ledger.StockChange{}, ErrNonPositiveQuantity
	}
	old, err := s.changes.GetStockChange(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.StockChange{}, ErrEventNotFound
	}
	if err != nil {
		return ledger.StockChange{}, err
	}
	// Edits never move an event between variants; the surrogate id
	// resolved at write time stays authoritative.
	updated.ID = old.ID
	updated.VariantID = old.VariantID
	updated.Kind = old.Kind
	if updated.AddedAt.IsZero() {
		updated.AddedAt = old.AddedAt
	}

	unlock := s.lockVariant(old.VariantID)
	defer unlock()

	variant, err := s.variants.GetVariant(ctx, old.VariantID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.StockChange{}, ErrVariantNotFound
	}
	if err != nil {
		return ledger.StockChange{}, err
	}
	effect := effectOf(old.Kind)
	projected := EditDelta(variant.Quantity, effect, old.Quantity, updated.Quantity)
	if effect == EffectStockOut && projected < 0 {
		return ledger.StockChange{}, ErrInsufficientStock
	}

	if err := s.changes.UpdateStockChange(ctx, updated); err != nil {
		return ledger.StockChange{}, &LedgerWriteError{Op: op, Err: err}
	}

	variant.Quantity = projected
	if err := s.variants.UpdateVariant(ctx, variant); err != nil {
		delta := signedDelta(effect, updated.Quantity) - signedDelta(effect, old.Quantity)
		return updated, s.partialFailure(ctx, op, updated.ID, variant.ID, delta, err)
	}
	return updated, nil
}

// DeleteStockChange deletes a sale or receipt and reverses its recorded
// effect on the variant. When the variant is gone the ledger delete still
// proceeds; the skipped reconciliation is journaled and surfaced.
func (s *Service) DeleteStockChange(ctx context.Context, id string) (DeleteResult, error) {
	op := "stock change delete"
	event, err := s.changes.GetStockChange(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return DeleteResult{}, ErrEventNotFound
	}
	if err != nil {
		return DeleteResult{}, err
	}

	unlock := s.lockVariant(event.VariantID)
	defer unlock()

	if err := s.changes.DeleteStockChange(ctx, id); err != nil {
		return DeleteResult{}, &LedgerWriteError{Op: op, Err: err}
	}

	result := DeleteResult{EventID: event.ID, VariantID: event.VariantID}
	effect := effectOf(event.Kind)

	variant, err := s.variants.GetVariant(ctx, event.VariantID)
	if errors.Is(err, ledger.ErrNotFound) {
		result.ReconciliationSkipped = true
		s.record(ctx, JournalEntry{
			Kind:      JournalLookupMissing,
			Op:        op,
			VariantID: event.VariantID,
			EventID:   event.ID,
			Delta:     -signedDelta(effect, event.Quantity),
			Detail:    "variant missing at delete; ledger record removed, quantity not reconciled",
		})
		return result, nil
	}
	if err != nil {
		return result, err
	}

	// Reverse using the magnitude recorded on the deleted event, never a
	// re-derived value.
	variant.Quantity = Reverse(variant.Quantity, effect, event.Quantity)
	if err := s.variants.UpdateVariant(ctx, variant); err != nil {
		return result, s.partialFailure(ctx, op, event.ID, variant.ID, -signedDelta(effect, event.Quantity), err)
	}
	result.NewQuantity = variant.Quantity
	return result, nil
}

// CreateAdjustment records a signed manual correction. A projected negative
// result is rejected before any write.
func (s *Service) CreateAdjustment(ctx context.Context, in AdjustmentInput) (ledger.Adjustment, error) {
	op := "adjustment create"
	if in.Quantity == 0 {
		return ledger.Adjustment{}, ErrZeroAdjustment
	}
	unlock := s.lockVariant(in.VariantID)
	defer unlock()

	variant, err := s.variants.GetVariant(ctx, in.VariantID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Adjustment{}, ErrVariantNotFound
	}
	if err != nil {
		return ledger.Adjustment{}, err
	}
	projected := Apply(variant.Quantity, EffectAdjustment, in.Quantity)
	if projected < 0 {
		return ledger.Adjustment{}, ErrNegativeProjection
	}

	idemKey := ""
	if s.idempotency != nil && in.Number != "" {
		idemKey = "adjustment:" + in.Number
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "reconcile"); err != nil {
			return ledger.Adjustment{}, fmt.Errorf("%w: %s", ErrDuplicateAdjustmentNo, in.Number)
		}
	}

	created, err := s.adjustments.CreateAdjustment(ctx, ledger.Adjustment{
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Number:    in.Number,
		AddedAt:   time.Now().UTC(),
	})
	if err != nil {
		if idemKey != "" {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return ledger.Adjustment{}, &LedgerWriteError{Op: op, Err: err}
	}

	variant.Quantity = projected
	if err := s.variants.UpdateVariant(ctx, variant); err != nil {
		return created, s.partialFailure(ctx, op, created.ID, variant.ID, in.Quantity, err)
	}
	return created, nil
}

// DeleteAdjustment removes an adjustment and reverses its signed effect.
func (s *Service) DeleteAdjustment(ctx context.Context, id string) (DeleteResult, error) {
	op := "adjustment delete"
	adj, err := s.adjustments.GetAdjustment(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return DeleteResult{}, ErrEventNotFound
	}
	if err != nil {
		return DeleteResult{}, err
	}

	unlock := s.lockVariant(adj.VariantID)
	defer unlock()

	if err := s.adjustments.DeleteAdjustment(ctx, id); err != nil {
		return DeleteResult{}, &LedgerWriteError{Op: op, Err: err}
	}

	result := DeleteResult{EventID: adj.ID, VariantID: adj.VariantID}
	variant, err := s.variants.GetVariant(ctx, adj.VariantID)
	if errors.Is(err, ledger.ErrNotFound) {
		result.ReconciliationSkipped = true
		s.record(ctx, JournalEntry{
			Kind:      JournalLookupMissing,
			Op:        op,
			VariantID: adj.VariantID,
			EventID:   adj.ID,
			Delta:     -adj.Quantity,
			Detail:    "variant missing at delete; ledger record removed, quantity not reconciled",
		})
		return result, nil
	}
	if err != nil {
		return result, err
	}

	variant.Quantity = Reverse(variant.Quantity, EffectAdjustment, adj.Quantity)
	if err := s.variants.UpdateVariant(ctx, variant); err != nil {
		return result, s.partialFailure(ctx, op, adj.ID, variant.ID, -adj.Quantity, err)
	}
	result.NewQuantity = variant.Quantity
	return result, nil
}

// Recount recomputes a variant's quantity from the full ledger and reports
// drift against the cached value. With repair set, the cached value is
// overwritten with the recomputed one. This is the manual recovery path for
// partial failures.
func (s *Service) Recount(ctx context.Context, variantID string, repair bool) (RecountResult, error) {
	unlock := s.lockVariant(variantID)
	defer unlock()

	variant, err := s.variants.GetVariant(ctx, variantID)
	if errors.Is(err, ledger.ErrNotFound) {
		return RecountResult{}, ErrVariantNotFound
	}
	if err != nil {
		return RecountResult{}, err
	}

	var (
		changes []ledger.StockChange
		adjs    []ledger.Adjustment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		changes, err = s.changes.ListStockChanges(gctx, variantID)
		return err
	})
	g.Go(func() error {
		var err error
		adjs, err = s.adjustments.ListAdjustments(gctx, variantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return RecountResult{}, err
	}

	result := RecountResult{VariantID: variantID, Cached: variant.Quantity}
	expected := variant.InitialQuantity
	for _, c := range changes {
		effect := effectOf(c.Kind)
		expected = Apply(expected, effect, c.Quantity)
		if effect == EffectStockIn {
			result.StockIn += c.Quantity
		} else {
			result.StockOut += c.Quantity
		}
	}
	for _, a := range adjs {
		expected = Apply(expected, EffectAdjustment, a.Quantity)
		result.Adjustments += a.Quantity
	}
	result.Events = len(changes) + len(adjs)
	result.Expected = expected
	result.Drift = variant.Quantity - expected

	if result.Drift != 0 {
		s.record(ctx, JournalEntry{
			Kind:      JournalDriftDetected,
			Op:        "recount",
			VariantID: variantID,
			Delta:     result.Drift,
			Detail:    fmt.Sprintf("cached %.2f, ledger expects %.2f", result.Cached, result.Expected),
		})
	}
	if repair && result.Drift != 0 {
		variant.Quantity = expected
		if err := s.variants.UpdateVariant(ctx, variant); err != nil {
			return result, fmt.Errorf("reconcile: recount repair: %w", err)
		}
		result.Repaired = true
		s.record(ctx, JournalEntry{
			Kind:      JournalDriftRepaired,
			Op:        "recount",
			VariantID: variantID,
			Delta:     -result.Drift,
			Detail:    fmt.Sprintf("cache rewritten to %.2f", expected),
		})
	}
	return result, nil
}

// partialFailure journals the divergence and wraps the error with the
// distinct alarming message the caller must surface.
func (s *Service) partialFailure(ctx context.Context, op, eventID, variantID string, delta float64, err error) error {
	s.record(ctx, JournalEntry{
		Kind:      JournalQuantityWriteFailed,
		Op:        op,
		VariantID: variantID,
		EventID:   eventID,
		Delta:     delta,
		Detail:    err.Error(),
	})
	return &PartialFailureError{Op: op, EventID: eventID, VariantID: variantID, Err: err}
}

func (s *Service) record(ctx context.Context, entry JournalEntry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal record failed",
			slog.String("kind", entry.Kind),
			slog.String("variant_id", entry.VariantID),
			slog.Any("error", err))
	}
}

// signedDelta converts a magnitude into its signed effect on the variant.
func signedDelta(effect Effect, magnitude float64) float64 {
	if effect == EffectStockOut {
		return -magnitude
	}
	return magnitude
}
