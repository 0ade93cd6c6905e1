package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stocklane/stocklane/internal/ledger"
	"github.com/stocklane/stocklane/internal/reconcile"
)

// Service manages the product variant catalog against the remote store.
type Service struct {
	store   ledger.VariantStore
	cache   *Cache
	journal reconcile.JournalPort
	logger  *slog.Logger
}

// NewService constructs Service. cache may be nil.
func NewService(store ledger.VariantStore, cache *Cache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// WithJournal records an operator-visible note for every variant delete,
// since ledger history referencing the variant stays behind.
func (s *Service) WithJournal(journal reconcile.JournalPort) *Service {
	s.journal = journal
	return s
}

func (s *Service) noteOrphanedHistory(ctx context.Context, v ledger.Variant) {
	if s.journal == nil {
		return
	}
	entry := reconcile.JournalEntry{
		Kind:      reconcile.JournalOrphanedHistory,
		Op:        "variant_delete",
		VariantID: v.ID,
		Detail:    fmt.Sprintf("variant %q (%s/%s) deleted; ledger events referencing it remain", v.Name, v.Color, v.Size),
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal orphaned history", slog.String("variant_id", v.ID), slog.Any("error", err))
	}
}

// List returns all variants, served from cache when warm.
func (s *Service) List(ctx context.Context) ([]ledger.Variant, error) {
	if s.cache != nil {
		if variants, ok := s.cache.Get(ctx); ok {
			return variants, nil
		}
	}
	variants, err := s.store.ListVariants(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, variants)
	}
	return variants, nil
}

// Get returns one variant by surrogate id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Variant, error) {
	v, err := s.store.GetVariant(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Variant{}, ErrVariantNotFound
	}
	return v, err
}

// Create stores a new variant after checking the identity triple is free.
func (s *Service) Create(ctx context.Context, v ledger.Variant) (ledger.Variant, error) {
	if err := s.validate(v); err != nil {
		return ledger.Variant{}, err
	}
	existing, err := s.store.ListVariants(ctx)
	if err != nil {
		return ledger.Variant{}, err
	}
	key := Key(v.Name, v.Color, v.Size)
	for _, e := range existing {
		if Key(e.Name, e.Color, e.Size) == key {
			return ledger.Variant{}, ErrDuplicateVariant
		}
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	// Opening stock becomes the recount baseline; it never changes after
	// creation.
	v.InitialQuantity = v.Quantity
	created, err := s.store.CreateVariant(ctx, v)
	if err != nil {
		return ledger.Variant{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Update rewrites a variant's editable fields. Identity renames are allowed;
// ledger history keeps pointing at the surrogate id, never re-matched by name.
// The stored InitialQuantity and CreatedAt are carried forward untouched so
// recounts keep their baseline.
func (s *Service) Update(ctx context.Context, v ledger.Variant) (ledger.Variant, error) {
	if err := s.validate(v); err != nil {
		return ledger.Variant{}, err
	}
	if v.ID == "" {
		return ledger.Variant{}, fmt.Errorf("catalog: variant id is required")
	}
	current, err := s.store.GetVariant(ctx, v.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Variant{}, ErrVariantNotFound
	}
	if err != nil {
		return ledger.Variant{}, err
	}
	v.InitialQuantity = current.InitialQuantity
	v.CreatedAt = current.CreatedAt
	err = s.store.UpdateVariant(ctx, v)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Variant{}, ErrVariantNotFound
	}
	if err != nil {
		return ledger.Variant{}, err
	}
	s.invalidate(ctx)
	return v, nil
}

// Delete removes a single variant. Ledger history referencing it is left in
// place; the orphan-tolerant policy is deliberate.
func (s *Service) Delete(ctx context.Context, id string) error {
	v, err := s.store.GetVariant(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ErrVariantNotFound
	}
	if err != nil {
		return err
	}
	if err := s.store.DeleteVariant(ctx, id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrVariantNotFound
		}
		return err
	}
	s.noteOrphanedHistory(ctx, v)
	s.invalidate(ctx)
	return nil
}

// DeleteByName removes every variant sharing the product name. Each delete
// is independent: one failure is counted and the loop continues.
func (s *Service) DeleteByName(ctx context.Context, name string) (BulkDeleteResult, error) {
	if strings.TrimSpace(name) == "" {
		return BulkDeleteResult{}, fmt.Errorf("catalog: product name is required")
	}
	variants, err := s.store.ListVariants(ctx)
	if err != nil {
		return BulkDeleteResult{}, err
	}
	nameKey := NameKey(name)
	var result BulkDeleteResult
	matched := false
	for _, v := range variants {
		if NameKey(v.Name) != nameKey {
			continue
		}
		matched = true
		if err := s.store.DeleteVariant(ctx, v.ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", v.Color, v.Size, err))
			s.logger.Warn("bulk delete variant failed",
				slog.String("variant_id", v.ID),
				slog.String("name", v.Name),
				slog.Any("error", err))
			continue
		}
		result.Deleted++
		s.noteOrphanedHistory(ctx, v)
	}
	if !matched {
		return result, ErrVariantNotFound
	}
	s.invalidate(ctx)
	return result, nil
}

// FindByIdentity resolves a variant by its case-insensitive triple.
func (s *Service) FindByIdentity(ctx context.Context, name, color, size string) (ledger.Variant, error) {
	variants, err := s.store.ListVariants(ctx)
	if err != nil {
		return ledger.Variant{}, err
	}
	key := Key(name, color, size)
	for _, v := range variants {
		if Key(v.Name, v.Color, v.Size) == key {
			return v, nil
		}
	}
	return ledger.Variant{}, ErrVariantNotFound
}

// TakeSnapshot fetches the variant list once and indexes it for a bulk
// import run.
func (s *Service) TakeSnapshot(ctx context.Context) (*Snapshot, error) {
	variants, err := s.store.ListVariants(ctx)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(variants), nil
}

func (s *Service) validate(v ledger.Variant) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("catalog: product name is required")
	}
	if v.Quantity < 0 {
		return fmt.Errorf("catalog: quantity must not be negative")
	}
	if v.Threshold < 0 {
		return fmt.Errorf("catalog: threshold must not be negative")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
