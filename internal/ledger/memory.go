package ledger

import (
	"context"
	"strconv"
	"sync"
)

// Memory is an in-memory Store used by tests and local development. The
// error hooks let tests fault a single call to exercise partial-failure
// paths; they are nil in normal use.
type Memory struct {
	mu          sync.Mutex
	variants    map[string]Variant
	changes     map[string]StockChange
	adjustments map[string]Adjustment
	nextID      int

	// UpdateVariantErr, when set, is consulted before every variant update.
	UpdateVariantErr func(v Variant) error
	// CreateStockChangeErr, when set, is consulted before every event insert.
	CreateStockChangeErr func(c StockChange) error
	// DeleteStockChangeErr, when set, is consulted before every event delete.
	DeleteStockChangeErr func(id string) error
	// DeleteVariantErr, when set, is consulted before every variant delete.
	DeleteVariantErr func(id string) error
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		variants:    make(map[string]Variant),
		changes:     make(map[string]StockChange),
		adjustments: make(map[string]Adjustment),
	}
}

func (m *Memory) id(prefix string) string {
	m.nextID++
	return prefix + "-" + strconv.Itoa(m.nextID)
}

// ListVariants returns all variants.
func (m *Memory) ListVariants(ctx context.Context) ([]Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Variant, 0, len(m.variants))
	for _, v := range m.variants {
		out = append(out, v)
	}
	return out, nil
}

// GetVariant returns one variant by id.
func (m *Memory) GetVariant(ctx context.Context, id string) (Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return Variant{}, ErrNotFound
	}
	return v, nil
}

// CreateVariant stores a variant, assigning an id when absent.
func (m *Memory) CreateVariant(ctx context.Context, v Variant) (Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = m.id("var")
	}
	m.variants[v.ID] = v
	return v, nil
}

// UpdateVariant overwrites a variant.
func (m *Memory) UpdateVariant(ctx context.Context, v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateVariantErr != nil {
		if err := m.UpdateVariantErr(v); err != nil {
			return err
		}
	}
	if _, ok := m.variants[v.ID]; !ok {
		return ErrNotFound
	}
	m.variants[v.ID] = v
	return nil
}

// DeleteVariant removes a variant. Ledger history stays.
func (m *Memory) DeleteVariant(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteVariantErr != nil {
		if err := m.DeleteVariantErr(id); err != nil {
			return err
		}
	}
	if _, ok := m.variants[id]; !ok {
		return ErrNotFound
	}
	delete(m.variants, id)
	return nil
}

// ListStockChanges returns events, optionally filtered by variant id.
func (m *Memory) ListStockChanges(ctx context.Context, variantID string) ([]StockChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StockChange, 0, len(m.changes))
	for _, c := range m.changes {
		if variantID == "" || c.VariantID == variantID {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetStockChange returns one event by id.
func (m *Memory) GetStockChange(ctx context.Context, id string) (StockChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.changes[id]
	if !ok {
		return StockChange{}, ErrNotFound
	}
	return c, nil
}

// CreateStockChange stores an event, assigning an id when absent.
func (m *Memory) CreateStockChange(ctx context.Context, c StockChange) (StockChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateStockChangeErr != nil {
		if err := m.CreateStockChangeErr(c); err != nil {
			return StockChange{}, err
		}
	}
	if c.ID == "" {
		c.ID = m.id("chg")
	}
	m.changes[c.ID] = c
	return c, nil
}

// UpdateStockChange overwrites an event.
func (m *Memory) UpdateStockChange(ctx context.Context, c StockChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.changes[c.ID]; !ok {
		return ErrNotFound
	}
	m.changes[c.ID] = c
	return nil
}

// DeleteStockChange removes an event.
func (m *Memory) DeleteStockChange(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteStockChangeErr != nil {
		if err := m.DeleteStockChangeErr(id); err != nil {
			return err
		}
	}
	if _, ok := m.changes[id]; !ok {
		return ErrNotFound
	}
	delete(m.changes, id)
	return nil
}

// ListAdjustments returns adjustments, optionally filtered by variant id.
func (m *Memory) ListAdjustments(ctx context.Context, variantID string) ([]Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Adjustment, 0, len(m.adjustments))
	for _, a := range m.adjustments {
		if variantID == "" || a.VariantID == variantID {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetAdjustment returns one adjustment by id.
func (m *Memory) GetAdjustment(ctx context.Context, id string) (Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.adjustments[id]
	if !ok {
		return Adjustment{}, ErrNotFound
	}
	return a, nil
}

// CreateAdjustment stores an adjustment, assigning an id when absent.
func (m *Memory) CreateAdjustment(ctx context.Context, a Adjustment) (Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = m.id("adj")
	}
	a.Kind = a.DerivedKind()
	m.adjustments[a.ID] = a
	return a, nil
}

// DeleteAdjustment removes an adjustment.
func (m *Memory) DeleteAdjustment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adjustments[id]; !ok {
		return ErrNotFound
	}
	delete(m.adjustments, id)
	return nil
}
