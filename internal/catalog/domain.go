package catalog

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/stocklane/stocklane/internal/ledger"
)

// ErrVariantNotFound indicates no variant matches the requested identity.
var ErrVariantNotFound = errors.New("catalog: variant not found")

// ErrDuplicateVariant indicates the identity triple is already taken.
var ErrDuplicateVariant = errors.New("catalog: variant already exists")

// Key normalizes a (name, color, size) triple into a case-insensitive
// identity key. Unicode case folding, not ASCII lowercasing, so imports
// match names the way users typed them.
func Key(name, color, size string) string {
	fold := cases.Fold()
	parts := []string{
		fold.String(strings.TrimSpace(name)),
		fold.String(strings.TrimSpace(color)),
		fold.String(strings.TrimSpace(size)),
	}
	return strings.Join(parts, "\x1f")
}

// NameKey normalizes a product name alone, used by grouped deletes.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Snapshot is a point-in-time view of the variant list, fetched once per
// bulk import. It is updated in place as rows apply so later rows in the
// same batch observe earlier rows' writes. Not safe for concurrent use;
// imports are strictly sequential.
type Snapshot struct {
	byKey map[string]ledger.Variant
	byID  map[string]string
}

// BuildSnapshot indexes the given variants by identity.
func BuildSnapshot(variants []ledger.Variant) *Snapshot {
	s := &Snapshot{
		byKey: make(map[string]ledger.Variant, len(variants)),
		byID:  make(map[string]string, len(variants)),
	}
	for _, v := range variants {
		s.Put(v)
	}
	return s
}

// Find matches a triple case-insensitively.
func (s *Snapshot) Find(name, color, size string) (ledger.Variant, bool) {
	v, ok := s.byKey[Key(name, color, size)]
	return v, ok
}

// FindByID returns the variant with the given surrogate id.
func (s *Snapshot) FindByID(id string) (ledger.Variant, bool) {
	key, ok := s.byID[id]
	if !ok {
		return ledger.Variant{}, false
	}
	v, ok := s.byKey[key]
	return v, ok
}

// Put inserts or replaces a variant in the snapshot.
func (s *Snapshot) Put(v ledger.Variant) {
	key := Key(v.Name, v.Color, v.Size)
	s.byKey[key] = v
	if v.ID != "" {
		s.byID[v.ID] = key
	}
}

// Len reports the number of variants in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.byKey)
}

// BulkDeleteResult reports a grouped delete. Per-variant failures do not
// stop the remaining deletes.
type BulkDeleteResult struct {
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
