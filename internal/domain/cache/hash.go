package cache

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/healthscore/internal/domain/calendar"
)

// separator keeps adjacent parts from colliding ("ab"+"c" vs "a"+"bc").
const separator = "\x1f"

// Hasher builds a content hash from ordered parts.
type Hasher struct {
	d *xxhash.Digest
}

// NewHasher returns an empty Hasher.
func NewHasher() *Hasher { return &Hasher{d: xxhash.New()} }

// String adds s.
func (h *Hasher) String(s string) *Hasher {
	_, _ = h.d.WriteString(s)
	_, _ = h.d.WriteString(separator)
	return h
}

// Int adds an optional integer; nil and 0 hash differently.
func (h *Hasher) Int(v *int) *Hasher {
	if v == nil {
		return h.String("nil")
	}
	return h.String(strconv.Itoa(*v))
}

// Bool adds b.
func (h *Hasher) Bool(b bool) *Hasher { return h.String(strconv.FormatBool(b)) }

// Sum returns the hash as a hex string.
func (h *Hasher) Sum() string { return strconv.FormatUint(h.d.Sum64(), 16) }

// RequestKey hashes a date range, a grouping dimension and a client-id set.
// The id order does not matter.
func RequestKey(r calendar.Range, groupBy string, clientIDs []string) string {
	ids := slices.Clone(clientIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	r = r.Normalize()
	h := NewHasher().String(r.From.String()).String(r.To.String()).String(groupBy)
	for _, id := range ids {
		h.String(id)
	}
	return h.Sum()
}
