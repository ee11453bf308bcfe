package item

import "time"

// Item is a single addressable resource: a backend-assigned identifier plus an
// arbitrary attribute payload. Identifiers are opaque to callers; the only
// guarantee attached to them is uniqueness within a collection.
type Item struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Clone returns a copy of the item with its own attribute map. Attribute
// values themselves are shared; callers must treat them as read-only.
func (it Item) Clone() Item {
	out := it
	out.Attributes = CloneAttributes(it.Attributes)
	return out
}

// CloneAttributes copies an attribute payload. Nil stays nil so round-trips
// preserve the distinction between "no attributes" and "empty attributes".
func CloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
