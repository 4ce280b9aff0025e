package workspace

// Blob is an owned, type-erased value container. Networks read and write
// blobs through the workspace; the engine itself only ever inspects them to
// evaluate criteria outputs.
type Blob struct {
	value any
}

// Set replaces the blob's value.
func (b *Blob) Set(v any) {
	b.value = v
}

// Value returns the current value, nil if never set.
func (b *Blob) Value() any {
	return b.value
}

// IsEmpty reports whether the blob has never been set.
func (b *Blob) IsEmpty() bool {
	return b.value == nil
}

// Bool interprets the blob as a single boolean element: either a plain bool
// or a bool slice of length exactly one. The second return is false when the
// blob is empty or not boolean-shaped.
func (b *Blob) Bool() (bool, bool) {
	switch v := b.value.(type) {
	case bool:
		return v, true
	case []bool:
		if len(v) != 1 {
			return false, false
		}
		return v[0], true
	default:
		return false, false
	}
}
