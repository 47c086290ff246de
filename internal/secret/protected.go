// Package secret provides a wrapper type for sensitive values.
//
// Protected values never leak through formatting: %v, %s, %#v and plain
// printing all produce a redaction marker instead of the inner value.
// The value itself stays accessible through Expose, so the protection is
// against accidental logging, not against a determined caller.
package secret

import "encoding/json"

// Redacted is what a Protected value formats as.
const Redacted = "[REDACTED]"

// Protected wraps a sensitive value so it cannot be printed by accident.
type Protected[T any] struct {
	inner T
}

// New wraps a value.
func New[T any](v T) Protected[T] {
	return Protected[T]{inner: v}
}

// Expose returns the inner value. Call sites of Expose are the audit
// surface for where secrets actually flow.
func (p Protected[T]) Expose() T {
	return p.inner
}

// Zeroize resets the inner value to its zero value. For byte slices the
// backing array is overwritten first so the secret does not linger in
// memory until collection.
func (p *Protected[T]) Zeroize() {
	if b, ok := any(p.inner).([]byte); ok {
		for i := range b {
			b[i] = 0
		}
	}
	var zero T
	p.inner = zero
}

// String implements fmt.Stringer.
func (p Protected[T]) String() string {
	return Redacted
}

// GoString implements fmt.GoStringer, covering the %#v verb.
func (p Protected[T]) GoString() string {
	return Redacted
}

// MarshalJSON serializes the inner value transparently. Persistence
// formats need the real value; redaction applies to human-facing output
// only.
func (p Protected[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.inner)
}

// UnmarshalJSON deserializes into the inner value.
func (p *Protected[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.inner)
}
