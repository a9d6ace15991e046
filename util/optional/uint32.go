// Package optional provides a small optional-value type used at API
// boundaries that would otherwise be tempted to overload an integer with a
// sentinel value.
package optional

// Uint32 represents a possibly-absent uint32. Call sites must check
// IsEmpty before reading Value. The bare zero value has IsEmpty false,
// which reads as present-zero, not absent — use NewEmptyUint32 (or check
// an accompanying error) rather than relying on a bare Uint32{}.
//
// This exists so that "no one-time pre-key id" is never confused with the
// signed sentinel -1: the pre-key id space is unsigned, so -1 cannot be
// represented, and any code that tried to use it as a sentinel would be a
// bug. Use Uint32 instead and test IsEmpty.
type Uint32 struct {
	Value   uint32
	IsEmpty bool
}

// NewUint32 wraps a present value.
func NewUint32(v uint32) Uint32 {
	return Uint32{Value: v}
}

// NewEmptyUint32 returns an absent value.
func NewEmptyUint32() Uint32 {
	return Uint32{IsEmpty: true}
}
