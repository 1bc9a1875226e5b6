package types

import "github.com/holiman/uint256"

// Call carries the per-invocation environment supplied by the host: the
// identity of the caller and any native coin attached to the call. Mutators
// across the settlement modules accept a Call instead of reading ambient
// globals so tests and alternative hosts can supply both explicitly.
type Call struct {
	Caller Address
	Value  *uint256.Int
}

// NewCall builds a call context with no attached value.
func NewCall(caller Address) Call {
	return Call{Caller: caller, Value: uint256.NewInt(0)}
}

// WithValue returns a copy of the call carrying the given attached value.
func (c Call) WithValue(v *uint256.Int) Call {
	if v == nil {
		v = uint256.NewInt(0)
	}
	c.Value = new(uint256.Int).Set(v)
	return c
}

// AttachedValue returns the native coin attached to the call, never nil.
func (c Call) AttachedValue() *uint256.Int {
	if c.Value == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(c.Value)
}
