package common

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrValueOverflow  = errors.New("checked math: overflow")
	ErrValueUnderflow = errors.New("checked math: underflow")
	ErrDivideByZero   = errors.New("checked math: divide by zero")
)

// Clone returns a defensive copy of v, mapping nil to zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}

// Add returns a+b or fails on 256-bit overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(Clone(a), Clone(b))
	if overflow {
		return nil, ErrValueOverflow
	}
	return sum, nil
}

// Sub returns a-b or fails when b exceeds a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(Clone(a), Clone(b))
	if underflow {
		return nil, ErrValueUnderflow
	}
	return diff, nil
}

// Mul returns a*b or fails on 256-bit overflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	prod, overflow := new(uint256.Int).MulOverflow(Clone(a), Clone(b))
	if overflow {
		return nil, ErrValueOverflow
	}
	return prod, nil
}

// Div returns the truncating quotient a/b and fails when b is zero.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b == nil || b.IsZero() {
		return nil, ErrDivideByZero
	}
	return new(uint256.Int).Div(Clone(a), b), nil
}

// IsPositive reports whether v is non-nil and strictly greater than zero.
func IsPositive(v *uint256.Int) bool {
	return v != nil && !v.IsZero()
}
