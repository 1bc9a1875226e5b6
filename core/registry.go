package core

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"shadowbridge/core/types"
)

var ErrBadPrecision = errors.New("core: registry precision must be positive")

// StaticRegistry is a configuration-backed storeman registry: a global
// coin-to-wrapped price ratio, a default fee ratio, and optional per-group
// fee overrides. The production registry lives with the group admin off this
// system; this one serves deployments that pin its parameters in config.
type StaticRegistry struct {
	mu            sync.RWMutex
	coin2WanRatio *uint256.Int
	defaultTxFee  *uint256.Int
	precise       *uint256.Int
	overrides     map[types.Address]*uint256.Int
}

// NewStaticRegistry builds a registry from fixed ratios.
func NewStaticRegistry(coin2WanRatio, defaultTxFee, precise uint64) (*StaticRegistry, error) {
	if precise == 0 {
		return nil, ErrBadPrecision
	}
	return &StaticRegistry{
		coin2WanRatio: uint256.NewInt(coin2WanRatio),
		defaultTxFee:  uint256.NewInt(defaultTxFee),
		precise:       uint256.NewInt(precise),
		overrides:     make(map[types.Address]*uint256.Int),
	}, nil
}

// SetGroupFeeRatio pins a per-group fee ratio override.
func (r *StaticRegistry) SetGroupFeeRatio(group types.Address, ratio uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[group] = uint256.NewInt(ratio)
}

// Coin2WanRatio returns the global price ratio.
func (r *StaticRegistry) Coin2WanRatio() (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(uint256.Int).Set(r.coin2WanRatio), nil
}

// TxFeeRatio returns the group's fee ratio, falling back to the default.
func (r *StaticRegistry) TxFeeRatio(group types.Address) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ratio, ok := r.overrides[group]; ok {
		return new(uint256.Int).Set(ratio), nil
	}
	return new(uint256.Int).Set(r.defaultTxFee), nil
}

// Precise returns the fixed-point denominator shared by both ratios.
func (r *StaticRegistry) Precise() *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(uint256.Int).Set(r.precise)
}
