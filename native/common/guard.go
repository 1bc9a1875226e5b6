package common

import "errors"

var (
	ErrSystemHalted    = errors.New("system halted")
	ErrSystemNotHalted = errors.New("system not halted")
	ErrSystemKilled    = errors.New("system deactivated")
)

// HaltView exposes the global halt state maintained by the core object.
type HaltView interface {
	IsHalted() bool
	IsKilled() bool
}

// GuardNotHalted fails when the system is halted or deactivated. Every
// state-mutating operation across the settlement modules runs behind it.
func GuardNotHalted(v HaltView) error {
	if v == nil {
		return nil
	}
	if v.IsKilled() {
		return ErrSystemKilled
	}
	if v.IsHalted() {
		return ErrSystemHalted
	}
	return nil
}

// GuardHalted fails unless the system is halted. Admin setters require it so
// reconfiguration cannot race live settlement traffic.
func GuardHalted(v HaltView) error {
	if v == nil {
		return nil
	}
	if v.IsKilled() {
		return ErrSystemKilled
	}
	if !v.IsHalted() {
		return ErrSystemNotHalted
	}
	return nil
}
