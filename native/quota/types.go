package quota

import (
	"github.com/holiman/uint256"

	"shadowbridge/native/common"
)

// Group is the per-storeman-group bookkeeping record. Presence of a group is
// encoded by a non-zero quota; a separate pending-unregistration flag lives in
// the state manager.
//
// The record keeps two algebraic invariants at all times:
//
//	quota >= receivable + debt
//	debt  >= payable
type Group struct {
	Quota      *uint256.Int
	Receivable *uint256.Int
	Debt       *uint256.Int
	Payable    *uint256.Int
}

// NewGroup creates a freshly registered group with the given quota and no
// in-flight value.
func NewGroup(quota *uint256.Int) *Group {
	return &Group{
		Quota:      common.Clone(quota),
		Receivable: uint256.NewInt(0),
		Debt:       uint256.NewInt(0),
		Payable:    uint256.NewInt(0),
	}
}

// Clone returns a deep copy of the group record.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	return &Group{
		Quota:      common.Clone(g.Quota),
		Receivable: common.Clone(g.Receivable),
		Debt:       common.Clone(g.Debt),
		Payable:    common.Clone(g.Payable),
	}
}

// InboundAvailable is quota - receivable - debt: the headroom for new inbound
// reservations.
func (g *Group) InboundAvailable() *uint256.Int {
	inFlight, err := common.Add(g.Receivable, g.Debt)
	if err != nil {
		return uint256.NewInt(0)
	}
	avail, err := common.Sub(g.Quota, inFlight)
	if err != nil {
		return uint256.NewInt(0)
	}
	return avail
}

// OutboundAvailable is debt - payable: the wrapped supply still free to be
// escrowed outbound.
func (g *Group) OutboundAvailable() *uint256.Int {
	avail, err := common.Sub(g.Debt, g.Payable)
	if err != nil {
		return uint256.NewInt(0)
	}
	return avail
}

// Drained reports whether the group has no in-flight or outstanding value,
// the precondition for completing unregistration.
func (g *Group) Drained() bool {
	return g.Receivable.IsZero() && g.Payable.IsZero() && g.Debt.IsZero()
}

// View is the six-column query shape returned for a group.
type View struct {
	Quota             *uint256.Int
	InboundAvailable  *uint256.Int
	OutboundAvailable *uint256.Int
	Receivable        *uint256.Int
	Payable           *uint256.Int
	Debt              *uint256.Int
}

// EmptyView returns the all-zero view reported for unregistered groups.
func EmptyView() View {
	return View{
		Quota:             uint256.NewInt(0),
		InboundAvailable:  uint256.NewInt(0),
		OutboundAvailable: uint256.NewInt(0),
		Receivable:        uint256.NewInt(0),
		Payable:           uint256.NewInt(0),
		Debt:              uint256.NewInt(0),
	}
}
