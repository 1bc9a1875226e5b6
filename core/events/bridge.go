package events

import (
	"encoding/hex"

	"github.com/holiman/uint256"

	"shadowbridge/core/types"
)

const (
	TypeInboundLock    = "bridge.inbound_lock"
	TypeInboundRefund  = "bridge.inbound_refund"
	TypeInboundRevoke  = "bridge.inbound_revoke"
	TypeOutboundLock   = "bridge.outbound_lock"
	TypeOutboundRefund = "bridge.outbound_refund"
	TypeOutboundRevoke = "bridge.outbound_revoke"
)

type InboundLock struct {
	Storeman  types.Address
	Recipient types.Address
	XHash     types.Hash
	Value     *uint256.Int
}

func (InboundLock) EventType() string { return TypeInboundLock }

func (e InboundLock) Event() *types.Event {
	return &types.Event{
		Type: TypeInboundLock,
		Attributes: map[string]string{
			"storeman":  e.Storeman.Hex(),
			"recipient": e.Recipient.Hex(),
			"xHash":     e.XHash.Hex(),
			"value":     formatAmount(e.Value),
		},
	}
}

type InboundRefund struct {
	Recipient types.Address
	Storeman  types.Address
	XHash     types.Hash
	X         types.Hash
}

func (InboundRefund) EventType() string { return TypeInboundRefund }

func (e InboundRefund) Event() *types.Event {
	return &types.Event{
		Type: TypeInboundRefund,
		Attributes: map[string]string{
			"recipient": e.Recipient.Hex(),
			"storeman":  e.Storeman.Hex(),
			"xHash":     e.XHash.Hex(),
			"x":         e.X.Hex(),
		},
	}
}

type InboundRevoke struct {
	Storeman types.Address
	XHash    types.Hash
}

func (InboundRevoke) EventType() string { return TypeInboundRevoke }

func (e InboundRevoke) Event() *types.Event {
	return &types.Event{
		Type: TypeInboundRevoke,
		Attributes: map[string]string{
			"storeman": e.Storeman.Hex(),
			"xHash":    e.XHash.Hex(),
		},
	}
}

type OutboundLock struct {
	Initiator types.Address
	Storeman  types.Address
	XHash     types.Hash
	Value     *uint256.Int
	BaseAddr  []byte
	Fee       *uint256.Int
}

func (OutboundLock) EventType() string { return TypeOutboundLock }

func (e OutboundLock) Event() *types.Event {
	return &types.Event{
		Type: TypeOutboundLock,
		Attributes: map[string]string{
			"initiator": e.Initiator.Hex(),
			"storeman":  e.Storeman.Hex(),
			"xHash":     e.XHash.Hex(),
			"value":     formatAmount(e.Value),
			"baseAddr":  "0x" + hex.EncodeToString(e.BaseAddr),
			"fee":       formatAmount(e.Fee),
		},
	}
}

type OutboundRefund struct {
	Storeman  types.Address
	Initiator types.Address
	XHash     types.Hash
	X         types.Hash
}

func (OutboundRefund) EventType() string { return TypeOutboundRefund }

func (e OutboundRefund) Event() *types.Event {
	return &types.Event{
		Type: TypeOutboundRefund,
		Attributes: map[string]string{
			"storeman":  e.Storeman.Hex(),
			"initiator": e.Initiator.Hex(),
			"xHash":     e.XHash.Hex(),
			"x":         e.X.Hex(),
		},
	}
}

type OutboundRevoke struct {
	Initiator types.Address
	XHash     types.Hash
}

func (OutboundRevoke) EventType() string { return TypeOutboundRevoke }

func (e OutboundRevoke) Event() *types.Event {
	return &types.Event{
		Type: TypeOutboundRevoke,
		Attributes: map[string]string{
			"initiator": e.Initiator.Hex(),
			"xHash":     e.XHash.Hex(),
		},
	}
}
