package events

import (
	"github.com/holiman/uint256"

	"shadowbridge/core/types"
)

const (
	TypeGroupRegistered   = "quota.group_registered"
	TypeGroupUnregistered = "quota.group_unregistered"
)

type GroupRegistered struct {
	Group      types.Address
	Quota      *uint256.Int
	TotalQuota *uint256.Int
}

func (GroupRegistered) EventType() string { return TypeGroupRegistered }

func (e GroupRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeGroupRegistered,
		Attributes: map[string]string{
			"group":      e.Group.Hex(),
			"quota":      formatAmount(e.Quota),
			"totalQuota": formatAmount(e.TotalQuota),
		},
	}
}

type GroupUnregistered struct {
	Group      types.Address
	Quota      *uint256.Int
	TotalQuota *uint256.Int
}

func (GroupUnregistered) EventType() string { return TypeGroupUnregistered }

func (e GroupUnregistered) Event() *types.Event {
	return &types.Event{
		Type: TypeGroupUnregistered,
		Attributes: map[string]string{
			"group":      e.Group.Hex(),
			"quota":      formatAmount(e.Quota),
			"totalQuota": formatAmount(e.TotalQuota),
		},
	}
}
