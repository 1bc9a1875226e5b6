package events

import (
	"github.com/holiman/uint256"

	"shadowbridge/core/types"
)

const (
	TypeTokenMinted = "token.minted"
	TypeTokenBurnt  = "token.burnt"
	TypeTokenLocked = "token.locked"
	TypeManagerSet  = "token.manager_set"
)

type TokenMinted struct {
	Account     types.Address
	Value       *uint256.Int
	TotalSupply *uint256.Int
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenMinted,
		Attributes: map[string]string{
			"account":     e.Account.Hex(),
			"value":       formatAmount(e.Value),
			"totalSupply": formatAmount(e.TotalSupply),
		},
	}
}

type TokenBurnt struct {
	Account     types.Address
	Value       *uint256.Int
	TotalSupply *uint256.Int
}

func (TokenBurnt) EventType() string { return TypeTokenBurnt }

func (e TokenBurnt) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenBurnt,
		Attributes: map[string]string{
			"account":     e.Account.Hex(),
			"value":       formatAmount(e.Value),
			"totalSupply": formatAmount(e.TotalSupply),
		},
	}
}

type TokenLocked struct {
	From  types.Address
	To    types.Address
	Value *uint256.Int
}

func (TokenLocked) EventType() string { return TypeTokenLocked }

func (e TokenLocked) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenLocked,
		Attributes: map[string]string{
			"from":  e.From.Hex(),
			"to":    e.To.Hex(),
			"value": formatAmount(e.Value),
		},
	}
}

type ManagerSet struct {
	Manager types.Address
}

func (ManagerSet) EventType() string { return TypeManagerSet }

func (e ManagerSet) Event() *types.Event {
	return &types.Event{
		Type: TypeManagerSet,
		Attributes: map[string]string{
			"manager": e.Manager.Hex(),
		},
	}
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
