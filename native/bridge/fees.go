package bridge

import (
	"errors"

	"github.com/holiman/uint256"

	"shadowbridge/core/types"
	"shadowbridge/native/common"
	"shadowbridge/native/htlc"
)

var ErrBadRegistryRatio = errors.New("bridge: registry returned zero precision")

// OutboundFee computes the native-coin withdrawal fee for escrowing value
// toward a group:
//
//	value * coin2WanRatio * txFeeRatio / precise^2
//
// Division truncates, so fees round down.
func (e *Engine) OutboundFee(group types.Address, value *uint256.Int) (*uint256.Int, error) {
	if e == nil || e.registry == nil {
		return nil, ErrNotInitialized
	}
	coinRatio, err := e.registry.Coin2WanRatio()
	if err != nil {
		return nil, err
	}
	feeRatio, err := e.registry.TxFeeRatio(group)
	if err != nil {
		return nil, err
	}
	precise := e.registry.Precise()
	if !common.IsPositive(precise) {
		return nil, ErrBadRegistryRatio
	}
	scaled, err := common.Mul(value, coinRatio)
	if err != nil {
		return nil, err
	}
	scaled, err = common.Mul(scaled, feeRatio)
	if err != nil {
		return nil, err
	}
	denom, err := common.Mul(precise, precise)
	if err != nil {
		return nil, err
	}
	return common.Div(scaled, denom)
}

// splitRevokeFee divides an escrowed fee between the storeman and the
// initiator. The storeman share truncates toward zero; the initiator keeps
// the remainder, so the two shares always sum to the escrowed fee.
func splitRevokeFee(fee *uint256.Int, ratio uint64) (storeman, initiator *uint256.Int, err error) {
	share, err := common.Mul(fee, uint256.NewInt(ratio))
	if err != nil {
		return nil, nil, err
	}
	share, err = common.Div(share, uint256.NewInt(htlc.RatioPrecise))
	if err != nil {
		return nil, nil, err
	}
	rest, err := common.Sub(fee, share)
	if err != nil {
		return nil, nil, err
	}
	return share, rest, nil
}
