package tipping

import (
	"math/big"

	"github.com/holiman/uint256"
)

// splitAmount returns floor(amount*feePercent/100) and the remainder.
func splitAmount(amount *big.Int, feePercent uint64) (fee *big.Int, net *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(feePercent))
	fee.Quo(fee, big.NewInt(100))
	net = new(big.Int).Sub(amount, fee)
	return fee, net
}

func amountInRange(amount *big.Int) bool {
	return amount.Sign() >= 0 && amount.Cmp(maxTipAmount) <= 0
}

// addTotal adds amount to total using 256-bit arithmetic and reports overflow
// instead of wrapping.
func addTotal(total, amount *big.Int) (*big.Int, error) {
	current, overflow := uint256.FromBig(newBigInt(total))
	if overflow {
		return nil, ErrTotalOverflow
	}
	delta, overflow := uint256.FromBig(newBigInt(amount))
	if overflow {
		return nil, ErrTotalOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, delta)
	if overflow {
		return nil, ErrTotalOverflow
	}
	return sum.ToBig(), nil
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
