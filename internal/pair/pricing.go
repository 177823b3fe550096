package pair

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// externalDecimals is the precision external (BTC) amounts are carried in:
// one whole BTC is 1e10 base units.
const externalDecimals = 10

// CalculateAmountIn converts an external amount into collateral base units
// under the strike price: amountIn = amountOut * strike * 10^(decimals-10).
// The result truncates toward zero.
func CalculateAmountIn(amountOut uint64, strike decimal.Decimal, decimals uint8) *big.Int {
	in := new(big.Int).SetUint64(amountOut)
	in.Mul(in, strike.Coefficient())
	return scalePow10(in, int(strike.Exponent())+int(decimals)-externalDecimals)
}

// CalculateAmountOut is the inverse of CalculateAmountIn: the external amount
// a collateral amount settles, truncating toward zero.
func CalculateAmountOut(amountIn *big.Int, strike decimal.Decimal, decimals uint8) uint64 {
	exp := int(strike.Exponent()) + int(decimals) - externalDecimals
	out := new(big.Int).Set(amountIn)
	if exp >= 0 {
		// Fold the scaling into one divisor so truncation happens once.
		denom := scalePow10(strike.Coefficient(), exp)
		return out.Quo(out, denom).Uint64()
	}
	out = scalePow10(out, -exp)
	out.Quo(out, strike.Coefficient())
	return out.Uint64()
}

// scalePow10 multiplies v by 10^exp in place, dividing (truncating) for
// negative exponents.
func scalePow10(v *big.Int, exp int) *big.Int {
	if exp == 0 {
		return v
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil)
	if exp > 0 {
		return v.Mul(v, pow)
	}
	return v.Quo(v, pow)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
