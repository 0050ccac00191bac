// Package amount holds the fixed-point conversion used wherever a token
// amount crosses a chain boundary. Amounts are exact: no float64 is involved
// in either direction.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the precision of the bridged stablecoin on both chains.
const USDCDecimals int32 = 6

// MaxMinorUnitBits is the width of an ERC-20 amount (uint256).
const MaxMinorUnitBits = 256

// Parse validates a user supplied amount. It must be a plain decimal
// (no exponent), strictly positive and representable with at most
// `decimals` fractional digits.
func Parse(input string, decimals int32) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("invalid amount format %q: exponent notation is not accepted", input)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format %q", input)
	}

	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("amount must be greater than 0")
	}

	if !d.Equal(d.Truncate(decimals)) {
		return decimal.Zero, fmt.Errorf("amount %s has more than %d decimal places", d.String(), decimals)
	}

	return d, nil
}

// ToMinorUnits converts a decimal amount into integer minor units.
// e.g. 0.15 at 6 decimals -> 150000
// Results wider than a uint256 are rejected.
func ToMinorUnits(d decimal.Decimal, decimals int32) (*big.Int, error) {
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s is not representable at %d decimals", d.String(), decimals)
	}
	// 78 digits is the widest uint256; checked before building the big.Int
	if shifted.NumDigits()+int(shifted.Exponent()) > 78 {
		return nil, fmt.Errorf("amount %s exceeds the token's range", d.String())
	}
	units := shifted.BigInt()
	if units.BitLen() > MaxMinorUnitBits {
		return nil, fmt.Errorf("amount %s exceeds the token's range", d.String())
	}
	return units, nil
}

// FromMinorUnits converts integer minor units back into a decimal amount.
// e.g. 2500000 at 6 decimals -> 2.5
func FromMinorUnits(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}

// ParseToMinorUnits is Parse followed by ToMinorUnits.
func ParseToMinorUnits(input string, decimals int32) (decimal.Decimal, *big.Int, error) {
	d, err := Parse(input, decimals)
	if err != nil {
		return decimal.Zero, nil, err
	}
	units, err := ToMinorUnits(d, decimals)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return d, units, nil
}

// Format renders an amount without trailing zeros.
func Format(d decimal.Decimal) string {
	return d.String()
}
