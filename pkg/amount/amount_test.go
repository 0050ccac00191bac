package amount

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseToMinorUnits(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"0.15", 150000},
		{"1", 1000000},
		{"2.5", 2500000},
		{"0.000001", 1},
		{"123456.789012", 123456789012},
		{"1e-6", 1},
		{" 3.10 ", 3100000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, units, err := ParseToMinorUnits(tt.input, USDCDecimals)
			require.NoError(t, err)
			require.Equal(t, big.NewInt(tt.expected), units)
		})
	}
}

func TestParseRejects(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"abc",
		"0",
		"0.000000",
		"-1",
		"-0.5",
		"NaN",
		"Inf",
		"+Inf",
		"1.0000001",
		"0.0000001",
		"1,5",
		"0x10",
		"1e80",
		"1E2",
		"1e2000000",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input, USDCDecimals)
			require.Error(t, err)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{"0.15", "1", "0.000001", "999999999.999999", "42.42", "1000000000000"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			d, units, err := ParseToMinorUnits(input, USDCDecimals)
			require.NoError(t, err)

			back := FromMinorUnits(units, USDCDecimals)
			require.True(t, d.Equal(back), "%s != %s", d, back)

			again, err := ToMinorUnits(back, USDCDecimals)
			require.NoError(t, err)
			require.Equal(t, 0, units.Cmp(again))
		})
	}
}

func TestRoundTripExhaustiveSmallRange(t *testing.T) {
	for i := int64(1); i <= 5000; i++ {
		units := big.NewInt(i * 37)
		d := FromMinorUnits(units, USDCDecimals)

		parsed, back, err := ParseToMinorUnits(Format(d), USDCDecimals)
		require.NoError(t, err)
		require.True(t, parsed.Equal(d))
		require.Equal(t, 0, units.Cmp(back))
	}
}

func TestFromMinorUnits(t *testing.T) {
	require.Equal(t, "2.5", Format(FromMinorUnits(big.NewInt(2500000), USDCDecimals)))
	require.Equal(t, "0.15", Format(FromMinorUnits(big.NewInt(150000), USDCDecimals)))
	require.Equal(t, "0", Format(FromMinorUnits(nil, USDCDecimals)))
}

func TestToMinorUnitsRange(t *testing.T) {
	const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

	units, err := ToMinorUnits(decimal.RequireFromString(maxUint256), 0)
	require.NoError(t, err)
	require.Equal(t, maxUint256, units.String())
	require.Equal(t, MaxMinorUnitBits, units.BitLen())

	_, err = ToMinorUnits(decimal.RequireFromString(maxUint256).Add(decimal.NewFromInt(1)), 0)
	require.Error(t, err)

	// 73 whole digits no longer fit once shifted by six decimals
	_, _, err = ParseToMinorUnits(maxUint256[:73], USDCDecimals)
	require.Error(t, err)

	_, _, err = ParseToMinorUnits(maxUint256[:72], USDCDecimals)
	require.NoError(t, err)
}
