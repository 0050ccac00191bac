package relay

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSelectsProvider(t *testing.T) {
	r, err := New(Config{BaseURL: DefaultAxelarURL}, nil)
	require.NoError(t, err)
	require.IsType(t, &HTTPRelay{}, r)

	r, err = New(Config{Provider: "oneclick", JWTToken: "token"}, nil)
	require.NoError(t, err)
	require.IsType(t, &OneClickRelay{}, r)
	require.Implements(t, (*DepositNotifier)(nil), r)

	_, err = New(Config{Provider: "oneclick"}, nil)
	require.Error(t, err)

	_, err = New(Config{Provider: "wormhole"}, nil)
	require.Error(t, err)
}

func TestOneClickRejectsIncompleteRequests(t *testing.T) {
	r, err := NewOneClickRelay(Config{
		JWTToken:         "token",
		BaseURL:          "http://127.0.0.1:0",
		OriginAsset:      "nep141:eth-usdc",
		DestinationAsset: "nep141:sei-usdc",
	}, nil)
	require.NoError(t, err)

	full := DepositRequest{
		SourceChain:      "ethereum",
		DestinationChain: "sei",
		Recipient:        "sei1abc",
		Denom:            "uausdc",
		AmountHint:       big.NewInt(1_500_000),
		RefundTo:         "0x00000000000000000000000000000000DeaDBeef",
	}

	tests := []struct {
		name   string
		mutate func(*DepositRequest)
	}{
		{"no amount", func(r *DepositRequest) { r.AmountHint = nil }},
		{"zero amount", func(r *DepositRequest) { r.AmountHint = big.NewInt(0) }},
		{"no recipient", func(r *DepositRequest) { r.Recipient = "" }},
		{"no refund address", func(r *DepositRequest) { r.RefundTo = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := full
			tt.mutate(&req)
			_, err := r.GetDepositAddress(context.Background(), req)
			require.Error(t, err)
		})
	}
}
