package x402

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitRequirement(recipients []SplitRecipient) PaymentRequirement {
	return PaymentRequirement{
		Scheme:  SchemeSplit,
		Network: NetworkBaseSepolia,
		Amount:  "100000",
		Asset:   USDCAddressBaseSepolia,
		PayTo:   recipients[0].Address,
		Extra: map[string]any{
			"recipients": recipients,
		},
	}
}

func TestSplitRecipients(t *testing.T) {
	recipients := []SplitRecipient{
		{Address: "0xA", Bps: 7000, Label: "author"},
		{Address: "0xB", Bps: 3000, Label: "platform"},
	}

	parsed, err := SplitRecipients(splitRequirement(recipients))
	require.NoError(t, err)
	assert.Equal(t, recipients, parsed)
}

func TestSplitRecipients_WrongScheme(t *testing.T) {
	req := splitRequirement([]SplitRecipient{{Address: "0xA", Bps: 10000}})
	req.Scheme = SchemeExact

	_, err := SplitRecipients(req)
	assert.ErrorIs(t, err, ErrInvalidRequirement)
}

func TestSplitRecipients_Missing(t *testing.T) {
	req := PaymentRequirement{Scheme: SchemeSplit}
	_, err := SplitRecipients(req)
	assert.ErrorIs(t, err, ErrInvalidRequirement)
}

func TestSplitRecipients_FromDecodedJSON(t *testing.T) {
	// Requirements that crossed the wire hold []any, not typed structs
	req := splitRequirement([]SplitRecipient{{Address: "0xA", Bps: 10000}})
	req.Extra = map[string]any{
		"recipients": []any{
			map[string]any{"address": "0xA", "bps": float64(6000)},
			map[string]any{"address": "0xB", "bps": float64(4000)},
		},
	}

	parsed, err := SplitRecipients(req)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, 6000, parsed[0].Bps)
}

func TestValidateSplitRecipients(t *testing.T) {
	tests := []struct {
		name       string
		recipients []SplitRecipient
		wantErr    bool
	}{
		{"empty", nil, true},
		{"single full", []SplitRecipient{{Address: "0xA", Bps: 10000}}, false},
		{"sums below", []SplitRecipient{{Address: "0xA", Bps: 4000}, {Address: "0xB", Bps: 4000}}, true},
		{"sums above", []SplitRecipient{{Address: "0xA", Bps: 6000}, {Address: "0xB", Bps: 6000}}, true},
		{"zero bps", []SplitRecipient{{Address: "0xA", Bps: 0}, {Address: "0xB", Bps: 10000}}, true},
		{"negative bps", []SplitRecipient{{Address: "0xA", Bps: -1}, {Address: "0xB", Bps: 10001}}, true},
		{"exact total", []SplitRecipient{{Address: "0xA", Bps: 1}, {Address: "0xB", Bps: 9999}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSplitRecipients(tt.recipients)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequirement)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitShares(t *testing.T) {
	recipients := []SplitRecipient{
		{Address: "0xA", Bps: 3333},
		{Address: "0xB", Bps: 3333},
		{Address: "0xC", Bps: 3334},
	}

	shares, err := SplitShares(recipients, big.NewInt(100))
	require.NoError(t, err)
	require.Len(t, shares, 3)

	// Floor shares are 33, 33, 33; the 1-unit remainder lands on the first
	assert.Equal(t, big.NewInt(34), shares[0])
	assert.Equal(t, big.NewInt(33), shares[1])
	assert.Equal(t, big.NewInt(33), shares[2])

	total := new(big.Int)
	for _, s := range shares {
		total.Add(total, s)
	}
	assert.Equal(t, big.NewInt(100), total)
}

func TestSplitShares_ExactDivision(t *testing.T) {
	recipients := []SplitRecipient{
		{Address: "0xA", Bps: 7000},
		{Address: "0xB", Bps: 3000},
	}

	shares, err := SplitShares(recipients, big.NewInt(100000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70000), shares[0])
	assert.Equal(t, big.NewInt(30000), shares[1])
}
