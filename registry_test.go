package x402

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSchemeClient struct {
	name string
}

func (s *stubSchemeClient) CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error) {
	return &PaymentPayload{X402Version: X402Version, Accepted: req}, nil
}

func TestSchemeRegistry_ExactBeatsWildcard(t *testing.T) {
	registry := NewSchemeRegistry()
	wildcard := &stubSchemeClient{name: "wildcard"}
	exact := &stubSchemeClient{name: "exact"}

	require.NoError(t, registry.Register("eip155:*", wildcard))
	require.NoError(t, registry.Register(NetworkBaseSepolia, exact))

	got, err := registry.Lookup(NetworkBaseSepolia)
	require.NoError(t, err)
	assert.Same(t, exact, got)

	got, err = registry.Lookup(NetworkBase)
	require.NoError(t, err)
	assert.Same(t, wildcard, got)
}

func TestSchemeRegistry_LongestPrefixWins(t *testing.T) {
	registry := NewSchemeRegistry()
	broad := &stubSchemeClient{name: "broad"}
	narrow := &stubSchemeClient{name: "narrow"}

	require.NoError(t, registry.Register("eip155:*", broad))
	require.NoError(t, registry.Register("eip155:845*", narrow))

	got, err := registry.Lookup("eip155:84532")
	require.NoError(t, err)
	assert.Same(t, narrow, got)

	got, err = registry.Lookup("eip155:1")
	require.NoError(t, err)
	assert.Same(t, broad, got)
}

func TestSchemeRegistry_NoMatch(t *testing.T) {
	registry := NewSchemeRegistry()
	require.NoError(t, registry.Register("eip155:*", &stubSchemeClient{}))

	_, err := registry.Lookup(NetworkSolanaDevnet)
	assert.ErrorIs(t, err, ErrNoSchemeClient)
}

func TestSchemeRegistry_RejectsBadInput(t *testing.T) {
	registry := NewSchemeRegistry()
	assert.Error(t, registry.Register("", &stubSchemeClient{}))
	assert.Error(t, registry.Register("eip155:*", nil))
}

func TestSchemeRegistry_Networks(t *testing.T) {
	registry := NewSchemeRegistry()
	require.NoError(t, registry.Register(NetworkBaseSepolia, &stubSchemeClient{}))
	require.NoError(t, registry.Register("solana:*", &stubSchemeClient{}))

	assert.ElementsMatch(t, []string{NetworkBaseSepolia, "solana:*"}, registry.Networks())
}
