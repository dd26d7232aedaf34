package x402

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainID(t *testing.T) {
	id, err := ChainID(NetworkBaseSepolia)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(84532), id)

	id, err = ChainID(NetworkBase)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(8453), id)

	_, err = ChainID(NetworkSolana)
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)

	_, err = ChainID("eip155:not-a-number")
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)

	_, err = ChainID("base-sepolia")
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
}

func TestNetworkNamespace(t *testing.T) {
	assert.Equal(t, "eip155", NetworkNamespace(NetworkBase))
	assert.Equal(t, "solana", NetworkNamespace(NetworkSolanaDevnet))
	assert.Equal(t, "", NetworkNamespace("base"))
}
