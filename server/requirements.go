package server

import (
	"maps"
	"sync"

	"github.com/sectionzeroinc/x402"
)

// Helper constructors for common payment requirements with USDC.

var (
	// supportedPaymentsCache stores supported payment info by network
	supportedPaymentsCache      = make(map[string]SupportedKind)
	supportedPaymentsCacheMutex sync.RWMutex
)

// SetSupportedPayments caches the supported payment methods reported by the
// facilitator. Called automatically when an X402Server initializes.
func SetSupportedPayments(supported []SupportedKind) {
	supportedPaymentsCacheMutex.Lock()
	defer supportedPaymentsCacheMutex.Unlock()

	for _, kind := range supported {
		supportedPaymentsCache[kind.Network] = kind
	}
}

// getExtraForNetwork retrieves cached extra data for a network
func getExtraForNetwork(network string) map[string]any {
	supportedPaymentsCacheMutex.RLock()
	defer supportedPaymentsCacheMutex.RUnlock()

	if kind, ok := supportedPaymentsCache[network]; ok {
		return maps.Clone(kind.Extra)
	}
	return nil
}

func usdcEVMRequirement(network, asset, payTo, amount, domainName string) x402.PaymentRequirement {
	return x402.PaymentRequirement{
		Scheme:            x402.SchemeExact,
		Network:           network,
		Amount:            amount,
		Asset:             asset,
		PayTo:             payTo,
		MaxTimeoutSeconds: 60,
		Extra: map[string]any{
			"name":    domainName,
			"version": "2",
		},
	}
}

// RequireUSDCBase creates a payment requirement for USDC on Base mainnet
func RequireUSDCBase(payTo, amount string) x402.PaymentRequirement {
	return usdcEVMRequirement(x402.NetworkBase, x402.USDCAddressBase, payTo, amount, "USD Coin")
}

// RequireUSDCBaseSepolia creates a payment requirement for USDC on Base Sepolia testnet
func RequireUSDCBaseSepolia(payTo, amount string) x402.PaymentRequirement {
	return usdcEVMRequirement(x402.NetworkBaseSepolia, x402.USDCAddressBaseSepolia, payTo, amount, "USDC")
}

// RequireUSDCPolygon creates a payment requirement for USDC on Polygon mainnet
func RequireUSDCPolygon(payTo, amount string) x402.PaymentRequirement {
	return usdcEVMRequirement(x402.NetworkPolygon, x402.USDCAddressPolygon, payTo, amount, "USD Coin")
}

// RequireUSDCPolygonAmoy creates a payment requirement for USDC on Polygon Amoy testnet
func RequireUSDCPolygonAmoy(payTo, amount string) x402.PaymentRequirement {
	return usdcEVMRequirement(x402.NetworkPolygonAmoy, x402.USDCAddressPolygonAmoy, payTo, amount, "USDC")
}

// RequireUSDCAvalanche creates a payment requirement for USDC on Avalanche C-Chain mainnet
func RequireUSDCAvalanche(payTo, amount string) x402.PaymentRequirement {
	return usdcEVMRequirement(x402.NetworkAvalanche, x402.USDCAddressAvalanche, payTo, amount, "USD Coin")
}

// RequireUSDCAvalancheFuji creates a payment requirement for USDC on Avalanche Fuji testnet
func RequireUSDCAvalancheFuji(payTo, amount string) x402.PaymentRequirement {
	return usdcEVMRequirement(x402.NetworkAvalancheFuji, x402.USDCAddressAvalancheFuji, payTo, amount, "USDC")
}

func usdcSolanaRequirement(network, mint, payTo, amount, name string) x402.PaymentRequirement {
	extra := map[string]any{
		"decimals": "6",
		"name":     name,
	}

	// Merge facilitator-supplied extras, most importantly the feePayer the
	// client must name as transaction payer.
	for k, v := range getExtraForNetwork(network) {
		extra[k] = v
	}

	return x402.PaymentRequirement{
		Scheme:            x402.SchemeExact,
		Network:           network,
		Amount:            amount,
		Asset:             mint,
		PayTo:             payTo,
		MaxTimeoutSeconds: 60,
		Extra:             extra,
	}
}

// RequireUSDCSolana creates a payment requirement for USDC on Solana mainnet.
// The feePayer is populated from the facilitator's /supported endpoint.
func RequireUSDCSolana(payTo, amount string) x402.PaymentRequirement {
	return usdcSolanaRequirement(x402.NetworkSolana, x402.USDCMintSolana, payTo, amount, "USD Coin")
}

// RequireUSDCSolanaDevnet creates a payment requirement for USDC on Solana devnet.
// The feePayer is populated from the facilitator's /supported endpoint.
func RequireUSDCSolanaDevnet(payTo, amount string) x402.PaymentRequirement {
	return usdcSolanaRequirement(x402.NetworkSolanaDevnet, x402.USDCMintSolanaDevnet, payTo, amount, "USDC (Devnet)")
}

// RequireUSDCSplit creates a split-scheme requirement paying several
// recipients out of one USDC transfer. Recipient bps must sum to 10000.
func RequireUSDCSplit(network, asset, amount string, recipients []x402.SplitRecipient) (x402.PaymentRequirement, error) {
	if err := x402.ValidateSplitRecipients(recipients); err != nil {
		return x402.PaymentRequirement{}, err
	}

	payTo := recipients[0].Address

	return x402.PaymentRequirement{
		Scheme:            x402.SchemeSplit,
		Network:           network,
		Amount:            amount,
		Asset:             asset,
		PayTo:             payTo,
		MaxTimeoutSeconds: 60,
		Extra: map[string]any{
			"recipients": recipients,
		},
	}, nil
}
