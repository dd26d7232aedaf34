package x402

import (
	"fmt"
	"math/big"
	"strings"
)

// X402Version is the protocol version this package speaks.
const X402Version = 2

// PaymentRequirement is a single payment option a server will accept,
// as defined in the x402 v2 specification.
type PaymentRequirement struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	Amount            string         `json:"amount"`
	Asset             string         `json:"asset"`
	PayTo             string         `json:"payTo"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// ResourceInfo describes the resource a payment requirement protects.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequired is the 402 response body advertising accepted payments.
type PaymentRequired struct {
	X402Version int                  `json:"x402Version"`
	Accepts     []PaymentRequirement `json:"accepts"`
	Resource    *ResourceInfo        `json:"resource,omitempty"`
	Error       string               `json:"error,omitempty"`
	Extensions  map[string]any       `json:"extensions,omitempty"`
}

// PaymentPayload is the client-produced payment authorization. Accepted
// echoes the requirement the client chose; Payload is scheme-specific and
// opaque to this package.
type PaymentPayload struct {
	X402Version int                `json:"x402Version"`
	Accepted    PaymentRequirement `json:"accepted"`
	Payload     map[string]any     `json:"payload"`
	Resource    *ResourceInfo      `json:"resource,omitempty"`
	Extensions  map[string]any     `json:"extensions,omitempty"`
}

// VerifyResponse is the facilitator's answer to a verification request.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	Payer         string `json:"payer,omitempty"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse is the facilitator's acknowledgement of settlement.
type SettleResponse struct {
	Success     bool           `json:"success"`
	Transaction string         `json:"transaction"`
	Network     string         `json:"network"`
	Payer       string         `json:"payer,omitempty"`
	ErrorReason string         `json:"errorReason,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Well-known CAIP-2 network identifiers.
const (
	NetworkBase          = "eip155:8453"
	NetworkBaseSepolia   = "eip155:84532"
	NetworkEthereum      = "eip155:1"
	NetworkSepolia       = "eip155:11155111"
	NetworkAvalanche     = "eip155:43114"
	NetworkAvalancheFuji = "eip155:43113"
	NetworkPolygon       = "eip155:137"
	NetworkPolygonAmoy   = "eip155:80002"

	NetworkSolana       = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	NetworkSolanaDevnet = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
)

// USDC token addresses on supported networks.
const (
	USDCAddressBase          = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	USDCAddressBaseSepolia   = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	USDCAddressPolygon       = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	USDCAddressPolygonAmoy   = "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582"
	USDCAddressAvalanche     = "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"
	USDCAddressAvalancheFuji = "0x5425890298aed601595a70AB815c96711a31Bc65"
	USDCMintSolana           = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCMintSolanaDevnet     = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

// ChainID parses the chain reference out of an eip155 CAIP-2 network
// identifier, e.g. "eip155:84532" -> 84532.
func ChainID(network string) (*big.Int, error) {
	ref, ok := strings.CutPrefix(network, "eip155:")
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an eip155 network", ErrUnsupportedNetwork, network)
	}

	id := new(big.Int)
	if _, ok := id.SetString(ref, 10); !ok {
		return nil, fmt.Errorf("%w: invalid chain reference %q", ErrUnsupportedNetwork, ref)
	}
	return id, nil
}

// NetworkNamespace returns the CAIP-2 namespace of a network identifier,
// e.g. "eip155" for "eip155:8453". Empty if the identifier has no namespace.
func NetworkNamespace(network string) string {
	ns, _, ok := strings.Cut(network, ":")
	if !ok {
		return ""
	}
	return ns
}
