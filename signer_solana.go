package x402

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// SolanaSigner is a SchemeClient for the "exact" scheme on solana networks.
// It builds a fee-payer-sponsored SPL TransferChecked transaction, partially
// signs it, and ships it base64-encoded for the facilitator to co-sign and
// submit. Register it under "solana:*".
type SolanaSigner struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	rpcURLs    map[string]string
}

// SolanaSignerOption configures a SolanaSigner.
type SolanaSignerOption func(*SolanaSigner)

// WithSolanaRPC overrides the RPC endpoint used for a network.
func WithSolanaRPC(network, rpcURL string) SolanaSignerOption {
	return func(s *SolanaSigner) {
		s.rpcURLs[network] = rpcURL
	}
}

// NewSolanaSigner creates a signer from a base58-encoded Solana private key
func NewSolanaSigner(privateKeyBase58 string, opts ...SolanaSignerOption) (*SolanaSigner, error) {
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return newSolanaSigner(privateKey, opts...), nil
}

// NewSolanaSignerFromFile creates a signer from a Solana keypair file
func NewSolanaSignerFromFile(filepath string, opts ...SolanaSignerOption) (*SolanaSigner, error) {
	privateKey, err := solana.PrivateKeyFromSolanaKeygenFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair file: %w", err)
	}
	return newSolanaSigner(privateKey, opts...), nil
}

func newSolanaSigner(privateKey solana.PrivateKey, opts ...SolanaSignerOption) *SolanaSigner {
	s := &SolanaSigner{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		rpcURLs: map[string]string{
			NetworkSolana:       rpc.MainNetBeta_RPC,
			NetworkSolanaDevnet: rpc.DevNet_RPC,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the signer's Solana address.
func (s *SolanaSigner) Address() string {
	return s.publicKey.String()
}

func (s *SolanaSigner) CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error) {
	rpcURL, ok := s.rpcURLs[req.Network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, req.Network)
	}
	client := rpc.New(rpcURL)

	recent, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash from %s: %w", rpcURL, err)
	}

	mintAddr, err := solana.PublicKeyFromBase58(req.Asset)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}

	toAddr, err := solana.PublicKeyFromBase58(req.PayTo)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	feePayerAddr, err := solana.PublicKeyFromBase58(extraString(req.Extra, "feePayer"))
	if err != nil {
		return nil, fmt.Errorf("invalid fee payer address: %w", err)
	}

	fromATA, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mintAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sender ATA: %w", err)
	}

	toATA, _, err := solana.FindAssociatedTokenAddress(toAddr, mintAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to derive recipient ATA: %w", err)
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(req.Amount, 10); !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidRequirement, req.Amount)
	}

	decimals := uint8(6) // USDC default
	if decStr := extraString(req.Extra, "decimals"); decStr != "" {
		_, _ = fmt.Sscanf(decStr, "%d", &decimals)
	}

	var instructions []solana.Instruction

	// The facilitator requires a fixed compute budget prelude.
	// Instruction 0: SetComputeUnitLimit 200,000 units
	instructions = append(instructions, solana.NewInstruction(
		solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111"),
		solana.AccountMetaSlice{},
		[]byte{2, 0x40, 0x0d, 0x03, 0x00},
	))
	// Instruction 1: SetComputeUnitPrice 10,000 microlamports
	instructions = append(instructions, solana.NewInstruction(
		solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111"),
		solana.AccountMetaSlice{},
		[]byte{3, 0x10, 0x27, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	))

	// Instruction 2: TransferChecked carries mint and decimals for verification
	instructions = append(instructions, token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount.Uint64()).
		SetDecimals(decimals).
		SetSourceAccount(fromATA).
		SetDestinationAccount(toATA).
		SetMintAccount(mintAddr).
		SetOwnerAccount(s.publicKey).
		Build())

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(feePayerAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.publicKey.Equals(key) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to partially sign transaction: %w", err)
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return &PaymentPayload{
		X402Version: X402Version,
		Accepted:    req,
		Payload: map[string]any{
			"transaction": base64.StdEncoding.EncodeToString(txBytes),
		},
		Resource:   resource,
		Extensions: extensions,
	}, nil
}

// MockSolanaSigner is a test scheme client that emits a fixed transaction
type MockSolanaSigner struct {
	address string
}

// NewMockSolanaSigner creates a mock Solana signer for testing
func NewMockSolanaSigner(address string) *MockSolanaSigner {
	return &MockSolanaSigner{address: address}
}

// Address returns the mock signer's address.
func (m *MockSolanaSigner) Address() string {
	return m.address
}

func (m *MockSolanaSigner) CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error) {
	value := new(big.Int)
	if _, ok := value.SetString(req.Amount, 10); !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidRequirement, req.Amount)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidRequirement, req.Amount)
	}

	fakeTransaction := "AQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=="

	return &PaymentPayload{
		X402Version: X402Version,
		Accepted:    req,
		Payload: map[string]any{
			"transaction": fakeTransaction,
		},
		Resource:   resource,
		Extensions: extensions,
	}, nil
}
