package x402

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// PrivateKeySigner is a SchemeClient for the "exact" scheme on eip155
// networks, signing EIP-3009 TransferWithAuthorization messages with a raw
// private key. Register it under "eip155:*".
type PrivateKeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewPrivateKeySigner creates a signer from a hex-encoded private key
func NewPrivateKeySigner(privateKeyHex string) (*PrivateKeySigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKeyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	return &PrivateKeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the signer's checksummed address.
func (s *PrivateKeySigner) Address() string {
	return s.address.Hex()
}

func (s *PrivateKeySigner) CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error) {
	chainID, err := ChainID(req.Network)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if _, ok := value.SetString(req.Amount, 10); !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidRequirement, req.Amount)
	}

	// Nonce binds the authorization to this call
	nonceBytes := crypto.Keccak256([]byte(fmt.Sprintf("%d-%s-%s",
		time.Now().UnixNano(), resourceURL(resource), s.address.Hex())))
	nonce := "0x" + hex.EncodeToString(nonceBytes)

	// validAfter sits 5 seconds in the past to absorb clock skew
	timeout := req.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = 60
	}
	validAfter := time.Now().Add(-5 * time.Second).Unix()
	validBefore := time.Now().Add(time.Duration(timeout) * time.Second).Unix()

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              extraString(req.Extra, "name"),
			Version:           extraString(req.Extra, "version"),
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: req.Asset,
		},
		Message: apitypes.TypedDataMessage{
			"from":        s.address.Hex(),
			"to":          common.HexToAddress(req.PayTo).Hex(),
			"value":       (*math.HexOrDecimal256)(value),
			"validAfter":  (*math.HexOrDecimal256)(big.NewInt(validAfter)),
			"validBefore": (*math.HexOrDecimal256)(big.NewInt(validBefore)),
			"nonce":       nonce,
		},
	}

	sigHash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	signature, err := crypto.Sign(sigHash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	// Adjust V for the Ethereum signature convention
	signature[64] += 27

	return &PaymentPayload{
		X402Version: X402Version,
		Accepted:    req,
		Payload: map[string]any{
			"signature": "0x" + hex.EncodeToString(signature),
			"authorization": map[string]any{
				"from":        s.address.Hex(),
				"to":          req.PayTo,
				"value":       req.Amount,
				"validAfter":  fmt.Sprintf("%d", validAfter),
				"validBefore": fmt.Sprintf("%d", validBefore),
				"nonce":       nonce,
			},
		},
		Resource:   resource,
		Extensions: extensions,
	}, nil
}

// extraString reads a string field out of a requirement's extra bag.
func extraString(extra map[string]any, key string) string {
	if extra == nil {
		return ""
	}
	s, _ := extra[key].(string)
	return s
}

// derivePrivateKey derives a private key from a seed using BIP-32 HD derivation
func derivePrivateKey(seed []byte, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	key := masterKey
	for _, n := range path {
		key, err = key.NewChildKey(n)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %w", err)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to ECDSA key: %w", err)
	}

	return privateKey, nil
}

// MnemonicSigner signs with a key derived from a mnemonic phrase
type MnemonicSigner struct {
	*PrivateKeySigner
}

// NewMnemonicSigner creates a signer from a BIP-39 mnemonic phrase
func NewMnemonicSigner(mnemonic string, derivationPath string) (*MnemonicSigner, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	if derivationPath == "" {
		derivationPath = "m/44'/60'/0'/0/0" // Default Ethereum path
	}

	path, err := accounts.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path: %w", err)
	}

	seed := bip39.NewSeed(mnemonic, "")

	privateKey, err := derivePrivateKey(seed, path)
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key: %w", err)
	}

	return &MnemonicSigner{
		PrivateKeySigner: &PrivateKeySigner{
			privateKey: privateKey,
			address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		},
	}, nil
}

// KeystoreSigner signs with a key from an encrypted keystore file
type KeystoreSigner struct {
	*PrivateKeySigner
}

// NewKeystoreSigner creates a signer from an encrypted keystore JSON
func NewKeystoreSigner(keystoreJSON []byte, password string) (*KeystoreSigner, error) {
	key, err := keystore.DecryptKey(keystoreJSON, password)
	if err != nil {
		if err == keystore.ErrDecrypt {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}

	return &KeystoreSigner{
		PrivateKeySigner: &PrivateKeySigner{
			privateKey: key.PrivateKey,
			address:    key.Address,
		},
	}, nil
}

// MockSigner is a test scheme client that produces fake EVM signatures
type MockSigner struct {
	address string
}

// NewMockSigner creates a mock signer for testing
func NewMockSigner(address string) *MockSigner {
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return &MockSigner{address: address}
}

// Address returns the mock signer's address.
func (m *MockSigner) Address() string {
	return m.address
}

func (m *MockSigner) CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error) {
	fakeSignature := strings.Repeat("00", 65)

	return &PaymentPayload{
		X402Version: X402Version,
		Accepted:    req,
		Payload: map[string]any{
			"signature": "0x" + fakeSignature,
			"authorization": map[string]any{
				"from":        m.address,
				"to":          req.PayTo,
				"value":       req.Amount,
				"validAfter":  fmt.Sprintf("%d", time.Now().Unix()),
				"validBefore": fmt.Sprintf("%d", time.Now().Add(60*time.Second).Unix()),
				"nonce":       "0x" + strings.Repeat("11", 32),
			},
		},
		Resource:   resource,
		Extensions: extensions,
	}, nil
}
