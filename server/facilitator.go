package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sectionzeroinc/x402"
)

// Facilitator verifies and settles payments on behalf of the server. It is
// shared across tools and must be safe for concurrent use.
type Facilitator interface {
	Verify(ctx context.Context, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement) (*x402.VerifyResponse, error)
	Settle(ctx context.Context, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement) (*x402.SettleResponse, error)
	GetSupported(ctx context.Context) ([]SupportedKind, error)
}

// SupportedKind is one scheme/network combination a facilitator supports,
// with network-specific extra data such as the Solana fee payer.
type SupportedKind struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// VerifyRequest is the body sent to the facilitator's /verify endpoint
type VerifyRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentPayload      *x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements *x402.PaymentRequirement `json:"paymentRequirements"`
}

// SettleRequest is the body sent to the facilitator's /settle endpoint
type SettleRequest struct {
	X402Version         int                      `json:"x402Version"`
	PaymentPayload      *x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements *x402.PaymentRequirement `json:"paymentRequirements"`
}

// HTTPFacilitator implements Facilitator against a facilitator HTTP API
type HTTPFacilitator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFacilitator creates a new HTTP-based facilitator client
func NewHTTPFacilitator(baseURL string) *HTTPFacilitator {
	return &HTTPFacilitator{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *HTTPFacilitator) Verify(ctx context.Context, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement) (*x402.VerifyResponse, error) {
	req := &VerifyRequest{
		X402Version:         x402.X402Version,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", f.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		errMsg := string(bodyBytes)

		var errResp map[string]any
		if err := json.Unmarshal(bodyBytes, &errResp); err == nil {
			if details, ok := errResp["details"]; ok {
				errMsg = fmt.Sprintf("%s - details: %v", errMsg, details)
			}
		}

		return nil, fmt.Errorf("verify failed with status %d: %s", resp.StatusCode, errMsg)
	}

	var verifyResp x402.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}

	return &verifyResp, nil
}

func (f *HTTPFacilitator) Settle(ctx context.Context, payment *x402.PaymentPayload, requirement *x402.PaymentRequirement) (*x402.SettleResponse, error) {
	req := &SettleRequest{
		X402Version:         x402.X402Version,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal settle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", f.baseURL+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create settle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("settle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("settle failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var settleResp x402.SettleResponse
	if err := json.NewDecoder(resp.Body).Decode(&settleResp); err != nil {
		return nil, fmt.Errorf("decode settle response: %w", err)
	}

	return &settleResp, nil
}

func (f *HTTPFacilitator) GetSupported(ctx context.Context) ([]SupportedKind, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", f.baseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("create supported request: %w", err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("supported request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supported failed with status %d", resp.StatusCode)
	}

	var result struct {
		Kinds []SupportedKind `json:"kinds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode supported response: %w", err)
	}

	return result.Kinds, nil
}
