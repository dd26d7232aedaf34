package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectionzeroinc/x402/extensions/paymentidentifier"
)

// scriptedCaller returns canned results in order and records every request.
type scriptedCaller struct {
	responses []*mcp.CallToolResult
	requests  []mcp.CallToolRequest
}

func (c *scriptedCaller) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c.requests = append(c.requests, request)
	if len(c.requests) > len(c.responses) {
		return nil, fmt.Errorf("unexpected call %d", len(c.requests))
	}
	return c.responses[len(c.requests)-1], nil
}

type fakeSchemeClient struct {
	lastRequirement PaymentRequirement
	lastExtensions  map[string]any
	err             error
}

func (f *fakeSchemeClient) CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error) {
	f.lastRequirement = req
	f.lastExtensions = extensions
	if f.err != nil {
		return nil, f.err
	}
	return &PaymentPayload{
		X402Version: X402Version,
		Accepted:    req,
		Payload:     map[string]any{"signature": "0xsig"},
		Resource:    resource,
		Extensions:  extensions,
	}, nil
}

func clientRequirement() PaymentRequirement {
	return PaymentRequirement{
		Scheme:            "exact",
		Network:           NetworkBaseSepolia,
		Amount:            "100000",
		Asset:             USDCAddressBaseSepolia,
		PayTo:             "0xPayee",
		MaxTimeoutSeconds: 60,
	}
}

func paymentRequired402(t *testing.T, accepts []PaymentRequirement, extensions map[string]any) *mcp.CallToolResult {
	t.Helper()

	body, err := json.Marshal(PaymentRequired{
		X402Version: X402Version,
		Accepts:     accepts,
		Resource:    &ResourceInfo{URL: "mcp://tool/get_weather"},
		Error:       "Payment required to access this tool",
		Extensions:  extensions,
	})
	require.NoError(t, err)

	var structured map[string]any
	require.NoError(t, json.Unmarshal(body, &structured))

	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(string(body))},
		StructuredContent: structured,
		IsError:           true,
	}
}

func successWithReceipt() *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(`{"city":"SF","weather":"sunny"}`)},
	}
	AttachSettlement(result, SettleResponse{
		Success:     true,
		Transaction: "0xabc",
		Network:     NetworkBaseSepolia,
		Payer:       "0xpayer",
	})
	return result
}

func newTestRegistry(t *testing.T, scheme SchemeClient) *SchemeRegistry {
	t.Helper()
	registry := NewSchemeRegistry()
	require.NoError(t, registry.Register("eip155:*", scheme))
	return registry
}

func TestCallPaidTool_FreeTool(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		{Content: []mcp.Content{mcp.NewTextContent("free")}},
	}}
	client := NewClient(caller, NewSchemeRegistry())

	result, err := client.CallPaidTool(context.Background(), "get_time", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.False(t, result.PaymentMade)
	assert.Nil(t, result.PaymentResponse)
	assert.Len(t, caller.requests, 1)
	assert.Nil(t, caller.requests[0].Params.Meta)
}

func TestCallPaidTool_PaysAndRetriesOnce(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil),
		successWithReceipt(),
	}}
	scheme := &fakeSchemeClient{}
	recorder := NewPaymentRecorder()
	client := NewClient(caller, newTestRegistry(t, scheme), WithRecorder(recorder))

	result, err := client.CallPaidTool(context.Background(), "get_weather", map[string]any{"city": "SF"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, result.PaymentMade)
	require.NotNil(t, result.PaymentResponse)
	assert.Equal(t, "0xabc", result.PaymentResponse.Transaction)

	require.Len(t, caller.requests, 2)
	assert.Nil(t, caller.requests[0].Params.Meta)

	attached := ExtractPayment(caller.requests[1])
	require.NotNil(t, attached)
	assert.Equal(t, clientRequirement(), attached.Accepted)
	assert.Equal(t, clientRequirement(), scheme.lastRequirement)

	// Arguments survive the retry
	assert.Equal(t, map[string]any{"city": "SF"}, caller.requests[1].GetArguments())

	types := []PaymentEventType{}
	for _, e := range recorder.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []PaymentEventType{EventPaymentRequired, EventPaymentCreated, EventPaymentSettled}, types)
}

func TestCallPaidTool_SecondDenialReturnedVerbatim(t *testing.T) {
	denial := paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil)
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{denial, denial}}
	client := NewClient(caller, newTestRegistry(t, &fakeSchemeClient{}))

	result, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.True(t, result.PaymentMade)
	assert.Nil(t, result.PaymentResponse)
	assert.Len(t, caller.requests, 2)
	assert.Equal(t, denial.Content, result.Content)
}

func TestCallPaidTool_EmptyAcceptsReturnedUnchanged(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{}, nil),
	}}
	client := NewClient(caller, newTestRegistry(t, &fakeSchemeClient{}))

	result, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.False(t, result.PaymentMade)
	assert.Len(t, caller.requests, 1)
}

func TestCallPaidTool_PlainErrorReturnedUnchanged(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		{Content: []mcp.Content{mcp.NewTextContent("boom")}, IsError: true},
	}}
	client := NewClient(caller, newTestRegistry(t, &fakeSchemeClient{}))

	result, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.False(t, result.PaymentMade)
	assert.Len(t, caller.requests, 1)
}

func TestCallPaidTool_ApprovalDeclined(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil),
	}}
	recorder := NewPaymentRecorder()

	var seenTool string
	var seenReq PaymentRequirement
	client := NewClient(caller, newTestRegistry(t, &fakeSchemeClient{}),
		WithRecorder(recorder),
		WithApproval(func(ctx context.Context, toolName string, req PaymentRequirement, resource *ResourceInfo) (bool, error) {
			seenTool = toolName
			seenReq = req
			return false, nil
		}),
	)

	result, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.False(t, result.PaymentMade)
	assert.Len(t, caller.requests, 1)

	assert.Equal(t, "get_weather", seenTool)
	assert.Equal(t, clientRequirement(), seenReq)
	assert.Len(t, recorder.EventsByType(EventPaymentDeclined), 1)
}

func TestCallPaidTool_BudgetExceeded(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil),
	}}

	budget, err := NewBudgetManager("50000", nil)
	require.NoError(t, err)

	client := NewClient(caller, newTestRegistry(t, &fakeSchemeClient{}), WithBudget(budget))

	_, err = client.CallPaidTool(context.Background(), "get_weather", nil)
	assert.ErrorIs(t, err, ErrAmountExceedsLimit)
	assert.Len(t, caller.requests, 1)
}

func TestCallPaidTool_NoSchemeClient(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil),
	}}
	client := NewClient(caller, NewSchemeRegistry())

	_, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	assert.ErrorIs(t, err, ErrNoSchemeClient)
}

func TestCallPaidTool_SchemeClientError(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil),
	}}
	recorder := NewPaymentRecorder()
	client := NewClient(caller, newTestRegistry(t, &fakeSchemeClient{err: assert.AnError}), WithRecorder(recorder))

	_, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, recorder.EventsByType(EventPaymentFailed), 1)
}

func TestCallPaidTool_MergesPaymentIdentifier(t *testing.T) {
	serverExtensions := map[string]any{
		paymentidentifier.Key: paymentidentifier.Declare(true),
	}
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, serverExtensions),
		successWithReceipt(),
	}}
	scheme := &fakeSchemeClient{}
	client := NewClient(caller, newTestRegistry(t, scheme))

	_, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)

	id, err := paymentidentifier.Extract(scheme.lastExtensions, true)
	require.NoError(t, err)
	assert.True(t, paymentidentifier.IsValidID(id))
	assert.Equal(t, 36, len(id))
}

func TestCallPaidTool_NoIdentifierWithoutDeclaration(t *testing.T) {
	caller := &scriptedCaller{responses: []*mcp.CallToolResult{
		paymentRequired402(t, []PaymentRequirement{clientRequirement()}, nil),
		successWithReceipt(),
	}}
	scheme := &fakeSchemeClient{}
	client := NewClient(caller, newTestRegistry(t, scheme))

	_, err := client.CallPaidTool(context.Background(), "get_weather", nil)
	require.NoError(t, err)

	id, err := paymentidentifier.Extract(scheme.lastExtensions, false)
	require.NoError(t, err)
	assert.Equal(t, "", id)
}
