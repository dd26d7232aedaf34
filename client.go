package x402

import (
	"context"
	"fmt"
	"maps"
	"math/big"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sectionzeroinc/x402/extensions/paymentidentifier"
)

// ToolCaller is the transport the auto-pay driver speaks through. The mcp-go
// client satisfies it directly.
type ToolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// PaymentApprovalFunc decides whether the driver may pay for a tool call.
// Returning false declines without error; the payment-required result is
// handed back to the caller.
type PaymentApprovalFunc func(ctx context.Context, toolName string, req PaymentRequirement, resource *ResourceInfo) (bool, error)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithApproval installs an approval callback consulted before every payment.
func WithApproval(approve PaymentApprovalFunc) ClientOption {
	return func(c *Client) {
		c.approve = approve
	}
}

// WithBudget installs a budget manager that gates and records payments.
func WithBudget(budget *BudgetManager) ClientOption {
	return func(c *Client) {
		c.budget = budget
	}
}

// WithRecorder installs a recorder that receives payment lifecycle events.
func WithRecorder(recorder *PaymentRecorder) ClientOption {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// Client is the auto-pay driver. It calls tools through an underlying
// transport and, when a call comes back payment-required, signs a payment
// with the registered scheme client and retries exactly once.
type Client struct {
	caller   ToolCaller
	registry *SchemeRegistry
	approve  PaymentApprovalFunc
	budget   *BudgetManager
	recorder *PaymentRecorder
}

// NewClient creates an auto-pay driver over a tool-call transport.
func NewClient(caller ToolCaller, registry *SchemeRegistry, opts ...ClientOption) *Client {
	c := &Client{
		caller:   caller,
		registry: registry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToolCallResult is the driver's view of a finished tool call.
type ToolCallResult struct {
	Content           []mcp.Content
	StructuredContent any
	IsError           bool

	// PaymentMade reports whether this result came from a paid retry.
	PaymentMade bool
	// PaymentResponse is the settlement receipt, when the server attached one.
	PaymentResponse *SettleResponse
}

// CallPaidTool calls a tool and pays for it if the server demands payment.
//
// The first call carries no payment. If it succeeds, the result is returned
// as-is. If it comes back payment-required, the driver consults the approval
// callback and budget, builds a payment for the first accepted requirement,
// and retries once with the payment attached. A second payment-required
// result is returned unchanged; the driver never pays twice for one call.
func (c *Client) CallPaidTool(ctx context.Context, toolName string, args map[string]any) (*ToolCallResult, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = toolName
	request.Params.Arguments = args

	result, err := c.caller.CallTool(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}

	if !result.IsError {
		return c.finish(result, false), nil
	}

	required := ExtractPaymentRequired(result)
	if required == nil || len(required.Accepts) == 0 {
		return c.finish(result, false), nil
	}

	accepted := required.Accepts[0]
	c.record(PaymentEvent{
		Type:     EventPaymentRequired,
		ToolName: toolName,
		Resource: resourceURL(required.Resource),
		Network:  accepted.Network,
		Amount:   accepted.Amount,
	})

	if c.approve != nil {
		ok, err := c.approve(ctx, toolName, accepted, required.Resource)
		if err != nil {
			return nil, fmt.Errorf("payment approval: %w", err)
		}
		if !ok {
			c.record(PaymentEvent{
				Type:     EventPaymentDeclined,
				ToolName: toolName,
				Network:  accepted.Network,
				Amount:   accepted.Amount,
			})
			return c.finish(result, false), nil
		}
	}

	amount, err := c.checkBudget(accepted, required.Resource)
	if err != nil {
		c.record(PaymentEvent{
			Type:     EventPaymentDeclined,
			ToolName: toolName,
			Network:  accepted.Network,
			Amount:   accepted.Amount,
			Error:    err.Error(),
		})
		return nil, err
	}

	schemeClient, err := c.registry.Lookup(accepted.Network)
	if err != nil {
		return nil, err
	}

	extensions := maps.Clone(required.Extensions)
	if err := paymentidentifier.Append(extensions, ""); err != nil {
		return nil, fmt.Errorf("payment identifier: %w", err)
	}

	payload, err := schemeClient.CreatePaymentPayload(ctx, accepted, required.Resource, extensions)
	if err != nil {
		c.record(PaymentEvent{
			Type:     EventPaymentFailed,
			ToolName: toolName,
			Network:  accepted.Network,
			Amount:   accepted.Amount,
			Error:    err.Error(),
		})
		return nil, fmt.Errorf("create payment payload: %w", err)
	}

	if c.budget != nil && amount != nil {
		c.budget.RecordPayment(amount, resourceURL(required.Resource))
	}
	c.record(PaymentEvent{
		Type:     EventPaymentCreated,
		ToolName: toolName,
		Resource: resourceURL(required.Resource),
		Network:  accepted.Network,
		Amount:   accepted.Amount,
	})

	retry := mcp.CallToolRequest{}
	retry.Params.Name = toolName
	retry.Params.Arguments = args
	AttachPayment(&retry, *payload)

	paidResult, err := c.caller.CallTool(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("paid tool call failed: %w", err)
	}

	out := c.finish(paidResult, true)
	if out.PaymentResponse != nil && out.PaymentResponse.Success {
		c.record(PaymentEvent{
			Type:     EventPaymentSettled,
			ToolName: toolName,
			Network:  out.PaymentResponse.Network,
			Amount:   accepted.Amount,
			Payer:    out.PaymentResponse.Payer,
			TxHash:   out.PaymentResponse.Transaction,
		})
	} else if out.IsError {
		c.record(PaymentEvent{
			Type:     EventPaymentFailed,
			ToolName: toolName,
			Network:  accepted.Network,
			Amount:   accepted.Amount,
			Error:    "payment rejected on retry",
		})
	}
	return out, nil
}

// checkBudget parses the requirement amount and asks the budget manager for
// clearance. Returns the parsed amount for later recording.
func (c *Client) checkBudget(req PaymentRequirement, resource *ResourceInfo) (*big.Int, error) {
	amount := new(big.Int)
	if _, ok := amount.SetString(req.Amount, 10); !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidRequirement, req.Amount)
	}

	if c.budget == nil {
		return amount, nil
	}
	if err := c.budget.CanSpend(amount, resourceURL(resource)); err != nil {
		return nil, err
	}
	return amount, nil
}

func (c *Client) finish(result *mcp.CallToolResult, paymentMade bool) *ToolCallResult {
	return &ToolCallResult{
		Content:           result.Content,
		StructuredContent: result.StructuredContent,
		IsError:           result.IsError,
		PaymentMade:       paymentMade,
		PaymentResponse:   ExtractSettlement(result),
	}
}

func (c *Client) record(event PaymentEvent) {
	if c.recorder != nil {
		c.recorder.Record(event)
	}
}

func resourceURL(resource *ResourceInfo) string {
	if resource == nil {
		return ""
	}
	return resource.URL
}
