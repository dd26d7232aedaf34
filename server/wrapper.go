package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sectionzeroinc/x402"
	"github.com/sectionzeroinc/x402/extensions/paymentidentifier"
)

// ToolConfig configures the payment wrapper for one tool.
type ToolConfig struct {
	// Accepts is the ordered list of payment options advertised to clients.
	// Must be non-empty. The first entry is authoritative for verify and
	// settle; the rest are informational.
	Accepts []x402.PaymentRequirement

	// Resource overrides the advertised resource info. Unset fields default
	// to mcp://tool/{name}, "Tool: {name}", and "application/json".
	Resource *x402.ResourceInfo

	// Extensions are advertised verbatim in 402 responses, e.g. a
	// payment-identifier declaration.
	Extensions map[string]any

	// Hooks are optional lifecycle callbacks.
	Hooks Hooks

	// VerifyOnly verifies payments but never settles them. No receipt is
	// attached to results.
	VerifyOnly bool
}

// PaymentMiddleware transforms a tool handler into one gated by payment.
type PaymentMiddleware func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc

// NewPaymentWrapper builds the payment middleware for one tool.
//
// The wrapped handler runs the flow: extract payment, verify with the
// facilitator, before-hook, execute, after-hook, settle, after-settlement
// hook. Any failure before execution yields a 402 advertising the
// configured requirements; a settlement failure after successful execution
// yields a 402 as well, so the client knows the result was not delivered
// against a settled payment.
func NewPaymentWrapper(facilitator Facilitator, config ToolConfig) (PaymentMiddleware, error) {
	if facilitator == nil {
		return nil, fmt.Errorf("facilitator is required")
	}
	if len(config.Accepts) == 0 {
		return nil, fmt.Errorf("at least one payment requirement is required")
	}
	for _, req := range config.Accepts {
		if req.Scheme == x402.SchemeSplit {
			if _, err := x402.SplitRecipients(req); err != nil {
				return nil, err
			}
		}
	}

	identifierRequired := false
	if ext, ok := config.Extensions[paymentidentifier.Key]; ok {
		identifierRequired = paymentidentifier.IsRequired(ext)
	}

	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			toolName := request.Params.Name
			resource := effectiveResource(config.Resource, toolName)
			deny := func(message string) *mcp.CallToolResult {
				return PaymentRequiredResult(config.Accepts, resource, message, config.Extensions)
			}

			payment := x402.ExtractPayment(request)
			if payment == nil {
				return deny("Payment required to access this tool"), nil
			}

			if identifierRequired {
				if err := paymentidentifier.ValidateRequirement(payment.Extensions, true); err != nil {
					return deny(err.Error()), nil
				}
			}

			requirement := config.Accepts[0]
			verify, err := facilitator.Verify(ctx, payment, &requirement)
			if err != nil {
				return deny("Payment verification failed: " + err.Error()), nil
			}
			if !verify.IsValid {
				reason := verify.InvalidReason
				if reason == "" {
					reason = "Payment verification failed"
				}
				return deny(reason), nil
			}

			hctx := HookContext{
				ToolName:  toolName,
				Arguments: request.GetArguments(),
				Payment:   *payment,
				Payer:     verify.Payer,
			}

			if config.Hooks.OnBeforeExecution != nil {
				proceed, err := config.Hooks.OnBeforeExecution(ctx, hctx)
				if err != nil {
					return nil, err
				}
				if !proceed {
					return deny("Execution blocked by hook"), nil
				}
			}

			result, err := next(ctx, request)
			if err != nil {
				return nil, err
			}

			if config.Hooks.OnAfterExecution != nil {
				if err := config.Hooks.OnAfterExecution(ctx, AfterExecutionContext{
					HookContext: hctx,
					Result:      result,
				}); err != nil {
					return nil, err
				}
			}

			// Failed work is never charged for.
			if result == nil || result.IsError {
				return result, nil
			}

			// A cancelled call must not settle; the client already gave up.
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if config.VerifyOnly {
				return result, nil
			}

			settle, err := facilitator.Settle(ctx, payment, &requirement)
			if err != nil {
				return deny("Payment settlement failed: " + err.Error()), nil
			}
			if !settle.Success {
				reason := settle.ErrorReason
				if reason == "" {
					reason = "unknown error"
				}
				return deny("Payment settlement failed: " + reason), nil
			}

			x402.AttachSettlement(result, *settle)

			if config.Hooks.OnAfterSettlement != nil {
				if err := config.Hooks.OnAfterSettlement(ctx, SettlementContext{
					HookContext: hctx,
					Settlement:  *settle,
				}); err != nil {
					return nil, err
				}
			}

			return result, nil
		}
	}, nil
}

// effectiveResource fills in advertisement defaults for a tool.
func effectiveResource(override *x402.ResourceInfo, toolName string) *x402.ResourceInfo {
	resource := x402.ResourceInfo{
		Description: "Tool: " + toolName,
		MimeType:    "application/json",
	}
	if override != nil {
		resource.URL = x402.ToolResourceURL(toolName, override.URL)
		if override.Description != "" {
			resource.Description = override.Description
		}
		if override.MimeType != "" {
			resource.MimeType = override.MimeType
		}
	} else {
		resource.URL = x402.ToolResourceURL(toolName, "")
	}
	return &resource
}
