package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sectionzeroinc/x402"
)

// HookContext is the snapshot handed to payment hooks. Contexts are passed
// by value; mutations never affect later phases.
type HookContext struct {
	ToolName  string
	Arguments map[string]any
	Payment   x402.PaymentPayload
	Payer     string
}

// AfterExecutionContext extends HookContext with the handler's result.
type AfterExecutionContext struct {
	HookContext
	Result *mcp.CallToolResult
}

// SettlementContext extends HookContext with the settlement receipt.
type SettlementContext struct {
	HookContext
	Settlement x402.SettleResponse
}

// BeforeExecutionFunc runs after a payment verifies and before the handler.
// Returning false blocks execution; the caller receives a payment-required
// error. An error propagates as a tool error.
type BeforeExecutionFunc func(ctx context.Context, hctx HookContext) (bool, error)

// AfterExecutionFunc runs after the handler and before settlement. It is
// observational; the result cannot be altered. An error propagates as a
// tool error and skips settlement.
type AfterExecutionFunc func(ctx context.Context, hctx AfterExecutionContext) error

// AfterSettlementFunc runs only after a successful settlement. It is
// observational; an error propagates as a tool error but the payment has
// already settled.
type AfterSettlementFunc func(ctx context.Context, hctx SettlementContext) error

// Hooks are optional user callbacks threaded through the payment wrapper.
// Nil hooks are skipped. Invocation order is strictly before, execute,
// after, settle, after-settle; none run when the wrapper short-circuits
// earlier (missing payment, failed verify).
type Hooks struct {
	OnBeforeExecution BeforeExecutionFunc
	OnAfterExecution  AfterExecutionFunc
	OnAfterSettlement AfterSettlementFunc
}
