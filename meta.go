package x402

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCP _meta keys reserved by the x402 payment protocol.
const (
	// PaymentMetaKey carries the PaymentPayload on a tool call (client -> server).
	PaymentMetaKey = "x402/payment"

	// PaymentResponseMetaKey carries the SettleResponse on a tool result (server -> client).
	PaymentResponseMetaKey = "x402/payment-response"
)

// ExtractPayment reads the payment payload from a tool call's _meta field.
// Returns nil if no payment is attached. Malformed values are treated as
// absent so garbage meta cannot take a tool offline; the caller falls
// through to the normal payment-required path.
func ExtractPayment(req mcp.CallToolRequest) *PaymentPayload {
	if req.Params.Meta == nil || req.Params.Meta.AdditionalFields == nil {
		return nil
	}

	paymentData, ok := req.Params.Meta.AdditionalFields[PaymentMetaKey]
	if !ok {
		return nil
	}

	// Roundtrip through JSON: the transport hands us a decoded map, tests
	// and in-process callers may hand us the struct itself.
	paymentBytes, err := json.Marshal(paymentData)
	if err != nil {
		return nil
	}

	var payload PaymentPayload
	if err := json.Unmarshal(paymentBytes, &payload); err != nil {
		return nil
	}

	if payload.X402Version == 0 || payload.Payload == nil {
		return nil
	}

	return &payload
}

// AttachPayment sets the payment payload on a tool call's _meta field,
// creating the meta map if needed. Other meta keys are preserved.
func AttachPayment(req *mcp.CallToolRequest, payload PaymentPayload) {
	if req.Params.Meta == nil {
		req.Params.Meta = &mcp.Meta{}
	}
	if req.Params.Meta.AdditionalFields == nil {
		req.Params.Meta.AdditionalFields = make(map[string]any)
	}
	req.Params.Meta.AdditionalFields[PaymentMetaKey] = payload
}

// AttachSettlement sets the settlement response on a tool result's _meta
// field, creating the meta map if needed. Other meta keys are preserved.
func AttachSettlement(result *mcp.CallToolResult, settle SettleResponse) {
	if result.Meta == nil {
		result.Meta = &mcp.Meta{}
	}
	if result.Meta.AdditionalFields == nil {
		result.Meta.AdditionalFields = make(map[string]any)
	}
	result.Meta.AdditionalFields[PaymentResponseMetaKey] = settle
}

// ExtractSettlement reads the settlement response from a tool result's
// _meta field. Returns nil if absent or malformed.
func ExtractSettlement(result *mcp.CallToolResult) *SettleResponse {
	if result == nil || result.Meta == nil || result.Meta.AdditionalFields == nil {
		return nil
	}

	responseData, ok := result.Meta.AdditionalFields[PaymentResponseMetaKey]
	if !ok {
		return nil
	}

	if settle, ok := responseData.(SettleResponse); ok {
		return &settle
	}

	responseBytes, err := json.Marshal(responseData)
	if err != nil {
		return nil
	}

	var settle SettleResponse
	if err := json.Unmarshal(responseBytes, &settle); err != nil {
		return nil
	}

	return &settle
}

// ExtractPaymentRequired reads a PaymentRequired body from an error result.
// structuredContent is preferred; the text of each content item is tried as
// a JSON fallback. Returns nil when the result is not a 402 advertisement.
func ExtractPaymentRequired(result *mcp.CallToolResult) *PaymentRequired {
	if result == nil || !result.IsError {
		return nil
	}

	if sc, ok := result.StructuredContent.(map[string]any); ok {
		if pr := paymentRequiredFromObject(sc); pr != nil {
			return pr
		}
	}

	for _, content := range result.Content {
		textContent, ok := mcp.AsTextContent(content)
		if !ok {
			continue
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(textContent.Text), &parsed); err != nil {
			continue
		}
		if pr := paymentRequiredFromObject(parsed); pr != nil {
			return pr
		}
	}

	return nil
}

// paymentRequiredFromObject converts a decoded object into a PaymentRequired
// if it carries both an accepts list and a numeric x402Version >= 1.
func paymentRequiredFromObject(obj map[string]any) *PaymentRequired {
	if _, ok := obj["accepts"]; !ok {
		return nil
	}

	version, ok := obj["x402Version"]
	if !ok {
		return nil
	}
	switch v := version.(type) {
	case float64:
		if v < 1 {
			return nil
		}
	case int:
		if v < 1 {
			return nil
		}
	default:
		return nil
	}

	objBytes, err := json.Marshal(obj)
	if err != nil {
		return nil
	}

	var pr PaymentRequired
	if err := json.Unmarshal(objBytes, &pr); err != nil {
		return nil
	}
	return &pr
}

// ToolResourceURL returns the resource URL advertised for a tool. The
// override wins when set; otherwise the canonical mcp://tool/{name} form.
func ToolResourceURL(toolName, override string) string {
	if override != "" {
		return override
	}
	if toolName == "" {
		toolName = "paid_tool"
	}
	return "mcp://tool/" + toolName
}
