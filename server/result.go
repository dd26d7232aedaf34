package server

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sectionzeroinc/x402"
)

// PaymentRequiredResult builds the 402 tool result advertising accepted
// payments. The PaymentRequired body appears twice: as structuredContent
// and as the JSON text of the single content item. The builder is pure.
func PaymentRequiredResult(accepts []x402.PaymentRequirement, resource *x402.ResourceInfo, errorMessage string, extensions map[string]any) *mcp.CallToolResult {
	required := x402.PaymentRequired{
		X402Version: x402.X402Version,
		Accepts:     accepts,
		Resource:    resource,
		Error:       errorMessage,
		Extensions:  extensions,
	}

	body, err := json.Marshal(required)
	if err != nil {
		// Marshalling a PaymentRequired of plain JSON types cannot fail;
		// fall back to the error message alone rather than panic.
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(errorMessage)},
			IsError: true,
		}
	}

	// structuredContent carries the decoded object so in-process callers
	// and wire transports see the same shape.
	var structured map[string]any
	if err := json.Unmarshal(body, &structured); err != nil {
		structured = nil
	}

	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(string(body))},
		StructuredContent: structured,
		IsError:           true,
	}
}
