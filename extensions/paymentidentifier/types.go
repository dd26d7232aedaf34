package paymentidentifier

// Key is the reserved extensions-map key for this extension.
const Key = "payment-identifier"

// ID length bounds, inclusive.
const (
	MinIDLength = 16
	MaxIDLength = 128
)

// Info carries the server's required flag and the client-provided ID.
type Info struct {
	Required bool   `json:"required"`
	ID       string `json:"id,omitempty"`
}

// Extension is the full extension record as it appears in an extensions map.
type Extension struct {
	Info   Info           `json:"info"`
	Schema map[string]any `json:"schema"`
}

// Declare builds the extension record a server advertises in
// PaymentRequired.Extensions under Key.
func Declare(required bool) Extension {
	return Extension{
		Info:   Info{Required: required},
		Schema: Schema(),
	}
}

// Schema returns the JSON Schema (draft 2020-12) constraining the info
// object.
func Schema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"required": map[string]any{
				"type": "boolean",
			},
			"id": map[string]any{
				"type":      "string",
				"minLength": MinIDLength,
				"maxLength": MaxIDLength,
				"pattern":   "^[a-zA-Z0-9_-]+$",
			},
		},
		"required": []string{"required"},
	}
}
