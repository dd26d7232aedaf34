package paymentidentifier

import (
	"encoding/json"
	"fmt"
)

// Append merges a payment identifier into an extensions bag, but only when
// the server declared the extension there. With an empty id a fresh one is
// generated; a provided id is validated first. A bag without the extension
// key is left untouched and no error is returned.
//
// The record under Key is replaced rather than mutated, so callers may pass
// a shallow copy of a shared map.
func Append(extensions map[string]any, id string) error {
	if extensions == nil {
		return nil
	}

	declared, ok := extensions[Key]
	if !ok || !isExtension(declared) {
		return nil
	}

	if id == "" {
		id = GenerateID("")
	}
	if !IsValidID(id) {
		return fmt.Errorf("invalid payment identifier %q: must be %d-%d characters of [a-zA-Z0-9_-]",
			id, MinIDLength, MaxIDLength)
	}

	ext, err := decodeExtension(declared)
	if err != nil {
		return err
	}
	ext.Info.ID = id
	extensions[Key] = ext
	return nil
}

// Extract reads the payment identifier out of an extensions bag. An absent
// extension or empty ID yields "". With validate set, a malformed ID is an
// error; without it the raw value is returned.
func Extract(extensions map[string]any, validate bool) (string, error) {
	if extensions == nil {
		return "", nil
	}

	declared, ok := extensions[Key]
	if !ok {
		return "", nil
	}

	ext, err := decodeExtension(declared)
	if err != nil {
		return "", err
	}

	if ext.Info.ID == "" {
		return "", nil
	}
	if validate && !IsValidID(ext.Info.ID) {
		return "", fmt.Errorf("invalid payment identifier %q", ext.Info.ID)
	}
	return ext.Info.ID, nil
}

// IsRequired reads the required flag from an extension record. The record
// may be a typed Extension or a map reconstructed from JSON; anything else
// reads as not required.
func IsRequired(extension any) bool {
	ext, err := decodeExtension(extension)
	if err != nil {
		return false
	}
	return ext.Info.Required
}

// ValidateRequirement checks a payload's extensions against the server's
// required flag: when required, a well-formed ID must be present.
func ValidateRequirement(extensions map[string]any, required bool) error {
	if !required {
		return nil
	}

	id, err := Extract(extensions, false)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("payment identifier is required but none was provided")
	}
	if !IsValidID(id) {
		return fmt.Errorf("invalid payment identifier %q: must be %d-%d characters of [a-zA-Z0-9_-]",
			id, MinIDLength, MaxIDLength)
	}
	return nil
}

// isExtension checks for the minimal declared shape: an info object with a
// boolean required field.
func isExtension(extension any) bool {
	if extension == nil {
		return false
	}

	extBytes, err := json.Marshal(extension)
	if err != nil {
		return false
	}

	var raw struct {
		Info *struct {
			Required *bool `json:"required"`
		} `json:"info"`
	}
	if err := json.Unmarshal(extBytes, &raw); err != nil {
		return false
	}
	return raw.Info != nil && raw.Info.Required != nil
}

// decodeExtension normalizes a typed Extension or a loose map into the
// typed form via a JSON roundtrip.
func decodeExtension(extension any) (Extension, error) {
	if ext, ok := extension.(Extension); ok {
		return ext, nil
	}

	extBytes, err := json.Marshal(extension)
	if err != nil {
		return Extension{}, fmt.Errorf("malformed payment-identifier extension: %w", err)
	}

	var ext Extension
	if err := json.Unmarshal(extBytes, &ext); err != nil {
		return Extension{}, fmt.Errorf("malformed payment-identifier extension: %w", err)
	}
	return ext, nil
}
