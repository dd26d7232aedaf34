package x402

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SchemeClient builds scheme-specific payment payloads for one or more
// networks. Implementations must be safe for concurrent use.
type SchemeClient interface {
	// CreatePaymentPayload authorizes a payment satisfying the requirement.
	// resource and extensions echo the server's advertisement and may be nil.
	CreatePaymentPayload(ctx context.Context, req PaymentRequirement, resource *ResourceInfo, extensions map[string]any) (*PaymentPayload, error)
}

// SchemeRegistry maps network identifiers to scheme clients. Patterns are
// either exact CAIP-2 identifiers ("eip155:84532") or namespace wildcards
// ("eip155:*"). An exact entry beats any wildcard; among wildcards the
// longest prefix wins.
type SchemeRegistry struct {
	mu    sync.RWMutex
	exact map[string]SchemeClient
	globs map[string]SchemeClient // key is the prefix before '*'
}

// NewSchemeRegistry creates an empty scheme registry.
func NewSchemeRegistry() *SchemeRegistry {
	return &SchemeRegistry{
		exact: make(map[string]SchemeClient),
		globs: make(map[string]SchemeClient),
	}
}

// Register adds a scheme client under a network pattern. Registering the
// same pattern twice replaces the previous client.
func (r *SchemeRegistry) Register(pattern string, client SchemeClient) error {
	if pattern == "" {
		return fmt.Errorf("network pattern cannot be empty")
	}
	if client == nil {
		return fmt.Errorf("scheme client cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		r.globs[prefix] = client
		return nil
	}
	r.exact[pattern] = client
	return nil
}

// Lookup resolves the scheme client for a network identifier.
func (r *SchemeRegistry) Lookup(network string) (SchemeClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if client, ok := r.exact[network]; ok {
		return client, nil
	}

	prefixes := make([]string, 0, len(r.globs))
	for prefix := range r.globs {
		if strings.HasPrefix(network, prefix) {
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSchemeClient, network)
	}

	sort.Slice(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})
	return r.globs[prefixes[0]], nil
}

// Networks returns all registered patterns, sorted.
func (r *SchemeRegistry) Networks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := make([]string, 0, len(r.exact)+len(r.globs))
	for network := range r.exact {
		patterns = append(patterns, network)
	}
	for prefix := range r.globs {
		patterns = append(patterns, prefix+"*")
	}
	sort.Strings(patterns)
	return patterns
}
