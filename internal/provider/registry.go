package provider

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"mangarecap/internal/services"
)

// Entry pairs a registered provider with its descriptor.
type Entry struct {
	Provider   Provider
	Descriptor Descriptor
	order      int
}

// Chain is the ordered fallback list for one capability.
type Chain struct {
	Kind    Kind
	Entries []Entry
}

// IDs returns provider identifiers in chain order.
func (c Chain) IDs() []string {
	ids := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.Descriptor.ProviderID
	}
	return ids
}

// Registry maps capability kinds to their registered providers.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind][]Entry
	next    int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Kind][]Entry)}
}

// Register adds p under kind. The descriptor's Kind and ProviderID are filled
// from the arguments when empty and must match them otherwise.
func (r *Registry) Register(kind Kind, p Provider, desc Descriptor) error {
	if p == nil {
		return services.Wrap(services.ErrConfiguration, "registry", "register", "nil provider", nil)
	}
	if err := implements(kind, p); err != nil {
		return services.Wrap(services.ErrConfiguration, "registry", "register", "", err)
	}
	if desc.Kind == "" {
		desc.Kind = kind
	}
	if desc.ProviderID == "" {
		desc.ProviderID = p.ID()
	}
	if desc.Kind != kind {
		return services.Wrap(services.ErrConfiguration, "registry", "register",
			fmt.Sprintf("descriptor kind %q does not match %q", desc.Kind, kind), nil)
	}
	if strings.TrimSpace(desc.ProviderID) == "" {
		return services.Wrap(services.ErrConfiguration, "registry", "register", "provider id is empty", nil)
	}
	if desc.Rank < 0 {
		return services.Wrap(services.ErrConfiguration, "registry", "register",
			fmt.Sprintf("provider %q has negative rank %d", desc.ProviderID, desc.Rank), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries[kind] {
		if existing.Descriptor.ProviderID == desc.ProviderID {
			return services.Wrap(services.ErrConfiguration, "registry", "register",
				fmt.Sprintf("provider %q already registered for %s", desc.ProviderID, kind), nil)
		}
	}
	r.entries[kind] = append(r.entries[kind], Entry{Provider: p, Descriptor: desc, order: r.next})
	r.next++
	return nil
}

// Chain returns the providers for kind ordered by rank ascending, ties broken
// by registration order. An empty chain is a configuration error.
func (r *Registry) Chain(kind Kind) (Chain, error) {
	r.mu.RLock()
	entries := slices.Clone(r.entries[kind])
	r.mu.RUnlock()

	if len(entries) == 0 {
		return Chain{}, services.Wrap(services.ErrConfiguration, "registry", "chain",
			fmt.Sprintf("no providers registered for %s", kind), nil)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if a.Descriptor.Rank != b.Descriptor.Rank {
			return a.Descriptor.Rank - b.Descriptor.Rank
		}
		return a.order - b.order
	})
	return Chain{Kind: kind, Entries: entries}, nil
}

// Kinds returns the capabilities that have at least one provider, in pipeline order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.entries))
	for _, kind := range Kinds {
		if len(r.entries[kind]) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// Descriptors returns the descriptors for kind in chain order.
func (r *Registry) Descriptors(kind Kind) []Descriptor {
	chain, err := r.Chain(kind)
	if err != nil {
		return nil
	}
	out := make([]Descriptor, len(chain.Entries))
	for i, e := range chain.Entries {
		out[i] = e.Descriptor
	}
	return out
}

// Validate checks that every capability in kinds has a non-empty chain.
func (r *Registry) Validate(kinds ...Kind) error {
	for _, kind := range kinds {
		if _, err := r.Chain(kind); err != nil {
			return err
		}
	}
	return nil
}
