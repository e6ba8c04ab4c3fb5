package preflight

import (
	"fmt"

	"mangarecap/internal/provider"
)

// ProviderStatus is the readiness of one chain entry.
type ProviderStatus struct {
	Kind       provider.Kind
	Position   int
	Descriptor provider.Descriptor
	Available  bool
	Detail     string
}

// ProviderHealth reports every registered provider in chain order. Providers
// that cannot tell their availability ahead of a call are reported ready.
func ProviderHealth(registry *provider.Registry) []ProviderStatus {
	var out []ProviderStatus
	for _, kind := range provider.Kinds {
		chain, err := registry.Chain(kind)
		if err != nil {
			out = append(out, ProviderStatus{Kind: kind, Detail: err.Error()})
			continue
		}
		for i, entry := range chain.Entries {
			status := ProviderStatus{
				Kind:       kind,
				Position:   i + 1,
				Descriptor: entry.Descriptor,
				Available:  true,
				Detail:     "ready",
			}
			if probe, ok := entry.Provider.(provider.Availability); ok {
				if err := probe.Available(); err != nil {
					status.Available = false
					status.Detail = err.Error()
				}
			}
			out = append(out, status)
		}
	}
	return out
}

// ChainsUsable reports whether every kind has at least one available
// provider, naming the first kind that does not.
func ChainsUsable(statuses []ProviderStatus) error {
	usable := map[provider.Kind]bool{}
	for _, s := range statuses {
		if s.Available {
			usable[s.Kind] = true
		}
	}
	for _, kind := range provider.Kinds {
		if !usable[kind] {
			return fmt.Errorf("no available %s provider", kind)
		}
	}
	return nil
}
