package providerbase

import "github.com/janekbaraniewski/codexbar/internal/core"

// Base centralizes provider metadata. Provider packages embed it and
// implement only Fetch().
type Base struct {
	spec core.ProviderSpec
}

func New(spec core.ProviderSpec) Base {
	normalized := spec
	if normalized.ID == "" {
		normalized.ID = "unknown"
	}
	if normalized.Info.Name == "" {
		normalized.Info.Name = normalized.ID
	}
	return Base{spec: normalized}
}

func (b Base) ID() string {
	return b.spec.ID
}

func (b Base) Describe() core.ProviderInfo {
	return b.spec.Info
}

func (b Base) Spec() core.ProviderSpec {
	return b.spec
}

// NewUsage returns the starting result of a fetch: identity set, nothing
// available yet.
func (b Base) NewUsage() core.ProviderUsage {
	return core.ProviderUsage{
		ID:   b.spec.ID,
		Name: b.spec.Info.Name,
	}
}
