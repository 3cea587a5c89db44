package core

import "context"

type ProviderInfo struct {
	Name         string   // e.g. "Claude Code", "GitHub Copilot"
	Capabilities []string // "oauth_refresh", "session_log", "usage_endpoint", ...
	DocURL       string
}

// UsageProvider fetches and normalizes one provider's usage. Fetch never
// fails: every failure is captured into the returned ProviderUsage.
type UsageProvider interface {
	ID() string

	Describe() ProviderInfo

	Fetch(ctx context.Context) ProviderUsage
}
