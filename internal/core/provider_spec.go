package core

type ProviderAuthType string

const (
	ProviderAuthTypeUnknown ProviderAuthType = ""
	ProviderAuthTypeOAuth   ProviderAuthType = "oauth"
	ProviderAuthTypeCLI     ProviderAuthType = "cli"
	ProviderAuthTypeLocal   ProviderAuthType = "local"
	ProviderAuthTypeToken   ProviderAuthType = "token"
)

// ProviderAuthSpec describes where a provider's credentials live.
type ProviderAuthSpec struct {
	Type       ProviderAuthType
	Store      string // human-readable location, e.g. "~/.claude/.credentials.json"
	Refreshing bool   // stored access tokens expire and are refreshed
}

// ProviderSpec is the canonical provider definition used for registration.
type ProviderSpec struct {
	ID   string
	Info ProviderInfo
	Auth ProviderAuthSpec
}
