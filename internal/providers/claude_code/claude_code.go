package claude_code

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
	"github.com/janekbaraniewski/codexbar/internal/oauth"
	"github.com/janekbaraniewski/codexbar/internal/providers/providerbase"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
	"github.com/janekbaraniewski/codexbar/internal/version"
)

const (
	defaultUsageURL = "https://api.anthropic.com/api/oauth/usage"
	defaultTokenURL = "https://platform.claude.com/v1/oauth/token"

	oauthKey = "claudeAiOauth"
)

type Options struct {
	CredentialsPath string // default ~/.claude/.credentials.json
	AccountPath     string // default ~/.claude.json
	UsageURL        string
	TokenURL        string
	HTTPClient      *http.Client
	Now             func() time.Time
}

type Provider struct {
	providerbase.Base

	credentialsPath string
	accountPath     string
	usageURL        string
	refresher       *oauth.Refresher
	client          *http.Client
	now             func() time.Time
}

func New(opts Options) *Provider {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	client := shared.ClientOrDefault(opts.HTTPClient)

	return &Provider{
		Base: providerbase.New(core.ProviderSpec{
			ID: "claude",
			Info: core.ProviderInfo{
				Name:         "Claude Code",
				Capabilities: []string{"oauth_refresh", "usage_endpoint", "session_window", "weekly_window"},
				DocURL:       "https://code.claude.com/",
			},
			Auth: core.ProviderAuthSpec{
				Type:       core.ProviderAuthTypeOAuth,
				Store:      "~/.claude/.credentials.json",
				Refreshing: true,
			},
		}),
		credentialsPath: shared.FirstNonEmpty(opts.CredentialsPath, defaultCredentialsPath()),
		accountPath:     shared.FirstNonEmpty(opts.AccountPath, defaultAccountPath()),
		usageURL:        shared.FirstNonEmpty(opts.UsageURL, defaultUsageURL),
		refresher: &oauth.Refresher{
			TokenURL:   shared.FirstNonEmpty(opts.TokenURL, defaultTokenURL),
			Encoding:   oauth.EncodingJSON,
			HTTPClient: client,
			UserAgent:  version.UserAgent(),
			Now:        now,
		},
		client: client,
		now:    now,
	}
}

func claudeConfigDir() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

func defaultCredentialsPath() string {
	return filepath.Join(claudeConfigDir(), ".credentials.json")
}

func defaultAccountPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude.json")
}

// oauthCredentials is the claudeAiOauth object of .credentials.json.
type oauthCredentials struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresAt        int64  `json:"expiresAt"` // unix milliseconds
	SubscriptionType string `json:"subscriptionType,omitempty"`
	RateLimitTier    string `json:"rateLimitTier,omitempty"`
}

// storedCredentials keeps the full documents next to the decoded fields so a
// refresh can write back every field it does not touch.
type storedCredentials struct {
	doc   credstore.Document
	inner credstore.Document
	creds oauthCredentials
}

func (s storedCredentials) token() oauth.Token {
	return oauth.Token{
		AccessToken:  s.creds.AccessToken,
		RefreshToken: s.creds.RefreshToken,
		ExpiresAt:    time.UnixMilli(s.creds.ExpiresAt),
	}
}

func (p *Provider) loadCredentials() (storedCredentials, error) {
	doc, err := credstore.LoadDocument(p.credentialsPath)
	if err != nil {
		return storedCredentials{}, err
	}

	var inner credstore.Document
	if err := doc.Decode(oauthKey, &inner); err != nil {
		return storedCredentials{}, err
	}

	var creds oauthCredentials
	if err := doc.Decode(oauthKey, &creds); err != nil {
		return storedCredentials{}, err
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return storedCredentials{}, fmt.Errorf("%w: %s has no OAuth tokens", credstore.ErrNotFound, p.credentialsPath)
	}

	return storedCredentials{doc: doc, inner: inner, creds: creds}, nil
}

// persistFor returns the write-back for a refresh of stored. The new record
// is built from copies; stored itself is never modified.
func (p *Provider) persistFor(stored storedCredentials) oauth.Persist {
	return func(tok oauth.Token) error {
		inner, err := stored.inner.WithFields(map[string]any{
			"accessToken":  tok.AccessToken,
			"refreshToken": tok.RefreshToken,
			"expiresAt":    tok.ExpiresAt.UnixMilli(),
		})
		if err != nil {
			return err
		}
		doc, err := stored.doc.With(oauthKey, inner)
		if err != nil {
			return err
		}
		return credstore.WriteJSONAtomic(p.credentialsPath, doc, "  ")
	}
}

type accountFile struct {
	OAuthAccount *struct {
		EmailAddress string `json:"emailAddress"`
	} `json:"oauthAccount"`
}

// accountEmail reads the signed-in email Claude Code caches in ~/.claude.json.
func (p *Provider) accountEmail() string {
	data, err := os.ReadFile(p.accountPath)
	if err != nil {
		return ""
	}
	var acct accountFile
	if json.Unmarshal(data, &acct) != nil || acct.OAuthAccount == nil {
		return ""
	}
	return acct.OAuthAccount.EmailAddress
}

func (p *Provider) Fetch(ctx context.Context) core.ProviderUsage {
	usage := p.NewUsage()

	stored, err := p.loadCredentials()
	if err != nil {
		log.Printf("[claude] %v", err)
		usage.Fail(core.NoCredentials("No credentials found"))
		return usage
	}
	usage.Available = true

	plan := shared.FirstNonEmpty(stored.creds.SubscriptionType, "unknown")
	usage.SetAccount(p.accountEmail(), plan)

	tok, state, err := p.refresher.Ensure(ctx, stored.token(), p.persistFor(stored))
	if err != nil {
		usage.Fail(core.RefreshFailed(err))
		return usage
	}
	if state == oauth.StateRefreshed {
		log.Printf("[claude] access token refreshed, expires %s", tok.ExpiresAt.Format(time.RFC3339))
	}

	resp, err := p.fetchUsageAPI(ctx, tok.AccessToken)
	if err != nil {
		usage.Fail(err)
		return usage
	}

	applyUsage(resp, &usage)
	return usage
}
