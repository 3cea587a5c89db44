// Package copilot reports GitHub Copilot premium-request and chat quotas.
//
// The gh CLI owns the GitHub login, so the token is taken from
// `gh auth token` and never stored by this program. Quotas come from the
// copilot_internal/user endpoint the editor extensions use.
package copilot

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
	"github.com/janekbaraniewski/codexbar/internal/providers/providerbase"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultBinary  = "gh"
)

type Options struct {
	Binary     string // gh executable
	BaseURL    string
	HTTPClient *http.Client
	Runner     credstore.Runner
}

type Provider struct {
	providerbase.Base

	binary  string
	baseURL string
	client  *http.Client
	runner  credstore.Runner
}

func New(opts Options) *Provider {
	runner := opts.Runner
	if runner == nil {
		runner = credstore.ExecRunner{}
	}
	return &Provider{
		Base: providerbase.New(core.ProviderSpec{
			ID: "copilot",
			Info: core.ProviderInfo{
				Name:         "GitHub Copilot",
				Capabilities: []string{"gh_cli_auth", "premium_quota", "chat_quota"},
				DocURL:       "https://docs.github.com/en/copilot/concepts/rate-limits",
			},
			Auth: core.ProviderAuthSpec{
				Type:  core.ProviderAuthTypeCLI,
				Store: "gh auth token",
			},
		}),
		binary:  shared.FirstNonEmpty(opts.Binary, defaultBinary),
		baseURL: shared.ResolveBaseURL(opts.BaseURL, defaultAPIBase),
		client:  shared.ClientOrDefault(opts.HTTPClient),
		runner:  runner,
	}
}

type quotaSnapshot struct {
	Entitlement      float64 `json:"entitlement"`
	PercentRemaining float64 `json:"percent_remaining"`
	QuotaRemaining   float64 `json:"quota_remaining"`
	Unlimited        bool    `json:"unlimited"`
	QuotaID          string  `json:"quota_id"`
}

// copilotUser is a subset of the copilot_internal/user response.
type copilotUser struct {
	Login             string                   `json:"login"`
	CopilotPlan       string                   `json:"copilot_plan"`
	AccessTypeSKU     string                   `json:"access_type_sku"`
	QuotaResetDate    string                   `json:"quota_reset_date"`
	QuotaResetDateUTC string                   `json:"quota_reset_date_utc"`
	QuotaSnapshots    map[string]quotaSnapshot `json:"quota_snapshots"`
}

func (p *Provider) Fetch(ctx context.Context) core.ProviderUsage {
	usage := p.NewUsage()

	token, err := credstore.RunHelper(ctx, p.runner, p.binary, "auth", "token")
	if err != nil {
		log.Printf("[copilot] %v", err)
		usage.Fail(core.NoCredentials("No GitHub token found"))
		return usage
	}
	usage.Available = true

	req, err := shared.NewRequest(ctx, http.MethodGet, p.baseURL+"/copilot_internal/user", "token "+token, nil, nil)
	if err != nil {
		usage.Fail(core.Transport(err))
		return usage
	}

	var user copilotUser
	if _, err := shared.DoJSON(p.client, req, &user, false); err != nil {
		usage.Fail(err)
		return usage
	}

	usage.SetAccount("", shared.FirstNonEmpty(user.CopilotPlan, user.AccessTypeSKU, "unknown"))
	applyQuotas(&user, &usage)
	return usage
}

func applyQuotas(user *copilotUser, usage *core.ProviderUsage) {
	resetsAt := shared.FirstNonEmpty(user.QuotaResetDateUTC, user.QuotaResetDate)

	if premium, ok := user.QuotaSnapshots["premium_interactions"]; ok {
		if premium.Unlimited {
			usage.Primary = &core.UsageWindow{Label: "Premium (Unlimited)"}
		} else {
			usage.Primary = &core.UsageWindow{
				PercentUsed: snapshotPercent(premium),
				ResetsAt:    resetsAt,
				Label:       fmt.Sprintf("Premium (%s)", formatCount(premium.Entitlement)),
			}
		}
	}

	if chat, ok := user.QuotaSnapshots["chat"]; ok {
		if chat.Unlimited {
			usage.Secondary = &core.UsageWindow{Label: "Chat (Unlimited)"}
		} else {
			usage.Secondary = &core.UsageWindow{
				PercentUsed: snapshotPercent(chat),
				ResetsAt:    resetsAt,
				Label:       "Chat",
			}
		}
	}
}

func snapshotPercent(s quotaSnapshot) int {
	return core.Percent(s.Entitlement-s.QuotaRemaining, s.Entitlement)
}

func formatCount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
