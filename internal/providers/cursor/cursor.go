package cursor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
	"github.com/janekbaraniewski/codexbar/internal/providers/providerbase"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
)

const (
	defaultAPIBase = "https://api2.cursor.sh"

	keyAccessToken    = "cursorAuth/accessToken"
	keyCachedEmail    = "cursorAuth/cachedEmail"
	keyMembershipType = "cursorAuth/stripeMembershipType"
)

type Options struct {
	DBPath     string // default ~/.config/Cursor/User/globalStorage/state.vscdb
	BaseURL    string
	HTTPClient *http.Client
}

type Provider struct {
	providerbase.Base

	dbPath  string
	baseURL string
	client  *http.Client
}

func New(opts Options) *Provider {
	return &Provider{
		Base: providerbase.New(core.ProviderSpec{
			ID: "cursor",
			Info: core.ProviderInfo{
				Name:         "Cursor",
				Capabilities: []string{"dashboard_api", "billing", "spend_tracking"},
				DocURL:       "https://www.cursor.com/",
			},
			Auth: core.ProviderAuthSpec{
				Type:  core.ProviderAuthTypeLocal,
				Store: "state.vscdb",
			},
		}),
		dbPath:  shared.FirstNonEmpty(opts.DBPath, defaultDBPath()),
		baseURL: shared.ResolveBaseURL(opts.BaseURL, defaultAPIBase),
		client:  shared.ClientOrDefault(opts.HTTPClient),
	}
}

func defaultDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "Cursor", "User", "globalStorage", "state.vscdb")
}

// Amounts are in cents.
type planUsage struct {
	TotalSpend    float64 `json:"totalSpend"`
	IncludedSpend float64 `json:"includedSpend"`
	Remaining     float64 `json:"remaining"`
	Limit         float64 `json:"limit"`
}

type spendLimitUsage struct {
	IndividualLimit     float64 `json:"individualLimit"`
	IndividualRemaining float64 `json:"individualRemaining"`
}

type currentPeriodUsageResp struct {
	BillingCycleStart string           `json:"billingCycleStart"`
	BillingCycleEnd   string           `json:"billingCycleEnd"`
	PlanUsage         *planUsage       `json:"planUsage"`
	SpendLimitUsage   *spendLimitUsage `json:"spendLimitUsage"`
	Enabled           bool             `json:"enabled"`
}

type stripeProfileResp struct {
	MembershipType string `json:"membershipType"`
}

func (p *Provider) Fetch(ctx context.Context) core.ProviderUsage {
	usage := p.NewUsage()

	token, err := credstore.ReadItem(ctx, p.dbPath, keyAccessToken)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			log.Printf("[cursor] reading %s: %v", p.dbPath, err)
		}
		usage.Fail(core.NoCredentials("No Cursor auth token found"))
		return usage
	}
	usage.Available = true

	email := p.readOptionalItem(ctx, keyCachedEmail)
	plan := p.fetchMembership(ctx, token)
	if plan == "" {
		plan = p.readOptionalItem(ctx, keyMembershipType)
	}

	var resp currentPeriodUsageResp
	if err := p.callDashboardAPI(ctx, token, "GetCurrentPeriodUsage", &resp); err != nil {
		usage.SetAccount(email, plan)
		usage.Fail(err)
		return usage
	}

	usage.SetAccount(email, planLabel(plan, resp.SpendLimitUsage))
	applyPeriodUsage(&resp, &usage)
	return usage
}

func (p *Provider) readOptionalItem(ctx context.Context, key string) string {
	value, err := credstore.ReadItem(ctx, p.dbPath, key)
	if err != nil {
		return ""
	}
	return value
}

// fetchMembership is best effort: any failure leaves the plan to the
// locally cached membership type.
func (p *Provider) fetchMembership(ctx context.Context, token string) string {
	var profile stripeProfileResp
	if err := p.callRESTAPI(ctx, token, "/auth/full_stripe_profile", &profile); err != nil {
		log.Printf("[cursor] stripe profile: %v", err)
		return ""
	}
	return profile.MembershipType
}

func (p *Provider) callDashboardAPI(ctx context.Context, token, method string, result any) error {
	url := fmt.Sprintf("%s/aiserver.v1.DashboardService/%s", p.baseURL, method)
	req, err := shared.NewRequest(ctx, http.MethodPost, url, "Bearer "+token, struct{}{}, map[string]string{
		"Connect-Protocol-Version": "1",
	})
	if err != nil {
		return core.Transport(err)
	}
	_, err = shared.DoJSON(p.client, req, result, false)
	return err
}

func (p *Provider) callRESTAPI(ctx context.Context, token, path string, result any) error {
	req, err := shared.NewRequest(ctx, http.MethodGet, p.baseURL+path, "Bearer "+token, nil, nil)
	if err != nil {
		return core.Transport(err)
	}
	_, err = shared.DoJSON(p.client, req, result, false)
	return err
}

func planLabel(plan string, spend *spendLimitUsage) string {
	var limit string
	if spend != nil && spend.IndividualLimit > 0 {
		limit = fmt.Sprintf("$%.0f limit", spend.IndividualLimit/100)
	}
	return strings.Join(lo.Compact([]string{plan, limit}), " · ")
}

func applyPeriodUsage(resp *currentPeriodUsageResp, usage *core.ProviderUsage) {
	resetsAt := core.FormatReset(parseTimestamp(resp.BillingCycleEnd))

	if pu := resp.PlanUsage; pu != nil && pu.Limit > 0 {
		limit := pu.Limit / 100
		used := pu.TotalSpend / 100
		usage.Primary = &core.UsageWindow{
			PercentUsed: core.Percent(used, limit),
			ResetsAt:    resetsAt,
			Label:       fmt.Sprintf("Plan ($%.2f / $%.2f)", used, limit),
		}
	}

	if sl := resp.SpendLimitUsage; sl != nil && sl.IndividualLimit > 0 {
		limit := sl.IndividualLimit / 100
		used := limit - sl.IndividualRemaining/100
		usage.Secondary = &core.UsageWindow{
			PercentUsed: core.Percent(used, limit),
			ResetsAt:    resetsAt,
			Label:       fmt.Sprintf("Limit ($%.2f / $%.2f)", used, limit),
		}
	}
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms > 1e12 { // epoch millis
			return time.UnixMilli(ms)
		}
		return time.Unix(ms, 0) // epoch secs
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
