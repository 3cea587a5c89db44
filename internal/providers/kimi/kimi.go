// Package kimi reports Kimi Code subscription usage.
package kimi

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
	"github.com/janekbaraniewski/codexbar/internal/oauth"
	"github.com/janekbaraniewski/codexbar/internal/providers/providerbase"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
	"github.com/janekbaraniewski/codexbar/internal/version"
)

const (
	defaultUsageURL = "https://api.kimi.com/coding/v1/usages"
	defaultTokenURL = "https://auth.kimi.com/api/oauth/token"
	oauthClientID   = "17e5f671-d194-4dfb-9706-5516cb48c098"
)

type Options struct {
	CredentialsPath string // default ~/.kimi/credentials/kimi-code.json
	UsageURL        string
	TokenURL        string
	HTTPClient      *http.Client
	Now             func() time.Time
}

type Provider struct {
	providerbase.Base

	credentialsPath string
	usageURL        string
	refresher       *oauth.Refresher
	client          *http.Client
}

func New(opts Options) *Provider {
	client := shared.ClientOrDefault(opts.HTTPClient)
	home, _ := os.UserHomeDir()

	return &Provider{
		Base: providerbase.New(core.ProviderSpec{
			ID: "kimi",
			Info: core.ProviderInfo{
				Name:         "Kimi Code",
				Capabilities: []string{"oauth_refresh", "usage_endpoint", "window_limits"},
				DocURL:       "https://www.kimi.com/coding",
			},
			Auth: core.ProviderAuthSpec{
				Type:       core.ProviderAuthTypeOAuth,
				Store:      "~/.kimi/credentials/kimi-code.json",
				Refreshing: true,
			},
		}),
		credentialsPath: shared.FirstNonEmpty(opts.CredentialsPath, filepath.Join(home, ".kimi", "credentials", "kimi-code.json")),
		usageURL:        shared.FirstNonEmpty(opts.UsageURL, defaultUsageURL),
		refresher: &oauth.Refresher{
			TokenURL:   shared.FirstNonEmpty(opts.TokenURL, defaultTokenURL),
			ClientID:   oauthClientID,
			Encoding:   oauth.EncodingForm,
			HTTPClient: client,
			UserAgent:  version.UserAgent(),
			Now:        opts.Now,
		},
		client: client,
	}
}

type credentials struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresAt    float64 `json:"expires_at"` // unix seconds
	Scope        string  `json:"scope"`
	TokenType    string  `json:"token_type"`
}

func (c credentials) token() oauth.Token {
	sec, frac := math.Modf(c.ExpiresAt)
	return oauth.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    time.Unix(int64(sec), int64(frac*1e9)),
		Scope:        c.Scope,
		TokenType:    c.TokenType,
	}
}

func (p *Provider) persistFor(doc credstore.Document) oauth.Persist {
	return func(tok oauth.Token) error {
		updated, err := doc.WithFields(map[string]any{
			"access_token":  tok.AccessToken,
			"refresh_token": tok.RefreshToken,
			"expires_at":    float64(tok.ExpiresAt.UnixMilli()) / 1000,
			"scope":         tok.Scope,
			"token_type":    tok.TokenType,
		})
		if err != nil {
			return err
		}
		return credstore.WriteJSONAtomic(p.credentialsPath, updated, "    ")
	}
}

// number accepts both JSON numbers and numeric strings.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = number(v)
	return nil
}

type usageDetail struct {
	Used      *number `json:"used"`
	Limit     *number `json:"limit"`
	Remaining *number `json:"remaining"`
	Name      string  `json:"name"`
	ResetTime string  `json:"resetTime"`
}

type usageLimit struct {
	Detail *usageDetail `json:"detail"`
	Window *struct {
		Duration number `json:"duration"`
		TimeUnit string `json:"timeUnit"`
	} `json:"window"`
}

type usageResponse struct {
	Usage  *usageDetail `json:"usage"`
	Limits []usageLimit `json:"limits"`
}

func (p *Provider) Fetch(ctx context.Context) core.ProviderUsage {
	usage := p.NewUsage()

	doc, err := credstore.LoadDocument(p.credentialsPath)
	var creds credentials
	if err == nil {
		err = doc.DecodeAll(&creds)
	}
	if err != nil {
		log.Printf("[kimi] %v", err)
		usage.Fail(core.NoCredentials("No credentials found"))
		return usage
	}
	usage.Available = true

	tok, _, err := p.refresher.Ensure(ctx, creds.token(), p.persistFor(doc))
	if err != nil {
		usage.Fail(core.RefreshFailed(err))
		return usage
	}

	req, err := shared.NewRequest(ctx, http.MethodGet, p.usageURL, "Bearer "+tok.AccessToken, nil, nil)
	if err != nil {
		usage.Fail(core.Transport(err))
		return usage
	}

	var resp usageResponse
	status, err := shared.DoJSON(p.client, req, &resp, false)
	if status == http.StatusForbidden {
		usage.Fail(core.APIMessage(status, "Usage requires paid plan"))
		return usage
	}
	if err != nil {
		usage.Fail(err)
		return usage
	}

	applyUsage(&resp, &usage)
	return usage
}

func applyUsage(resp *usageResponse, usage *core.ProviderUsage) {
	if resp.Usage != nil {
		w := detailWindow(resp.Usage)
		w.Label = shared.FirstNonEmpty(resp.Usage.Name, "Weekly")
		usage.AddWindow(w)
	}

	for _, item := range resp.Limits {
		if item.Detail == nil {
			continue
		}
		w := detailWindow(item.Detail)
		w.Label = limitLabel(item)
		if !usage.AddWindow(w) {
			break
		}
	}
}

func detailWindow(d *usageDetail) core.UsageWindow {
	var limit, used float64
	if d.Limit != nil {
		limit = float64(*d.Limit)
	}
	switch {
	case d.Used != nil:
		used = float64(*d.Used)
	case d.Remaining != nil:
		used = limit - float64(*d.Remaining)
	default:
		used = limit
	}

	w := core.UsageWindow{PercentUsed: core.Percent(used, limit)}
	if t, err := time.Parse(time.RFC3339Nano, d.ResetTime); err == nil {
		w.ResetsAt = core.FormatReset(t)
	}
	return w
}

func limitLabel(item usageLimit) string {
	label := shared.FirstNonEmpty(item.Detail.Name, "Limit")
	if item.Window == nil || item.Window.Duration == 0 {
		return label
	}

	dur := float64(item.Window.Duration)
	unit := item.Window.TimeUnit
	switch {
	case strings.Contains(unit, "MINUTE") && dur >= 60:
		return fmt.Sprintf("%sh limit", formatFloat(dur/60))
	case strings.Contains(unit, "HOUR"):
		return fmt.Sprintf("%sh limit", formatFloat(dur))
	case strings.Contains(unit, "DAY"):
		return fmt.Sprintf("%sd limit", formatFloat(dur))
	}
	return label
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
