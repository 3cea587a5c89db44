package claude_code

import (
	"context"
	"net/http"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
)

const oauthBetaHeader = "oauth-2025-04-20"

type usageResponse struct {
	FiveHour       *usageBucket `json:"five_hour"`
	SevenDay       *usageBucket `json:"seven_day"`
	SevenDaySonnet *usageBucket `json:"seven_day_sonnet"`
	SevenDayOpus   *usageBucket `json:"seven_day_opus"`
}

type usageBucket struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    *string `json:"resets_at"`
}

func (p *Provider) fetchUsageAPI(ctx context.Context, accessToken string) (*usageResponse, error) {
	req, err := shared.NewRequest(ctx, http.MethodGet, p.usageURL, "Bearer "+accessToken, nil, map[string]string{
		"anthropic-beta": oauthBetaHeader,
	})
	if err != nil {
		return nil, core.Transport(err)
	}

	var usage usageResponse
	if _, err := shared.DoJSON(p.client, req, &usage, true); err != nil {
		return nil, err
	}
	return &usage, nil
}

func applyUsage(usage *usageResponse, out *core.ProviderUsage) {
	if usage == nil {
		return
	}
	if w, ok := bucketWindow(usage.FiveHour, "Session (5h)"); ok {
		out.Primary = &w
	}

	switch {
	case usage.SevenDay != nil:
		if w, ok := bucketWindow(usage.SevenDay, "Weekly (7d)"); ok {
			out.Secondary = &w
		}
	case usage.SevenDayOpus != nil:
		if w, ok := bucketWindow(usage.SevenDayOpus, "Weekly Opus (7d)"); ok {
			out.Secondary = &w
		}
	case usage.SevenDaySonnet != nil:
		if w, ok := bucketWindow(usage.SevenDaySonnet, "Weekly Sonnet (7d)"); ok {
			out.Secondary = &w
		}
	}
}

func bucketWindow(b *usageBucket, label string) (core.UsageWindow, bool) {
	if b == nil {
		return core.UsageWindow{}, false
	}
	w := core.UsageWindow{
		PercentUsed: core.RoundPercent(b.Utilization),
		Label:       label,
	}
	if b.ResetsAt != nil {
		w.ResetsAt = *b.ResetsAt
	}
	return w, true
}
