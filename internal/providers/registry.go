package providers

import (
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexbar/internal/config"
	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/providers/claude_code"
	"github.com/janekbaraniewski/codexbar/internal/providers/codex"
	"github.com/janekbaraniewski/codexbar/internal/providers/copilot"
	"github.com/janekbaraniewski/codexbar/internal/providers/cursor"
	"github.com/janekbaraniewski/codexbar/internal/providers/kimi"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
)

type factory func(cfg config.Config, o config.ProviderOverride) core.UsageProvider

var factories = map[string]factory{
	"claude": func(cfg config.Config, o config.ProviderOverride) core.UsageProvider {
		return claude_code.New(claude_code.Options{
			CredentialsPath: o.CredentialsPath,
			UsageURL:        o.BaseURL,
			TokenURL:        o.TokenURL,
			HTTPClient:      httpClient(cfg),
		})
	},
	"codex": func(_ config.Config, o config.ProviderOverride) core.UsageProvider {
		return codex.New(codex.Options{
			AuthPath:    o.CredentialsPath,
			SessionsDir: o.SessionsDir,
			ScanDays:    o.ScanDays,
		})
	},
	"cursor": func(cfg config.Config, o config.ProviderOverride) core.UsageProvider {
		return cursor.New(cursor.Options{
			DBPath:     o.DBPath,
			BaseURL:    o.BaseURL,
			HTTPClient: httpClient(cfg),
		})
	},
	"copilot": func(cfg config.Config, o config.ProviderOverride) core.UsageProvider {
		return copilot.New(copilot.Options{
			Binary:     o.Binary,
			BaseURL:    o.BaseURL,
			HTTPClient: httpClient(cfg),
		})
	},
	"kimi": func(cfg config.Config, o config.ProviderOverride) core.UsageProvider {
		return kimi.New(kimi.Options{
			CredentialsPath: o.CredentialsPath,
			UsageURL:        o.BaseURL,
			TokenURL:        o.TokenURL,
			HTTPClient:      httpClient(cfg),
		})
	},
}

func httpClient(cfg config.Config) *http.Client {
	return shared.NewHTTPClient(time.Duration(cfg.HTTPTimeoutSeconds) * time.Second)
}

// IDs lists every registered provider id in canonical report order.
func IDs() []string {
	return append([]string(nil), config.DefaultProviders...)
}

func Known(id string) bool {
	_, ok := factories[normalizeID(id)]
	return ok
}

// ByID builds a single provider. Ids are matched case-insensitively.
func ByID(cfg config.Config, id string) (core.UsageProvider, bool) {
	id = normalizeID(id)
	f, ok := factories[id]
	if !ok {
		return nil, false
	}
	return f(cfg, cfg.Override(id)), true
}

// All builds the providers listed in cfg.Providers, in that order. Unknown
// and repeated ids are skipped.
func All(cfg config.Config) []core.UsageProvider {
	ids := lo.Uniq(lo.Map(cfg.Providers, func(id string, _ int) string { return normalizeID(id) }))
	ids = lo.Filter(ids, func(id string, _ int) bool { return Known(id) })

	out := make([]core.UsageProvider, 0, len(ids))
	for _, id := range ids {
		p, _ := ByID(cfg, id)
		out = append(out, p)
	}
	return out
}

func normalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "claude_code" {
		return "claude"
	}
	return id
}
