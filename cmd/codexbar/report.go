package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexbar/internal/config"
	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
	"github.com/janekbaraniewski/codexbar/internal/detect"
	"github.com/janekbaraniewski/codexbar/internal/providers"
	"github.com/janekbaraniewski/codexbar/internal/render"
)

type reportOptions struct {
	all        bool
	provider   string
	detect     bool
	format     string
	configPath string
}

type activeDetector interface {
	Active(ctx context.Context) string
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func runReport(ctx context.Context, stdout, stderr io.Writer, opts reportOptions) error {
	if opts.format != "" && !lo.Contains(render.Formats, strings.ToLower(opts.format)) {
		return fmt.Errorf("unknown output format %q (want one of %s)", opts.format, strings.Join(render.Formats, ", "))
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	selected := selectProviders(cfg, opts)
	if !opts.all && opts.provider != "" && len(selected) == 0 {
		fmt.Fprintf(stderr, "codexbar: unknown provider %q (known: %v)\n", opts.provider, providers.IDs())
	}

	var det activeDetector
	if opts.detect {
		det = detect.New(cfg.Detect, credstore.ExecRunner{})
	}

	report := buildReport(ctx, selected, det, time.Now)
	return render.Write(stdout, opts.format, report)
}

// selectProviders resolves the flags to the providers to fetch. --all wins
// over --provider; neither selects nothing.
func selectProviders(cfg config.Config, opts reportOptions) []core.UsageProvider {
	switch {
	case opts.all:
		return providers.All(cfg)
	case opts.provider != "":
		if p, ok := providers.ByID(cfg, opts.provider); ok {
			return []core.UsageProvider{p}
		}
	}
	return nil
}

// buildReport fetches usage and runs detection concurrently, then stamps the
// report once both are done.
func buildReport(ctx context.Context, selected []core.UsageProvider, det activeDetector, now func() time.Time) core.Report {
	activeCh := make(chan string, 1)
	if det != nil {
		go func() { activeCh <- det.Active(ctx) }()
	} else {
		activeCh <- ""
	}

	var results []core.ProviderUsage
	if len(selected) == 1 {
		results = []core.ProviderUsage{core.FetchOne(ctx, selected[0])}
	} else {
		results = core.Collect(ctx, selected)
	}

	report := core.NewReport(now())
	report.Providers = append(report.Providers, results...)
	report.ActiveProvider = <-activeCh
	log.Printf("[codexbar] %d providers, active %q", len(report.Providers), report.ActiveProvider)
	return report
}
