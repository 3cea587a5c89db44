// Package render writes a usage report for status bars (JSON) or people
// (text).
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexbar/internal/core"
)

const (
	FormatJSON = "json"
	FormatText = "text"

	gaugeWidth = 20
)

var Formats = []string{FormatJSON, FormatText}

// Write renders report in the named format.
func Write(w io.Writer, format string, report core.Report) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return JSON(w, report)
	case FormatText:
		return Text(w, report)
	}
	return fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// JSON writes the report as a single line.
func JSON(w io.Writer, report core.Report) error {
	return json.NewEncoder(w).Encode(report)
}

// Text writes one block per provider with a gauge for every usage window.
func Text(w io.Writer, report core.Report) error {
	s := newStyles(lipgloss.NewRenderer(w))

	var b strings.Builder
	for i, u := range report.Providers {
		if i > 0 {
			b.WriteString("\n")
		}
		writeProvider(&b, s, u, u.ID == report.ActiveProvider && report.ActiveProvider != "", report.Timestamp)
	}
	if report.ActiveProvider != "" && !lo.ContainsBy(report.Providers, func(u core.ProviderUsage) bool {
		return u.ID == report.ActiveProvider
	}) {
		if len(report.Providers) > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s\n", s.label.Render("active:"), s.active.Render(report.ActiveProvider))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeProvider(b *strings.Builder, s styles, u core.ProviderUsage, active bool, now time.Time) {
	marker := " "
	if active {
		marker = s.active.Render("●")
	}
	header := marker + " " + s.name.Render(u.Name)
	if acct := accountLine(u.Account); acct != "" {
		header += "  " + s.dim.Render(acct)
	}
	b.WriteString(header + "\n")

	if !u.Available {
		b.WriteString("    " + s.auth.Render(u.Error) + "\n")
		return
	}

	windows := lo.Compact([]*core.UsageWindow{u.Primary, u.Secondary})
	labelWidth := lo.Max(lo.Map(windows, func(w *core.UsageWindow, _ int) int { return lipgloss.Width(w.Label) }))
	for _, win := range windows {
		line := "    " + s.label.Render(padRight(win.Label, labelWidth)) + "  " + s.usageGauge(win.PercentUsed, gaugeWidth)
		if reset := formatReset(win.ResetsAt, now); reset != "" {
			line += "  " + s.dim.Render(reset)
		}
		b.WriteString(line + "\n")
	}

	if u.Error != "" {
		b.WriteString("    " + s.err.Render(u.Error) + "\n")
	}
}

func accountLine(a *core.AccountInfo) string {
	if a == nil {
		return ""
	}
	return strings.Join(lo.Compact([]string{a.Plan, a.Email}), " · ")
}

func padRight(s string, width int) string {
	if pad := width - lipgloss.Width(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

// formatReset renders a reset instant relative to now. Values that are not
// full timestamps (e.g. a bare date) are shown as given.
func formatReset(raw string, now time.Time) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "resets " + raw
	}
	d := t.Sub(now)
	if now.IsZero() || d <= 0 {
		return "resets " + t.Local().Format("Jan 02 15:04")
	}
	return "resets in " + formatDuration(d)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
