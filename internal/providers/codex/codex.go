package codex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/codexbar/internal/core"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
	"github.com/janekbaraniewski/codexbar/internal/providers/providerbase"
	"github.com/janekbaraniewski/codexbar/internal/providers/shared"
)

const (
	defaultCodexConfigDir = ".codex"
	defaultScanDays       = 7

	maxScannerBufferSize = 8 * 1024 * 1024

	openAIAuthClaim = "https://api.openai.com/auth"
)

type Options struct {
	AuthPath    string // default ~/.codex/auth.json
	SessionsDir string // default ~/.codex/sessions
	ScanDays    int
	Now         func() time.Time
}

type Provider struct {
	providerbase.Base

	authPath    string
	sessionsDir string
	scanDays    int
	now         func() time.Time
}

func New(opts Options) *Provider {
	configDir := codexHome()
	scanDays := opts.ScanDays
	if scanDays <= 0 {
		scanDays = defaultScanDays
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Provider{
		Base: providerbase.New(core.ProviderSpec{
			ID: "codex",
			Info: core.ProviderInfo{
				Name:         "Codex",
				Capabilities: []string{"local_sessions", "rate_limits", "jwt_account"},
				DocURL:       "https://github.com/openai/codex",
			},
			Auth: core.ProviderAuthSpec{
				Type:  core.ProviderAuthTypeLocal,
				Store: "~/.codex/auth.json",
			},
		}),
		authPath:    shared.FirstNonEmpty(opts.AuthPath, filepath.Join(configDir, "auth.json")),
		sessionsDir: shared.FirstNonEmpty(opts.SessionsDir, filepath.Join(configDir, "sessions")),
		scanDays:    scanDays,
		now:         now,
	}
}

func codexHome() string {
	if dir := os.Getenv("CODEX_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultCodexConfigDir)
}

type authFile struct {
	Tokens authTokens `json:"tokens"`
}

type authTokens struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
}

type sessionEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type eventPayload struct {
	Type       string      `json:"type"`
	RateLimits *rateLimits `json:"rate_limits,omitempty"`
}

type rateLimits struct {
	Primary   *rateLimitBucket `json:"primary,omitempty"`
	Secondary *rateLimitBucket `json:"secondary,omitempty"`
	PlanType  *string          `json:"plan_type,omitempty"`
}

type rateLimitBucket struct {
	UsedPercent     float64 `json:"used_percent"`
	WindowMinutes   float64 `json:"window_minutes"`
	ResetsAt        int64   `json:"resets_at"` // Unix timestamp
	ResetsInSeconds *int64  `json:"resets_in_seconds,omitempty"`
}

// rateLimitEvent is a token_count event that carried rate limit data.
type rateLimitEvent struct {
	At     time.Time
	Limits rateLimits
}

func (p *Provider) Fetch(ctx context.Context) core.ProviderUsage {
	usage := p.NewUsage()

	var auth authFile
	if err := credstore.ReadJSON(p.authPath, &auth); err != nil {
		log.Printf("[codex] %v", err)
		usage.Fail(core.NoCredentials("No credentials found"))
		return usage
	}
	usage.Available = true

	email, plan := accountFromIDToken(auth.Tokens.IDToken)

	files := p.recentSessionFiles()
	if len(files) == 0 {
		usage.SetAccount(email, plan)
		usage.Fail(core.NoUsageData("No recent session data"))
		return usage
	}

	event, err := firstRateLimitEvent(ctx, files)
	if err != nil {
		usage.SetAccount(email, plan)
		usage.Fail(core.Transport(err))
		return usage
	}
	if event == nil {
		usage.SetAccount(email, plan)
		usage.Fail(core.NoUsageData("No rate limit data in sessions"))
		return usage
	}

	if plan == "" && event.Limits.PlanType != nil {
		plan = *event.Limits.PlanType
	}
	usage.SetAccount(email, plan)

	if b := event.Limits.Primary; b != nil {
		usage.Primary = &core.UsageWindow{
			PercentUsed: core.RoundPercent(b.UsedPercent),
			ResetsAt:    core.FormatReset(bucketReset(b, event.At)),
			Label:       fmt.Sprintf("Session (%sh)", formatHours(b.WindowMinutes)),
		}
	}
	if b := event.Limits.Secondary; b != nil {
		usage.Secondary = &core.UsageWindow{
			PercentUsed: core.RoundPercent(b.UsedPercent),
			ResetsAt:    core.FormatReset(bucketReset(b, event.At)),
			Label:       fmt.Sprintf("Weekly (%dd)", int(math.Round(b.WindowMinutes/60/24))),
		}
	}
	return usage
}

// accountFromIDToken reads email and plan from the id_token claims. The
// token is not verified; it only labels the account.
func accountFromIDToken(idToken string) (email, plan string) {
	claims := decodeJWTPayload(idToken)
	if claims == nil {
		return "", ""
	}
	email, _ = claims["email"].(string)
	if authClaims, ok := claims[openAIAuthClaim].(map[string]any); ok {
		plan, _ = authClaims["chatgpt_plan_type"].(string)
	}
	return email, plan
}

func decodeJWTPayload(token string) map[string]any {
	parts := strings.SplitN(token, ".", 3)
	if len(parts) < 2 {
		return nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil
	}

	var claims map[string]any
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil
	}
	return claims
}

// recentSessionFiles lists session logs from the newest scanDays date
// partitions (sessions/YYYY/MM/DD), newest partition first and newest file
// first within a partition.
func (p *Provider) recentSessionFiles() []string {
	today := p.now().Local()
	var files []string
	for offset := 0; offset < p.scanDays; offset++ {
		day := today.AddDate(0, 0, -offset)
		dayDir := filepath.Join(p.sessionsDir, day.Format("2006"), day.Format("01"), day.Format("02"))

		entries, err := os.ReadDir(dayDir)
		if err != nil {
			continue
		}
		var names []string
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
				names = append(names, entry.Name())
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		for _, name := range names {
			files = append(files, filepath.Join(dayDir, name))
		}
	}
	return files
}

// firstRateLimitEvent returns the newest rate limit event across files, which
// must already be ordered newest first. Unreadable files are skipped.
func firstRateLimitEvent(ctx context.Context, files []string) (*rateLimitEvent, error) {
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		event, err := lastRateLimitEvent(path)
		if err != nil {
			log.Printf("[codex] skipping %s: %v", path, err)
			continue
		}
		if event != nil {
			return event, nil
		}
	}
	return nil, nil
}

func lastRateLimitEvent(path string) (*rateLimitEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 256*1024)
	scanner.Buffer(buf, maxScannerBufferSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.Contains(line, []byte(`"token_count"`)) {
			continue
		}
		lines = append(lines, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i := len(lines) - 1; i >= 0; i-- {
		var event sessionEvent
		if err := json.Unmarshal(lines[i], &event); err != nil {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			continue
		}
		if payload.Type != "token_count" || payload.RateLimits == nil {
			continue
		}
		at, _ := time.Parse(time.RFC3339Nano, event.Timestamp)
		return &rateLimitEvent{At: at, Limits: *payload.RateLimits}, nil
	}
	return nil, nil
}

func bucketReset(b *rateLimitBucket, eventAt time.Time) time.Time {
	if b.ResetsAt > 0 {
		return time.Unix(b.ResetsAt, 0)
	}
	if b.ResetsInSeconds != nil && !eventAt.IsZero() {
		return eventAt.Add(time.Duration(*b.ResetsInSeconds) * time.Second)
	}
	return time.Time{}
}

func formatHours(minutes float64) string {
	return strconv.FormatFloat(minutes/60, 'f', -1, 64)
}
