package codex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.Local)

func fakeJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

type fixture struct {
	dir      string
	authPath string
	sessions string
}

func newFixture(t *testing.T, withAuth bool) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		authPath: filepath.Join(dir, "auth.json"),
		sessions: filepath.Join(dir, "sessions"),
	}
	if withAuth {
		idToken := fakeJWT(t, map[string]any{
			"email": "dev@example.com",
			openAIAuthClaim: map[string]any{
				"chatgpt_plan_type": "plus",
			},
		})
		auth := `{"OPENAI_API_KEY":null,"tokens":{"id_token":"` + idToken + `","access_token":"at"}}`
		if err := os.WriteFile(f.authPath, []byte(auth), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func (f fixture) writeSession(t *testing.T, day time.Time, name, content string) {
	t.Helper()
	dayDir := filepath.Join(f.sessions, day.Format("2006"), day.Format("01"), day.Format("02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dayDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f fixture) provider() *Provider {
	return New(Options{
		AuthPath:    f.authPath,
		SessionsDir: f.sessions,
		Now:         func() time.Time { return testNow },
	})
}

const tokenCountLine = `{"timestamp":"2026-02-10T00:00:03Z","type":"event_msg","payload":{"type":"token_count","info":null,"rate_limits":{"primary":{"used_percent":20.4,"window_minutes":300,"resets_at":1770700100},"secondary":{"used_percent":80.0,"window_minutes":10080,"resets_at":1770934095},"plan_type":null}}}`

func TestProviderID(t *testing.T) {
	p := New(Options{})
	if p.ID() != "codex" {
		t.Errorf("expected ID 'codex', got %q", p.ID())
	}
	if name := p.Describe().Name; name != "Codex" {
		t.Errorf("expected name 'Codex', got %q", name)
	}
}

func TestFetch_MissingAuth(t *testing.T) {
	f := newFixture(t, false)
	got := f.provider().Fetch(context.Background())
	if got.Available {
		t.Fatal("expected unavailable")
	}
	if got.Error != "No credentials found" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestFetch_NoSessionFiles(t *testing.T) {
	f := newFixture(t, true)
	got := f.provider().Fetch(context.Background())
	if !got.Available {
		t.Fatal("expected available")
	}
	if got.Error != "No recent session data" {
		t.Errorf("error = %q", got.Error)
	}
	if got.Account == nil || got.Account.Email != "dev@example.com" || got.Account.Plan != "plus" {
		t.Errorf("account = %+v", got.Account)
	}
}

func TestFetch_NoRateLimitEvent(t *testing.T) {
	f := newFixture(t, true)
	f.writeSession(t, testNow, "rollout-a.jsonl",
		`{"timestamp":"2026-02-10T00:00:01Z","type":"session_meta","payload":{"id":"s"}}`+"\n"+
			`{"timestamp":"2026-02-10T00:00:02Z","type":"event_msg","payload":{"type":"token_count","info":{}}}`+"\n")

	got := f.provider().Fetch(context.Background())
	if got.Error != "No rate limit data in sessions" {
		t.Errorf("error = %q", got.Error)
	}
	if got.Primary != nil {
		t.Errorf("primary = %+v, want nil", got.Primary)
	}
}

func TestFetch_LatestEventWins(t *testing.T) {
	f := newFixture(t, true)
	older := `{"timestamp":"2026-02-10T00:00:01Z","type":"event_msg","payload":{"type":"token_count","rate_limits":{"primary":{"used_percent":10,"window_minutes":300,"resets_at":1770700000},"secondary":{"used_percent":70,"window_minutes":10080,"resets_at":1770934000}}}}`
	f.writeSession(t, testNow, "rollout-2026-02-10T08-00-00.jsonl",
		older+"\n"+tokenCountLine+"\n"+`{"timestamp":"2026-02-10T00:00:04Z","type":"response_item","payload":{"type":"message"}}`+"\n")
	// An older partition must not be consulted once a newer one matches.
	f.writeSession(t, testNow.AddDate(0, 0, -1), "rollout-2026-02-09T08-00-00.jsonl",
		`{"timestamp":"2026-02-09T00:00:01Z","type":"event_msg","payload":{"type":"token_count","rate_limits":{"primary":{"used_percent":99,"window_minutes":300,"resets_at":1}}}}`+"\n")

	got := f.provider().Fetch(context.Background())
	if got.Error != "" {
		t.Fatalf("unexpected error: %s", got.Error)
	}
	if got.Primary == nil || got.Primary.PercentUsed != 20 || got.Primary.Label != "Session (5h)" {
		t.Errorf("primary = %+v", got.Primary)
	}
	if got.Primary != nil && got.Primary.ResetsAt != "2026-02-10T05:08:20.000Z" {
		t.Errorf("primary resets_at = %q", got.Primary.ResetsAt)
	}
	if got.Secondary == nil || got.Secondary.PercentUsed != 80 || got.Secondary.Label != "Weekly (7d)" {
		t.Errorf("secondary = %+v", got.Secondary)
	}
}

func TestFetch_NewerFileWithinPartition(t *testing.T) {
	f := newFixture(t, true)
	f.writeSession(t, testNow, "rollout-2026-02-10T01-00-00.jsonl", tokenCountLine+"\n")
	f.writeSession(t, testNow, "rollout-2026-02-10T09-00-00.jsonl",
		`{"timestamp":"2026-02-10T09:00:00Z","type":"event_msg","payload":{"type":"token_count","rate_limits":{"primary":{"used_percent":55,"window_minutes":300,"resets_at":1770700100}}}}`+"\n")

	got := f.provider().Fetch(context.Background())
	if got.Primary == nil || got.Primary.PercentUsed != 55 {
		t.Errorf("primary = %+v, want 55%%", got.Primary)
	}
	if got.Secondary != nil {
		t.Errorf("secondary = %+v, want nil", got.Secondary)
	}
}

func TestFetch_OutsideScanWindow(t *testing.T) {
	f := newFixture(t, true)
	f.writeSession(t, testNow.AddDate(0, 0, -7), "rollout-old.jsonl", tokenCountLine+"\n")

	got := f.provider().Fetch(context.Background())
	if got.Error != "No recent session data" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestFetch_PlanFallsBackToSessionPlanType(t *testing.T) {
	f := newFixture(t, false)
	if err := os.WriteFile(f.authPath, []byte(`{"tokens":{"id_token":"not-a-jwt"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	f.writeSession(t, testNow, "rollout.jsonl",
		`{"timestamp":"2026-02-10T00:00:00Z","type":"event_msg","payload":{"type":"token_count","rate_limits":{"primary":{"used_percent":1,"window_minutes":300,"resets_in_seconds":600},"plan_type":"pro"}}}`+"\n")

	got := f.provider().Fetch(context.Background())
	if got.Account == nil || got.Account.Plan != "pro" || got.Account.Email != "" {
		t.Errorf("account = %+v", got.Account)
	}
	if got.Primary == nil || got.Primary.ResetsAt != "2026-02-10T00:10:00.000Z" {
		t.Errorf("primary = %+v", got.Primary)
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{300, "5"},
		{150, "2.5"},
		{60, "1"},
	}
	for _, tt := range tests {
		if got := formatHours(tt.minutes); got != tt.want {
			t.Errorf("formatHours(%v) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestDecodeJWTPayload(t *testing.T) {
	if claims := decodeJWTPayload("garbage"); claims != nil {
		t.Errorf("expected nil claims, got %v", claims)
	}
	token := fakeJWT(t, map[string]any{"email": "a@b.c"})
	if claims := decodeJWTPayload(token); claims["email"] != "a@b.c" {
		t.Errorf("claims = %v", claims)
	}
}
