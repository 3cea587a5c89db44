package cursor

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func createStateDB(t *testing.T, items map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.vscdb")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for k, v := range items {
		if _, err := db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, k, v); err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}
	return path
}

func newCursorServer(t *testing.T, profileStatus int, usageBody string, usageStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/full_stripe_profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("profile method = %s", r.Method)
		}
		if profileStatus != http.StatusOK {
			w.WriteHeader(profileStatus)
			return
		}
		w.Write([]byte(`{"membershipType":"pro"}`))
	})
	mux.HandleFunc("/aiserver.v1.DashboardService/GetCurrentPeriodUsage", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("usage method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cursor-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Connect-Protocol-Version"); got != "1" {
			t.Errorf("Connect-Protocol-Version = %q", got)
		}
		if usageStatus != http.StatusOK {
			w.WriteHeader(usageStatus)
			return
		}
		w.Write([]byte(usageBody))
	})
	return httptest.NewServer(mux)
}

func TestFetch_NoToken(t *testing.T) {
	tests := []struct {
		name   string
		dbPath func(t *testing.T) string
	}{
		{"missing database", func(t *testing.T) string { return filepath.Join(t.TempDir(), "state.vscdb") }},
		{"missing key", func(t *testing.T) string {
			return createStateDB(t, map[string]string{keyCachedEmail: "dev@example.com"})
		}},
		{"empty token", func(t *testing.T) string {
			return createStateDB(t, map[string]string{keyAccessToken: ""})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(Options{DBPath: tt.dbPath(t), BaseURL: "http://127.0.0.1:0"}).Fetch(context.Background())
			if got.Available {
				t.Fatal("expected unavailable")
			}
			if got.Error != "No Cursor auth token found" {
				t.Errorf("error = %q", got.Error)
			}
		})
	}
}

func TestFetch_Usage(t *testing.T) {
	db := createStateDB(t, map[string]string{
		keyAccessToken:    "cursor-token",
		keyCachedEmail:    "dev@example.com",
		keyMembershipType: "free",
	})
	srv := newCursorServer(t, http.StatusOK, `{
		"billingCycleStart": "1769904000000",
		"billingCycleEnd": "1772323200000",
		"planUsage": {"totalSpend": 1234, "includedSpend": 1234, "remaining": 766, "limit": 2000},
		"spendLimitUsage": {"individualLimit": 5000, "individualRemaining": 4000},
		"enabled": true
	}`, http.StatusOK)
	defer srv.Close()

	got := New(Options{DBPath: db, BaseURL: srv.URL}).Fetch(context.Background())
	if got.Error != "" {
		t.Fatalf("unexpected error: %s", got.Error)
	}
	if got.Primary == nil || got.Primary.PercentUsed != 62 || got.Primary.Label != "Plan ($12.34 / $20.00)" {
		t.Errorf("primary = %+v", got.Primary)
	}
	if got.Primary != nil && got.Primary.ResetsAt != "2026-03-01T00:00:00.000Z" {
		t.Errorf("resets_at = %q", got.Primary.ResetsAt)
	}
	if got.Secondary == nil || got.Secondary.PercentUsed != 20 || got.Secondary.Label != "Limit ($10.00 / $50.00)" {
		t.Errorf("secondary = %+v", got.Secondary)
	}
	if got.Account == nil || got.Account.Email != "dev@example.com" || got.Account.Plan != "pro · $50 limit" {
		t.Errorf("account = %+v", got.Account)
	}
}

func TestFetch_ProfileFailureFallsBackToCachedPlan(t *testing.T) {
	db := createStateDB(t, map[string]string{
		keyAccessToken:    "cursor-token",
		keyMembershipType: "free",
	})
	srv := newCursorServer(t, http.StatusUnauthorized, `{"planUsage":{"totalSpend":0,"limit":0}}`, http.StatusOK)
	defer srv.Close()

	got := New(Options{DBPath: db, BaseURL: srv.URL}).Fetch(context.Background())
	if got.Account == nil || got.Account.Plan != "free" {
		t.Errorf("account = %+v", got.Account)
	}
	if got.Primary != nil || got.Secondary != nil {
		t.Errorf("zero limits must not produce windows: %+v %+v", got.Primary, got.Secondary)
	}
}

func TestFetch_UsageErrorKeepsAccount(t *testing.T) {
	db := createStateDB(t, map[string]string{
		keyAccessToken: "cursor-token",
		keyCachedEmail: "dev@example.com",
	})
	srv := newCursorServer(t, http.StatusOK, "", http.StatusInternalServerError)
	defer srv.Close()

	got := New(Options{DBPath: db, BaseURL: srv.URL}).Fetch(context.Background())
	if !got.Available {
		t.Fatal("expected available")
	}
	if got.Error != "API 500" {
		t.Errorf("error = %q, want %q", got.Error, "API 500")
	}
	if got.Account == nil || got.Account.Email != "dev@example.com" || got.Account.Plan != "pro" {
		t.Errorf("account = %+v", got.Account)
	}
}

func TestPlanLabel(t *testing.T) {
	tests := []struct {
		plan  string
		spend *spendLimitUsage
		want  string
	}{
		{"pro", nil, "pro"},
		{"", &spendLimitUsage{IndividualLimit: 2000}, "$20 limit"},
		{"pro", &spendLimitUsage{IndividualLimit: 0}, "pro"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		if got := planLabel(tt.plan, tt.spend); got != tt.want {
			t.Errorf("planLabel(%q, %+v) = %q, want %q", tt.plan, tt.spend, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	if got := parseTimestamp("1772323200000"); got.Unix() != 1772323200 {
		t.Errorf("millis parse = %v", got)
	}
	if got := parseTimestamp("1772323200"); got.Unix() != 1772323200 {
		t.Errorf("seconds parse = %v", got)
	}
	if got := parseTimestamp("not a time"); !got.IsZero() {
		t.Errorf("garbage parse = %v", got)
	}
}
