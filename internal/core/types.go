package core

import (
	"encoding/json"
	"time"
)

// UsageWindow is one quota period reported by a provider.
type UsageWindow struct {
	PercentUsed int    `json:"percent_used"`
	ResetsAt    string `json:"resets_at,omitempty"` // RFC3339
	Label       string `json:"label"`
}

type AccountInfo struct {
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan,omitempty"`
}

// ProviderUsage is the normalized result of a single provider fetch.
// Available reports whether an account is configured, not whether usage
// could be obtained.
type ProviderUsage struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Available bool         `json:"available"`
	Error     string       `json:"error,omitempty"`
	Primary   *UsageWindow `json:"primary,omitempty"`
	Secondary *UsageWindow `json:"secondary,omitempty"`
	Account   *AccountInfo `json:"account,omitempty"`

	Kind ErrorKind `json:"-"`
}

// Report is the aggregate record produced by one invocation.
type Report struct {
	Providers      []ProviderUsage `json:"providers"`
	ActiveProvider string          `json:"active_provider,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// MarshalJSON renders the timestamp with millisecond precision, the format
// every reset time in the report also uses.
func (r Report) MarshalJSON() ([]byte, error) {
	type report Report
	return json.Marshal(struct {
		report
		Timestamp string `json:"timestamp"`
	}{report: report(r), Timestamp: FormatReset(r.Timestamp)})
}

func NewReport(now time.Time) Report {
	return Report{
		Providers: []ProviderUsage{},
		Timestamp: now.UTC(),
	}
}

// Fail records err on the usage. Unavailable results never carry windows.
func (u *ProviderUsage) Fail(err error) {
	if err == nil {
		return
	}
	u.Error = err.Error()
	u.Kind = KindOf(err)
	if !u.Available {
		u.Primary = nil
		u.Secondary = nil
	}
}

// SetAccount attaches account info, skipping records with no fields set.
func (u *ProviderUsage) SetAccount(email, plan string) {
	if email == "" && plan == "" {
		return
	}
	u.Account = &AccountInfo{Email: email, Plan: plan}
}

// AddWindow fills the primary slot first, then the secondary one. It reports
// false when both slots are taken.
func (u *ProviderUsage) AddWindow(w UsageWindow) bool {
	switch {
	case u.Primary == nil:
		u.Primary = &w
	case u.Secondary == nil:
		u.Secondary = &w
	default:
		return false
	}
	return true
}

// Normalize enforces the invariants every emitted result must satisfy.
func (u *ProviderUsage) Normalize() {
	if !u.Available {
		u.Primary = nil
		u.Secondary = nil
		if u.Error == "" {
			u.Error = "No credentials found"
			u.Kind = KindNoCredentials
		}
	}
	for _, w := range []*UsageWindow{u.Primary, u.Secondary} {
		if w == nil {
			continue
		}
		if w.Label == "" {
			w.Label = "Usage"
		}
		if w.PercentUsed < 0 {
			w.PercentUsed = 0
		}
	}
}

// FormatReset renders a reset instant the way every provider reports it.
func FormatReset(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
