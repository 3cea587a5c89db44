package providerbase

import (
	"testing"

	"github.com/janekbaraniewski/codexbar/internal/core"
)

func TestNew_NormalizesSpec(t *testing.T) {
	b := New(core.ProviderSpec{})
	if b.ID() != "unknown" {
		t.Errorf("ID() = %q, want unknown", b.ID())
	}
	if b.Describe().Name != "unknown" {
		t.Errorf("Name = %q, want id fallback", b.Describe().Name)
	}
}

func TestNewUsage(t *testing.T) {
	b := New(core.ProviderSpec{
		ID:   "claude",
		Info: core.ProviderInfo{Name: "Claude Code"},
		Auth: core.ProviderAuthSpec{Type: core.ProviderAuthTypeOAuth, Refreshing: true},
	})

	u := b.NewUsage()
	if u.ID != "claude" || u.Name != "Claude Code" {
		t.Errorf("NewUsage() identity = %q/%q", u.ID, u.Name)
	}
	if u.Available || u.Error != "" || u.Primary != nil || u.Secondary != nil {
		t.Errorf("NewUsage() should start empty, got %+v", u)
	}
	if !b.Spec().Auth.Refreshing {
		t.Error("Spec() lost auth details")
	}
}
