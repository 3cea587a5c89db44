package detect

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/janekbaraniewski/codexbar/internal/credstore"
)

// Window is the focused toplevel as reported by the compositor.
type Window struct {
	AppID string
	Title string
	PID   int
}

// WindowSource asks one compositor for its focused window.
type WindowSource interface {
	Name() string
	FocusedWindow(ctx context.Context) (Window, bool)
}

// Niri queries `niri msg --json focused-window`.
type Niri struct {
	Runner credstore.Runner
}

func (Niri) Name() string { return "niri" }

func (n Niri) FocusedWindow(ctx context.Context) (Window, bool) {
	var w struct {
		AppID *string `json:"app_id"`
		Title *string `json:"title"`
		PID   *int    `json:"pid"`
	}
	if !runJSON(ctx, n.Runner, &w, "niri", "msg", "--json", "focused-window") {
		return Window{}, false
	}
	return windowFrom(w.AppID, w.Title, w.PID)
}

// Hyprland queries `hyprctl -j activewindow`.
type Hyprland struct {
	Runner credstore.Runner
}

func (Hyprland) Name() string { return "hyprland" }

func (h Hyprland) FocusedWindow(ctx context.Context) (Window, bool) {
	var w struct {
		Class *string `json:"class"`
		Title *string `json:"title"`
		PID   *int    `json:"pid"`
	}
	if !runJSON(ctx, h.Runner, &w, "hyprctl", "-j", "activewindow") {
		return Window{}, false
	}
	return windowFrom(w.Class, w.Title, w.PID)
}

func windowFrom(appID, title *string, pid *int) (Window, bool) {
	var w Window
	if appID != nil {
		w.AppID = *appID
	}
	if title != nil {
		w.Title = *title
	}
	if pid != nil && *pid > 0 {
		w.PID = *pid
	}
	if w.AppID == "" && w.PID == 0 {
		return Window{}, false
	}
	return w, true
}

func runJSON(ctx context.Context, runner credstore.Runner, v any, name string, args ...string) bool {
	if runner == nil {
		runner = credstore.ExecRunner{}
	}
	out, err := runner.Output(ctx, name, args...)
	if err != nil {
		log.Printf("[detect] %s: %v", name, err)
		return false
	}
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" || trimmed == "null" {
		return false
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		log.Printf("[detect] %s: parsing output: %v", name, err)
		return false
	}
	return true
}

// SourcesByName returns the window sources for the given compositor names,
// in order. Unknown names are skipped.
func SourcesByName(names []string, runner credstore.Runner) []WindowSource {
	var sources []WindowSource
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "niri":
			sources = append(sources, Niri{Runner: runner})
		case "hyprland", "hyprctl":
			sources = append(sources, Hyprland{Runner: runner})
		default:
			log.Printf("[detect] unknown window source %q", name)
		}
	}
	return sources
}

// FocusedWindow asks each source in turn and returns the first answer.
func FocusedWindow(ctx context.Context, sources []WindowSource) (Window, bool) {
	for _, src := range sources {
		if w, ok := src.FocusedWindow(ctx); ok {
			return w, true
		}
	}
	return Window{}, false
}
