// Package detect works out which provider the user is looking at: it asks
// the compositor for the focused window, walks the processes running inside
// it and classifies the result.
package detect

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/janekbaraniewski/codexbar/internal/config"
	"github.com/janekbaraniewski/codexbar/internal/credstore"
)

type Detector struct {
	Sources  []WindowSource
	Tree     *ProcTree
	MaxDepth int
}

// New builds a Detector reading /proc (or cfg.ProcRoot) and running the
// compositor and multiplexer helpers through runner.
func New(cfg config.DetectConfig, runner credstore.Runner) *Detector {
	procRoot := cfg.ProcRoot
	if procRoot == "" {
		procRoot = "/proc"
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = config.DefaultMaxDepth
	}

	tree := &ProcTree{FS: os.DirFS(procRoot)}
	switch strings.ToLower(cfg.Multiplexer) {
	case "tmux":
		tree.Multiplexer = Tmux{Runner: runner}
	case "", "none":
	default:
		log.Printf("[detect] unsupported multiplexer %q, pane expansion disabled", cfg.Multiplexer)
	}

	return &Detector{
		Sources:  SourcesByName(cfg.WindowSources, runner),
		Tree:     tree,
		MaxDepth: maxDepth,
	}
}

// Active returns the provider id for the focused window, or "" when there is
// no window or it cannot be attributed to a provider.
func (d *Detector) Active(ctx context.Context) string {
	w, ok := FocusedWindow(ctx, d.Sources)
	if !ok {
		return ""
	}

	var names []string
	if w.PID > 0 && IsTerminal(w.AppID) {
		names = d.Tree.Descendants(ctx, w.PID, d.MaxDepth)
	}
	provider := Classify(w.AppID, names)
	log.Printf("[detect] focused %q pid %d, %d descendants -> %q", w.AppID, w.PID, len(names), provider)
	return provider
}
