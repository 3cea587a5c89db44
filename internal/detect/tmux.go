package detect

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/janekbaraniewski/codexbar/internal/credstore"
)

// Tmux expands a tmux client into the panes of its attached session.
type Tmux struct {
	Binary string
	Runner credstore.Runner
}

func (t Tmux) binary() string {
	if t.Binary != "" {
		return t.Binary
	}
	return "tmux"
}

func (t Tmux) runner() credstore.Runner {
	if t.Runner != nil {
		return t.Runner
	}
	return credstore.ExecRunner{}
}

// Matches accepts both the plain command name and the "tmux: client" title
// newer tmux versions give their processes.
func (t Tmux) Matches(name string) bool {
	return name == "tmux" || strings.HasPrefix(name, "tmux:")
}

// Panes lists pane pids across all windows of session. Failures yield none.
func (t Tmux) Panes(ctx context.Context, session string) []int {
	out, err := t.runner().Output(ctx, t.binary(), "list-panes", "-s", "-t", session, "-F", "#{pane_pid}")
	if err != nil {
		log.Printf("[detect] tmux list-panes for %q: %v", session, err)
		return nil
	}

	var panes []int
	for _, line := range strings.Split(string(out), "\n") {
		if pid, err := strconv.Atoi(strings.TrimSpace(line)); err == nil && pid > 0 {
			panes = append(panes, pid)
		}
	}
	return panes
}

// Session finds the session whose client process is clientPID.
func (t Tmux) Session(ctx context.Context, clientPID int) (string, bool) {
	out, err := t.runner().Output(ctx, t.binary(), "list-clients", "-F", "#{client_pid} #{session_name}")
	if err != nil {
		log.Printf("[detect] tmux list-clients: %v", err)
		return "", false
	}

	want := strconv.Itoa(clientPID)
	for _, line := range strings.Split(string(out), "\n") {
		pid, session, ok := strings.Cut(strings.TrimSpace(line), " ")
		if ok && pid == want && session != "" {
			return session, true
		}
	}
	return "", false
}
