package detect

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Expander resolves a terminal multiplexer client into the pane processes
// of the session it is attached to.
type Expander interface {
	// Matches reports whether a command name is the multiplexer's client.
	Matches(name string) bool
	// Session returns the session the client is attached to.
	Session(ctx context.Context, clientPID int) (string, bool)
	// Panes lists the pane pids of every window in session.
	Panes(ctx context.Context, session string) []int
}

// ProcTree reads the process hierarchy from a procfs-shaped file system.
type ProcTree struct {
	FS          fs.FS
	Multiplexer Expander
}

type frame struct {
	pid   int
	depth int  // levels still to walk below pid
	named bool // false for the root, whose own name is not reported
}

// Descendants returns the command names of every process up to maxDepth
// levels below root, depth first. Processes that vanish or cannot be read
// contribute nothing; the walk itself never fails.
func (t *ProcTree) Descendants(ctx context.Context, root, maxDepth int) []string {
	if t == nil || t.FS == nil || maxDepth <= 0 {
		return []string{}
	}

	names := []string{}
	visited := map[int]bool{root: true}
	expanded := map[string]bool{}
	stack := []frame{{pid: root, depth: maxDepth}}

	push := func(pids []int, depth int) {
		// reversed so the lowest pid is visited first
		for i := len(pids) - 1; i >= 0; i-- {
			if visited[pids[i]] {
				continue
			}
			visited[pids[i]] = true
			stack = append(stack, frame{pid: pids[i], depth: depth, named: true})
		}
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			break
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.named {
			name, ok := t.comm(f.pid)
			if !ok {
				continue
			}
			names = append(names, name)

			if t.Multiplexer != nil && t.Multiplexer.Matches(name) {
				if session, ok := t.Multiplexer.Session(ctx, f.pid); ok && !expanded[session] {
					expanded[session] = true
					push(t.Multiplexer.Panes(ctx, session), maxDepth)
				}
			}
		}

		if f.depth <= 0 {
			continue
		}
		push(t.children(f.pid), f.depth-1)
	}
	return names
}

func (t *ProcTree) comm(pid int) (string, bool) {
	data, err := fs.ReadFile(t.FS, path.Join(strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// children collects child pids from every thread of pid. A child forked by
// any thread is listed under that thread only, so all of them are read.
func (t *ProcTree) children(pid int) []int {
	taskDir := path.Join(strconv.Itoa(pid), "task")
	threads, err := fs.ReadDir(t.FS, taskDir)
	if err != nil {
		return nil
	}

	var pids []int
	for _, thread := range threads {
		data, err := fs.ReadFile(t.FS, path.Join(taskDir, thread.Name(), "children"))
		if err != nil {
			continue
		}
		for _, field := range strings.Fields(string(data)) {
			if child, err := strconv.Atoi(field); err == nil && child > 0 {
				pids = append(pids, child)
			}
		}
	}

	pids = lo.Uniq(pids)
	slices.Sort(pids)
	return pids
}
