package detect

import (
	"strings"

	"github.com/samber/lo"
)

var terminalAppIDs = []string{
	"com.mitchellh.ghostty",
	"kitty",
	"alacritty",
	"foot",
	"org.wezfurlong.wezterm",
	"org.gnome.terminal",
	"com.raggesilver.blackbox",
	"konsole",
	"xterm",
	"tilix",
}

var processProviders = map[string]string{
	"claude": "claude",
	"codex":  "codex",
	"kimi":   "kimi",
}

func IsTerminal(appID string) bool {
	appID = strings.ToLower(appID)
	return lo.SomeBy(terminalAppIDs, func(id string) bool {
		return strings.Contains(appID, id)
	})
}

// Classify maps a focused window to a provider id, or "" when none applies.
// Editor windows are recognised by app id alone; terminals need the names of
// the processes running inside them.
func Classify(appID string, names []string) string {
	id := strings.ToLower(appID)

	if strings.Contains(id, "cursor") {
		return "cursor"
	}
	if id == "code" || id == "code-oss" || strings.Contains(id, "vscode") {
		return "copilot"
	}

	if !IsTerminal(id) {
		return ""
	}
	for _, name := range names {
		if provider, ok := processProviders[strings.ToLower(name)]; ok {
			return provider
		}
	}
	return ""
}
