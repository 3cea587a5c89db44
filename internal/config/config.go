package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	DefaultHTTPTimeoutSeconds = 30
	DefaultMaxDepth           = 4
	DefaultMultiplexer        = "tmux"
	DefaultScanDays           = 7
)

// DefaultProviders is the report order for --all.
var DefaultProviders = []string{"claude", "codex", "cursor", "copilot", "kimi"}

// ProviderOverride redirects a provider away from its standard locations.
// Empty fields keep the provider's defaults.
type ProviderOverride struct {
	CredentialsPath string `json:"credentials_path,omitempty"`
	BaseURL         string `json:"base_url,omitempty"`
	TokenURL        string `json:"token_url,omitempty"`
	DBPath          string `json:"db_path,omitempty"`
	SessionsDir     string `json:"sessions_dir,omitempty"`
	Binary          string `json:"binary,omitempty"`
	ScanDays        int    `json:"scan_days,omitempty"`
}

type DetectConfig struct {
	MaxDepth      int      `json:"max_depth"`
	Multiplexer   string   `json:"multiplexer"`
	WindowSources []string `json:"window_sources"`
	ProcRoot      string   `json:"proc_root,omitempty"`
}

type Config struct {
	Providers          []string                    `json:"providers"`
	HTTPTimeoutSeconds int                         `json:"http_timeout_seconds"`
	Detect             DetectConfig                `json:"detect"`
	Overrides          map[string]ProviderOverride `json:"overrides,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Providers:          append([]string(nil), DefaultProviders...),
		HTTPTimeoutSeconds: DefaultHTTPTimeoutSeconds,
		Detect: DetectConfig{
			MaxDepth:      DefaultMaxDepth,
			Multiplexer:   DefaultMultiplexer,
			WindowSources: []string{"niri", "hyprland"},
		},
		Overrides: map[string]ProviderOverride{},
	}
}

// Override returns the override block for a provider id.
func (c Config) Override(id string) ProviderOverride {
	if c.Overrides == nil {
		return ProviderOverride{}
	}
	return c.Overrides[id]
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "codexbar")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codexbar")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "codexbar")
}

func ConfigPath() string {
	if p := os.Getenv("CODEXBAR_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = append([]string(nil), DefaultProviders...)
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if cfg.Detect.MaxDepth <= 0 {
		cfg.Detect.MaxDepth = DefaultMaxDepth
	}
	if cfg.Detect.Multiplexer == "" {
		cfg.Detect.Multiplexer = DefaultMultiplexer
	}
	if len(cfg.Detect.WindowSources) == 0 {
		cfg.Detect.WindowSources = DefaultConfig().Detect.WindowSources
	}
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]ProviderOverride{}
	}

	return cfg, nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
