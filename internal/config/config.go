// Package config loads the client configuration (config.yaml) and the
// agent credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FileName            = "config.yaml"
	CredentialsFileName = "credentials.yaml"
)

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Commands   CommandsConfig    `yaml:"commands"`
	Remote     RemoteConfig      `yaml:"remote"`
	Hooks      map[string]string `yaml:"hooks,omitempty"`
	Plugins    []string          `yaml:"plugins,omitempty"`
	History    HistoryConfig     `yaml:"history"`
	Transcript TranscriptConfig  `yaml:"transcript"`
	Log        LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	URL string `yaml:"url"`
	// StateFile keeps the resume token between runs.
	StateFile string `yaml:"state_file"`
}

type CommandsConfig struct {
	Aliases          map[string]string  `yaml:"aliases,omitempty"`
	EnableNonVanilla bool               `yaml:"enable_non_vanilla"`
	Prompt           string             `yaml:"prompt"`
	AutoComplete     AutoCompleteConfig `yaml:"autocomplete"`
}

type AutoCompleteConfig struct {
	Enabled         bool   `yaml:"enabled"`
	MinLength       int    `yaml:"min_length"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
	StartOnly       bool   `yaml:"start_only"`
	Color           string `yaml:"color"`
}

type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Pattern string `yaml:"pattern"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Recall is how many past lines are preloaded for up-arrow recall.
	Recall int `yaml:"recall"`
}

type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type LogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Events a hook can bind to.
var HookEvents = []string{"login", "spawn", "message", "kicked", "death", "end", "window_open"}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// LoadDir loads config.yaml from dir, falling back to the defaults when the
// file does not exist. Relative paths are resolved against dir.
func LoadDir(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Load("")
	}
	if err != nil {
		return cfg, err
	}
	cfg.Resolve(dir)
	return cfg, nil
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:       "ws://localhost:8080/v1/ws",
			StateFile: "session.json",
		},
		Commands: CommandsConfig{
			Aliases:          map[string]string{},
			EnableNonVanilla: true,
			Prompt:           "> ",
			AutoComplete: AutoCompleteConfig{
				Enabled:         true,
				MinLength:       1,
				CaseInsensitive: false,
				StartOnly:       true,
				Color:           "#6c6c6c",
			},
		},
		Remote: RemoteConfig{
			Enabled: false,
			Pattern: `!#([^!]+)`,
		},
		Hooks: map[string]string{},
		History: HistoryConfig{
			Enabled: true,
			Path:    "history.db",
			Recall:  200,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Dir:     "transcripts",
		},
		Log: LogConfig{
			Path:       filepath.Join("logs", "vcterm.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func (c *Config) Normalize() {
	c.Server.URL = strings.TrimSpace(c.Server.URL)
	if c.Commands.Aliases == nil {
		c.Commands.Aliases = map[string]string{}
	}
	aliases := make(map[string]string, len(c.Commands.Aliases))
	for k, v := range c.Commands.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	c.Commands.Aliases = aliases
	if c.Commands.Prompt == "" {
		c.Commands.Prompt = "> "
	}
	if c.Commands.AutoComplete.MinLength < 0 {
		c.Commands.AutoComplete.MinLength = 0
	}
	if c.Hooks == nil {
		c.Hooks = map[string]string{}
	}
	hooks := make(map[string]string, len(c.Hooks))
	for k, v := range c.Hooks {
		hooks[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	c.Hooks = hooks
	seen := map[string]struct{}{}
	plugins := c.Plugins[:0]
	for _, p := range c.Plugins {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, dup := seen[p]; dup || p == "" {
			continue
		}
		seen[p] = struct{}{}
		plugins = append(plugins, p)
	}
	c.Plugins = plugins
	if c.History.Recall < 0 {
		c.History.Recall = 0
	}
}

func (c Config) Validate() error {
	if c.Server.URL != "" && !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("server.url must be a ws:// or wss:// url: %q", c.Server.URL)
	}
	for name, exp := range c.Commands.Aliases {
		if name == "" || strings.ContainsAny(name, " \t") {
			return fmt.Errorf("commands.aliases: invalid alias name %q", name)
		}
		if exp == "" {
			return fmt.Errorf("commands.aliases: %s: empty expansion", name)
		}
	}
	if col := c.Commands.AutoComplete.Color; col != "" && !hexColor.MatchString(col) {
		return fmt.Errorf("commands.autocomplete.color: want #rrggbb, got %q", col)
	}
	if c.Remote.Enabled {
		re, err := regexp.Compile(c.Remote.Pattern)
		if err != nil {
			return fmt.Errorf("remote.pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("remote.pattern: needs a capture group for the command")
		}
	}
	for _, name := range c.HookNames() {
		if _, err := ParseHook(name); err != nil {
			return fmt.Errorf("hooks: %w", err)
		}
		if c.Hooks[name] == "" {
			return fmt.Errorf("hooks: %s: empty command", name)
		}
	}
	return nil
}

// Resolve makes relative paths absolute under dir.
func (c *Config) Resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Server.StateFile = abs(c.Server.StateFile)
	c.History.Path = abs(c.History.Path)
	c.Transcript.Dir = abs(c.Transcript.Dir)
	c.Log.Path = abs(c.Log.Path)
}

// HookNames returns the configured hook keys sorted.
func (c Config) HookNames() []string {
	out := make([]string, 0, len(c.Hooks))
	for k := range c.Hooks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Hook is a parsed hook key such as "once_spawn".
type Hook struct {
	Event string
	Once  bool
}

func ParseHook(key string) (Hook, error) {
	var h Hook
	switch {
	case strings.HasPrefix(key, "on_"):
		h.Event = strings.TrimPrefix(key, "on_")
	case strings.HasPrefix(key, "once_"):
		h.Event, h.Once = strings.TrimPrefix(key, "once_"), true
	default:
		return Hook{}, fmt.Errorf("%q: want on_<event> or once_<event>", key)
	}
	for _, e := range HookEvents {
		if e == h.Event {
			return h, nil
		}
	}
	return Hook{}, fmt.Errorf("%q: unknown event %q", key, h.Event)
}

// WriteDefault writes the default configuration to dir/config.yaml. An
// existing file is left alone.
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, err
	}
	b, err := yaml.Marshal(Default())
	if err != nil {
		return path, err
	}
	return path, os.WriteFile(path, b, 0o644)
}

// DefaultDir is $XDG_CONFIG_HOME/vcterm or its platform equivalent.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".vcterm"
	}
	return filepath.Join(base, "vcterm")
}
