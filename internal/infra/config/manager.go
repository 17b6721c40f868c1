package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/runoshun/git-delegate/internal/domain"
)

// configTemplate is written by `config init`. Every setting is commented out
// so the file documents the defaults without changing them.
const configTemplate = `# git-delegate configuration

# Profile used when a task does not name one.
# default_profile = "claude"

# Glob patterns of profiles that may not be used. "!name" re-enables.
# disabled_profiles = ["codex"]

[agent]
# Appended to the opening prompt of every task.
# prompt = ""
# Maximum run time of one agent invocation (Go duration, 0 = no limit).
# timeout = "30m"

[worktree]
# Shell script run inside every new worktree before the agent starts.
# setup_command = "npm ci"

[log]
# debug, info, warn or error
# level = "info"

# Built-in profiles (claude, codex) accept overrides:
# [profiles.claude]
# command = "claude"
# model = "sonnet"
# args = ["--permission-mode", "acceptEdits"]
#
# Any other name defines a custom command profile. Arguments are templates
# over {{.Prompt}}, {{.Dir}} and {{.Model}}; the agent should print JSON
# lines of the form {"type": "...", "content": "..."}.
# [profiles.local]
# command = "my-agent"
# args = ["--cwd", "{{.Dir}}", "{{.Prompt}}"]
`

// Manager manages configuration files.
type Manager struct {
	dataRoot      string // Application data root
	globalConfDir string // Path to global config directory (e.g., ~/.config/git-delegate)
}

// Ensure Manager implements domain.ConfigManager interface.
var _ domain.ConfigManager = (*Manager)(nil)

// NewManager creates a new Manager.
func NewManager(dataRoot string) *Manager {
	return &Manager{
		dataRoot:      dataRoot,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewManagerWithGlobalDir creates a new Manager with a custom global config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(dataRoot, globalConfDir string) *Manager {
	return &Manager{
		dataRoot:      dataRoot,
		globalConfDir: globalConfDir,
	}
}

// LocalConfigInfo returns information about the data root config file.
func (m *Manager) LocalConfigInfo() domain.ConfigInfo {
	return m.getConfigInfo(filepath.Join(m.dataRoot, domain.ConfigFileName))
}

// GlobalConfigInfo returns information about the global config file.
func (m *Manager) GlobalConfigInfo() domain.ConfigInfo {
	if m.globalConfDir == "" {
		return domain.ConfigInfo{}
	}
	return m.getConfigInfo(filepath.Join(m.globalConfDir, domain.ConfigFileName))
}

// getConfigInfo reads a config file and returns its info.
func (m *Manager) getConfigInfo(path string) domain.ConfigInfo {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.ConfigInfo{Path: path}
	}
	return domain.ConfigInfo{
		Path:    path,
		Content: string(content),
		Exists:  true,
	}
}

// InitLocalConfig creates the data root config file from the template.
func (m *Manager) InitLocalConfig() (string, error) {
	return m.initConfig(m.dataRoot)
}

// InitGlobalConfig creates the global config file from the template.
func (m *Manager) InitGlobalConfig() (string, error) {
	if m.globalConfDir == "" {
		return "", errors.New("global config directory not available")
	}
	return m.initConfig(m.globalConfDir)
}

// initConfig writes the template into dir unless a config already exists.
func (m *Manager) initConfig(dir string) (string, error) {
	path := filepath.Join(dir, domain.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s: %w", path, domain.ErrConfigExists)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return path, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return path, fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// fileConfig is the on-disk shape of domain.Config.
type fileConfig struct {
	Profiles         map[string]fileProfile `toml:"profiles,omitempty"`
	DefaultProfile   string                 `toml:"default_profile"`
	DisabledProfiles []string               `toml:"disabled_profiles,omitempty"`
	Agent            struct {
		Prompt  string `toml:"prompt,omitempty"`
		Timeout string `toml:"timeout,omitempty"`
	} `toml:"agent"`
	Worktree struct {
		SetupCommand string `toml:"setup_command,omitempty"`
	} `toml:"worktree"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

type fileProfile struct {
	Command string   `toml:"command,omitempty"`
	Model   string   `toml:"model,omitempty"`
	Args    []string `toml:"args,omitempty"`
}

// Render encodes cfg as TOML. Warnings are not part of the output.
func Render(cfg *domain.Config) (string, error) {
	var fc fileConfig
	fc.DefaultProfile = cfg.DefaultProfile
	fc.DisabledProfiles = cfg.DisabledProfiles
	fc.Agent.Prompt = cfg.Agent.Prompt
	if cfg.Agent.Timeout > 0 {
		fc.Agent.Timeout = cfg.Agent.Timeout.String()
	}
	fc.Worktree.SetupCommand = cfg.Worktree.SetupCommand
	fc.Log.Level = cfg.Log.Level

	if len(cfg.Profiles) > 0 {
		fc.Profiles = make(map[string]fileProfile, len(cfg.Profiles))
		for name, p := range cfg.Profiles {
			fc.Profiles[name] = fileProfile(p)
		}
	}

	out, err := toml.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(out), nil
}
