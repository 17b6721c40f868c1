package domain

import (
	"path/filepath"
	"time"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "config.toml"

// AppName is used for data and config directory names.
const AppName = "git-delegate"

// Built-in profile names.
const (
	ProfileClaude = "claude"
	ProfileCodex  = "codex"
)

// Config represents the application configuration.
type Config struct {
	Profiles         map[string]ProfileConfig // [profiles.<name>]
	DefaultProfile   string                   // Top-level default_profile
	DisabledProfiles []string                 // Top-level disabled_profiles
	Warnings         []string                 // Unknown keys and invalid values found while loading
	Agent            AgentConfig              // [agent]
	Worktree         WorktreeConfig           // [worktree]
	Log              LogConfig                // [log]
}

// AgentConfig holds settings shared by every agent invocation.
type AgentConfig struct {
	Prompt  string        // Appended to every task's opening prompt
	Timeout time.Duration // Maximum run time of one invocation (0 = none)
}

// ProfileConfig overrides or defines an agent profile.
type ProfileConfig struct {
	Command string   // Executable (or template for custom profiles)
	Model   string   // Model passed to the agent, if supported
	Args    []string // Extra arguments; templates for custom profiles
}

// WorktreeConfig holds worktree settings.
type WorktreeConfig struct {
	SetupCommand string // Shell script run inside every new worktree
}

// LogConfig holds logging settings from [log] section.
type LogConfig struct {
	Level string // Log level: debug, info, warn, error
}

// NewDefaultConfig returns the configuration used when no file exists.
func NewDefaultConfig() *Config {
	return &Config{
		DefaultProfile: ProfileClaude,
		Profiles:       make(map[string]ProfileConfig),
		Log:            LogConfig{Level: "info"},
	}
}

// GlobalConfigDir returns the global configuration directory under configHome.
func GlobalConfigDir(configHome string) string {
	return filepath.Join(configHome, AppName)
}

// ConfigInfo describes a configuration file on disk.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}
