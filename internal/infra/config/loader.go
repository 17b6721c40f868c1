// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/runoshun/git-delegate/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Loader loads configuration from TOML files.
type Loader struct {
	dataRoot      string // Application data root (<root>/config.toml)
	globalConfDir string // Path to global config directory (e.g., ~/.config/git-delegate)
}

// NewLoader creates a new Loader.
func NewLoader(dataRoot string) *Loader {
	return &Loader{
		dataRoot:      dataRoot,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(dataRoot, globalConfDir string) *Loader {
	return &Loader{
		dataRoot:      dataRoot,
		globalConfDir: globalConfDir,
	}
}

// defaultGlobalConfigDir returns the default global config directory.
func defaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return domain.GlobalConfigDir(configHome)
}

// Load returns the merged configuration.
// Precedence: default <- global <- data root.
func (l *Loader) Load() (*domain.Config, error) {
	global, err := l.LoadGlobal()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	local, err := l.LoadLocal()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	base := domain.NewDefaultConfig()
	if global != nil {
		base = mergeConfigs(base, global)
	}
	if local != nil {
		base = mergeConfigs(base, local)
	}
	return base, nil
}

// LoadGlobal returns only the global configuration.
func (l *Loader) LoadGlobal() (*domain.Config, error) {
	if l.globalConfDir == "" {
		return nil, os.ErrNotExist
	}
	return l.loadFile(filepath.Join(l.globalConfDir, domain.ConfigFileName))
}

// LoadLocal returns only the data root configuration.
func (l *Loader) LoadLocal() (*domain.Config, error) {
	return l.loadFile(filepath.Join(l.dataRoot, domain.ConfigFileName))
}

// loadFile loads a configuration from a file.
func (l *Loader) loadFile(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return convertRawToDomainConfig(raw), nil
}

// convertRawToDomainConfig converts the raw map to domain config and collects warnings.
func convertRawToDomainConfig(raw map[string]any) *domain.Config {
	res := &domain.Config{
		Profiles: make(map[string]domain.ProfileConfig),
	}
	var warnings []string

	for section, value := range raw {
		switch section {
		case "default_profile":
			if s, ok := value.(string); ok {
				res.DefaultProfile = s
			}
		case "disabled_profiles":
			res.DisabledProfiles = stringList(value)
		case "profiles":
			m, ok := value.(map[string]any)
			if !ok {
				warnings = append(warnings, "[profiles] must be a table")
				continue
			}
			for name, def := range m {
				sub, ok := def.(map[string]any)
				if !ok {
					warnings = append(warnings, fmt.Sprintf("unknown key in [profiles]: %s", name))
					continue
				}
				p, unknown := parseProfile(sub)
				res.Profiles[name] = p
				for _, k := range unknown {
					warnings = append(warnings, fmt.Sprintf("unknown key in [profiles.%s]: %s", name, k))
				}
			}
		case "agent":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "prompt":
						if s, ok := v.(string); ok {
							res.Agent.Prompt = s
						}
					case "timeout":
						d, err := parseDuration(v)
						if err != nil {
							warnings = append(warnings, fmt.Sprintf("invalid [agent] timeout: %v", err))
							continue
						}
						res.Agent.Timeout = d
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [agent]: %s", k))
					}
				}
			}
		case "worktree":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "setup_command":
						if s, ok := v.(string); ok {
							res.Worktree.SetupCommand = s
						}
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [worktree]: %s", k))
					}
				}
			}
		case "log":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					switch k {
					case "level":
						if s, ok := v.(string); ok {
							res.Log.Level = s
						}
					default:
						warnings = append(warnings, fmt.Sprintf("unknown key in [log]: %s", k))
					}
				}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown section: %s", section))
		}
	}

	sort.Strings(warnings)
	res.Warnings = warnings
	return res
}

// parseProfile parses one [profiles.<name>] table and returns its unknown keys.
func parseProfile(raw map[string]any) (domain.ProfileConfig, []string) {
	var p domain.ProfileConfig
	var unknown []string
	for k, v := range raw {
		switch k {
		case "command":
			if s, ok := v.(string); ok {
				p.Command = s
			}
		case "model":
			if s, ok := v.(string); ok {
				p.Model = s
			}
		case "args":
			p.Args = stringList(v)
		default:
			unknown = append(unknown, k)
		}
	}
	return p, unknown
}

// stringList accepts a TOML array of strings or a single string.
func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// parseDuration accepts Go duration strings ("30m") or integer seconds.
func parseDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case string:
		return time.ParseDuration(x)
	case int64:
		return time.Duration(x) * time.Second, nil
	}
	return 0, fmt.Errorf("unsupported value %v", v)
}

// mergeConfigs merges two configs, with override taking precedence.
func mergeConfigs(base, override *domain.Config) *domain.Config {
	result := &domain.Config{
		DefaultProfile:   base.DefaultProfile,
		DisabledProfiles: append([]string{}, base.DisabledProfiles...),
		Agent:            base.Agent,
		Worktree:         base.Worktree,
		Log:              base.Log,
		Profiles:         make(map[string]domain.ProfileConfig),
		Warnings:         append([]string{}, base.Warnings...),
	}

	// Add override warnings
	result.Warnings = append(result.Warnings, override.Warnings...)

	for name, p := range base.Profiles {
		result.Profiles[name] = p
	}

	if override.DefaultProfile != "" {
		result.DefaultProfile = override.DefaultProfile
	}
	if override.DisabledProfiles != nil {
		result.DisabledProfiles = append([]string{}, override.DisabledProfiles...)
	}
	if override.Agent.Prompt != "" {
		result.Agent.Prompt = override.Agent.Prompt
	}
	if override.Agent.Timeout != 0 {
		result.Agent.Timeout = override.Agent.Timeout
	}
	if override.Worktree.SetupCommand != "" {
		result.Worktree.SetupCommand = override.Worktree.SetupCommand
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}

	// Merge profiles: override individual fields, not entire profile
	for name, op := range override.Profiles {
		bp := result.Profiles[name]
		if op.Command != "" {
			bp.Command = op.Command
		}
		if op.Model != "" {
			bp.Model = op.Model
		}
		if op.Args != nil {
			bp.Args = append([]string{}, op.Args...)
		}
		result.Profiles[name] = bp
	}

	return result
}
