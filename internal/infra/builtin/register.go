// Package builtin provides the agent profiles for known CLI tools and the
// resolver that applies user configuration to them.
// This package is responsible for CLI-specific details that domain should not know about.
package builtin

import (
	"fmt"
	"maps"
	"slices"

	"github.com/runoshun/git-delegate/internal/domain"
)

// factory builds a built-in profile from its (possibly empty) user overrides.
type factory func(cfg domain.ProfileConfig) domain.AgentProfile

// builtinProfiles contains the known agent CLIs.
var builtinProfiles = map[string]factory{
	domain.ProfileClaude: func(cfg domain.ProfileConfig) domain.AgentProfile { return newClaude(cfg) },
	domain.ProfileCodex:  func(cfg domain.ProfileConfig) domain.AgentProfile { return newCodex(cfg) },
}

// Resolver looks up agent profiles by name.
// User-defined [profiles.<name>] entries override built-ins of the same name
// or define new command profiles.
type Resolver struct {
	cfg *domain.Config
}

// NewResolver creates a resolver for cfg. A nil cfg uses the defaults.
func NewResolver(cfg *domain.Config) *Resolver {
	if cfg == nil {
		cfg = domain.NewDefaultConfig()
	}
	return &Resolver{cfg: cfg}
}

// Ensure Resolver implements domain.ProfileResolver interface.
var _ domain.ProfileResolver = (*Resolver)(nil)

// Resolve returns the named profile. An empty name selects the default profile.
func (r *Resolver) Resolve(name string) (domain.AgentProfile, error) {
	if name == "" {
		name = r.DefaultName()
	}
	if domain.IsProfileDisabled(name, r.cfg.DisabledProfiles) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrProfileDisabled)
	}

	override := r.cfg.Profiles[name]
	if build, ok := builtinProfiles[name]; ok {
		return build(override), nil
	}
	if override.Command != "" {
		return newCommand(name, override), nil
	}
	return nil, fmt.Errorf("%s: %w", name, domain.ErrProfileNotFound)
}

// DefaultName returns the configured default profile name.
func (r *Resolver) DefaultName() string {
	if r.cfg.DefaultProfile != "" {
		return r.cfg.DefaultProfile
	}
	return domain.ProfileClaude
}

// Names returns every resolvable profile name, sorted, including disabled ones.
func (r *Resolver) Names() []string {
	names := make(map[string]struct{})
	for name := range builtinProfiles {
		names[name] = struct{}{}
	}
	for name, p := range r.cfg.Profiles {
		if p.Command != "" {
			names[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(names))
}
