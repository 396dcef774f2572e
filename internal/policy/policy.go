// Package policy resolves firm roles to permission sets from a YAML policy.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

//go:embed default_roles.yaml
var defaultRolesYAML []byte

// RoleDefinition is one role in the policy file.
type RoleDefinition struct {
	Inherits    []string `yaml:"inherits"`
	Permissions []string `yaml:"permissions"`
}

// Config is the policy file layout.
type Config struct {
	Roles map[string]RoleDefinition `yaml:"roles"`
}

// Parse decodes a policy document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing role policy: %w", err)
	}
	return &cfg, nil
}

// Resolver maps role names to resolved permission sets. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	roles map[string]domain.PermissionSet
}

// Load builds a Resolver from the built-in policy overlaid with the file at
// path. Roles defined in the file replace built-in roles of the same name.
// An empty path uses the built-in policy alone.
func Load(path string, logger *slog.Logger) (*Resolver, error) {
	base, err := Parse(defaultRolesYAML)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading role policy %s: %w", path, err)
		}
		overlay, err := Parse(data)
		if err != nil {
			return nil, err
		}
		for name, def := range overlay.Roles {
			base.Roles[name] = def
		}
		logger.Info("policy.Load: loaded role policy", "path", path, "roles", len(overlay.Roles))
	}
	return New(base)
}

// New resolves inheritance for every role in cfg.
func New(cfg *Config) (*Resolver, error) {
	r := &Resolver{roles: make(map[string]domain.PermissionSet, len(cfg.Roles))}
	for name := range cfg.Roles {
		perms, err := flatten(cfg, name, map[string]bool{})
		if err != nil {
			return nil, err
		}
		r.roles[name] = domain.ParsePermissionSet(perms)
	}
	return r, nil
}

func flatten(cfg *Config, name string, visiting map[string]bool) ([]string, error) {
	def, ok := cfg.Roles[name]
	if !ok {
		return nil, fmt.Errorf("role %q is not defined", name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("role %q inherits from itself", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	seen := map[string]bool{}
	for _, p := range def.Permissions {
		seen[strings.TrimSpace(p)] = true
	}
	for _, parent := range def.Inherits {
		inherited, err := flatten(cfg, parent, visiting)
		if err != nil {
			return nil, err
		}
		for _, p := range inherited {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Roles returns the defined role names, sorted.
func (r *Resolver) Roles() []string {
	names := make([]string, 0, len(r.roles))
	for n := range r.roles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the permission set for role. Unknown roles resolve to an
// empty set, so every gated operation is denied and audited.
func (r *Resolver) Resolve(_ context.Context, _, _ uuid.UUID, role string) (domain.PermissionSet, error) {
	set, ok := r.roles[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return domain.PermissionSet{}, nil
	}
	return append(domain.PermissionSet(nil), set...), nil
}

var _ port.RoleResolver = (*Resolver)(nil)
