// Package config resolves the immutable tiersync configuration once at
// startup. Resolution follows an override chain: user config file, then the
// tracked system template, then computed defaults. Environment variables are
// consulted only here; components receive the resolved Config and never
// re-read the environment mid-operation.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tiersync/tiersync/pkg/errclass"
	"github.com/tiersync/tiersync/pkg/model"
	"github.com/tiersync/tiersync/pkg/pathutil"
	"github.com/tiersync/tiersync/pkg/template"
)

// Identity is the resolved invoking user. When running under sudo the
// original login user is used, since the managed caches belong to them.
type Identity struct {
	Username string
	UID      int
	GID      int
	Home     string
}

// ScopeConfig holds the per-scope directory layout and managed cache sets.
type ScopeConfig struct {
	RunDir         string           `yaml:"run_dir"`
	StateDir       string           `yaml:"state_dir"`
	PersistentRoot string           `yaml:"persistent_root"`
	OwnerUID       int              `yaml:"owner_uid"`
	CacheSets      []model.CacheSet `yaml:"cache_sets"`
}

// Config is the resolved tiersync configuration. It is immutable after
// Resolve returns.
type Config struct {
	// CompressionRatio estimates backing-store writes from literal bytes.
	// This is a heuristic, not a measured value; see the stats output.
	CompressionRatio float64     `yaml:"compression_ratio"`
	LogLevel         string      `yaml:"log_level"`
	MirrorBinary     string      `yaml:"mirror_binary"`
	User             ScopeConfig `yaml:"user"`
	System           ScopeConfig `yaml:"system"`

	Identity Identity `yaml:"-"`
}

// ResolveIdentity determines the invoking user via SUDO_USER, USER, then the
// process owner.
func ResolveIdentity() (Identity, error) {
	var u *user.User
	var err error

	for _, env := range []string{"SUDO_USER", "USER"} {
		if name := os.Getenv(env); name != "" && name != "root" {
			u, err = user.Lookup(name)
			if err == nil {
				break
			}
			u = nil
		}
	}
	if u == nil {
		u, err = user.Current()
		if err != nil {
			return Identity{}, fmt.Errorf("resolve user: %w", err)
		}
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}

	return Identity{Username: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

// Default returns the computed default configuration for the given identity.
func Default(id Identity) *Config {
	runtimeRoot := filepath.Join(id.Home, ".cache")
	userRunDir := filepath.Join("/run/user", strconv.Itoa(id.UID), "tiersync")
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		userRunDir = filepath.Join(xdg, "tiersync")
	}

	return &Config{
		CompressionRatio: 0.85,
		LogLevel:         "info",
		MirrorBinary:     "rsync",
		Identity:         id,
		User: ScopeConfig{
			RunDir:         userRunDir,
			StateDir:       filepath.Join(id.Home, ".local/state/tiersync"),
			PersistentRoot: filepath.Join("/var/lib/tiersync/user", id.Username),
			OwnerUID:       id.UID,
			CacheSets: []model.CacheSet{
				{
					Name:           "ecc-cache",
					RuntimePath:    filepath.Join(runtimeRoot, "ecc"),
					PersistentPath: filepath.Join("/var/lib/tiersync/user", id.Username, "ecc-cache"),
				},
				{
					Name:           "browser-cache",
					RuntimePath:    filepath.Join(runtimeRoot, "chromium"),
					PersistentPath: filepath.Join("/var/lib/tiersync/user", id.Username, "browser-cache"),
					// High-churn, regenerable subsets are kept off durable storage.
					Excludes: []string{
						"GPUCache/",
						"ShaderCache/",
						"GrShaderCache/",
						"Service Worker/",
						"Code Cache/",
						"jit-cache/",
					},
				},
			},
		},
		System: ScopeConfig{
			RunDir:         "/run/tiersync",
			StateDir:       "/var/lib/tiersync",
			PersistentRoot: "/var/lib/tiersync/system",
			OwnerUID:       id.UID,
			CacheSets: []model.CacheSet{
				{
					Name:           "var-cache",
					RuntimePath:    "/var/cache",
					PersistentPath: "/var/lib/tiersync/system/var-cache",
					Excludes:       []string{"private/", "ldconfig/"},
				},
			},
		},
	}
}

// Resolve builds the effective configuration: computed defaults overlaid by
// the first config file found in the override chain.
func Resolve() (*Config, error) {
	id, err := ResolveIdentity()
	if err != nil {
		return nil, err
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(id.Home, ".config")
	}

	chain := []string{
		filepath.Join(configHome, "tiersync/config.yaml"),
		"/etc/tiersync/config.yaml",
	}
	return resolve(id, chain)
}

// ResolveFrom is Resolve with an explicit override chain, for tests.
func ResolveFrom(id Identity, chain []string) (*Config, error) {
	return resolve(id, chain)
}

func resolve(id Identity, chain []string) (*Config, error) {
	cfg := Default(id)

	for _, path := range chain {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errclass.ErrConfigInvalid.WithMessagef("parse %s: %v", path, err)
		}
		break // first hit wins
	}

	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandPaths resolves identity placeholders, letting the tracked system
// config describe paths like /var/lib/tiersync/user/{user} for every user.
func (c *Config) expandPaths() {
	vars := template.IdentityVars(c.Identity.Username, c.Identity.UID, c.Identity.GID, c.Identity.Home)
	for _, sc := range []*ScopeConfig{&c.User, &c.System} {
		sc.RunDir = template.Expand(sc.RunDir, vars)
		sc.StateDir = template.Expand(sc.StateDir, vars)
		sc.PersistentRoot = template.Expand(sc.PersistentRoot, vars)
		for i := range sc.CacheSets {
			sc.CacheSets[i].RuntimePath = template.Expand(sc.CacheSets[i].RuntimePath, vars)
			sc.CacheSets[i].PersistentPath = template.Expand(sc.CacheSets[i].PersistentPath, vars)
		}
	}
}

// Validate checks invariants the rest of the engine relies on.
func (c *Config) Validate() error {
	if c.CompressionRatio <= 0 || c.CompressionRatio > 1 {
		return errclass.ErrConfigInvalid.WithMessagef("compression_ratio must be in (0,1]: %v", c.CompressionRatio)
	}
	if c.MirrorBinary == "" {
		return errclass.ErrConfigInvalid.WithMessage("mirror_binary must not be empty")
	}

	for _, scope := range model.AllScopes {
		sc := c.Scope(scope)
		for _, dir := range []string{sc.RunDir, sc.StateDir, sc.PersistentRoot} {
			if err := pathutil.ValidateAbsolute(dir); err != nil {
				return err
			}
		}
		seen := make(map[string]bool)
		for _, set := range sc.CacheSets {
			if err := pathutil.ValidateCacheName(set.Name); err != nil {
				return err
			}
			if seen[set.Name] {
				return errclass.ErrConfigInvalid.WithMessagef("duplicate cache set %q in scope %s", set.Name, scope)
			}
			seen[set.Name] = true
			if err := pathutil.ValidateAbsolute(set.RuntimePath); err != nil {
				return err
			}
			if !set.Cold {
				if err := pathutil.ValidateAbsolute(set.PersistentPath); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Scope returns the configuration for one scope.
func (c *Config) Scope(scope model.Scope) ScopeConfig {
	if scope == model.ScopeSystem {
		return c.System
	}
	return c.User
}

// HotSets returns the cache sets that are mirrored for a scope.
func (c *Config) HotSets(scope model.Scope) []model.CacheSet {
	var hot []model.CacheSet
	for _, set := range c.Scope(scope).CacheSets {
		if !set.Cold {
			hot = append(hot, set)
		}
	}
	return hot
}

// ColdSets returns the bind-mounted cache sets for a scope.
func (c *Config) ColdSets(scope model.Scope) []model.CacheSet {
	var cold []model.CacheSet
	for _, set := range c.Scope(scope).CacheSets {
		if set.Cold {
			cold = append(cold, set)
		}
	}
	return cold
}

// LockPath returns the scope's lock file path.
func (c *Config) LockPath(scope model.Scope) string {
	return filepath.Join(c.Scope(scope).RunDir, string(scope)+".lock")
}

// StatePath returns the scope's last-operation state record path.
func (c *Config) StatePath(scope model.Scope) string {
	return filepath.Join(c.Scope(scope).StateDir, string(scope)+"-state.json")
}

// LedgerPath returns the scope's metrics ledger path.
func (c *Config) LedgerPath(scope model.Scope) string {
	return filepath.Join(c.Scope(scope).StateDir, string(scope)+"-metrics.csv")
}

// TransferLogPath returns the scope's last itemized-transfer log path.
func (c *Config) TransferLogPath(scope model.Scope) string {
	return filepath.Join(c.Scope(scope).StateDir, string(scope)+"-files.log")
}
