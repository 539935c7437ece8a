// Package userconfig provides user-level configuration for agentos.
// This configuration is stored in ~/.config/agentos/config.yaml and holds
// the connection profiles of the AgentOS servers the user talks to.
package userconfig

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"

	"github.com/docker/agentos-client/pkg/agentos"
	"github.com/docker/agentos-client/pkg/paths"
)

const (
	// CurrentVersion is the current version of the user config format
	CurrentVersion = "v1"

	DefaultProfile = "default"
	DefaultBaseURL = "http://localhost:7777"

	// EnvBaseURL and EnvToken override the selected profile.
	EnvBaseURL = "AGENTOS_BASE_URL"
	EnvToken   = "AGENTOS_TOKEN"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile describes how to reach one AgentOS server
type Profile struct {
	BaseURL string `yaml:"base_url"`
	// AuthToken is sent as a bearer token
	AuthToken string `yaml:"auth_token,omitempty"`
	// AuthTokenEnv names an environment variable holding the token. It is
	// used when AuthToken is empty.
	AuthTokenEnv string            `yaml:"auth_token_env,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	DefaultAgent string            `yaml:"default_agent,omitempty"`
	DefaultTeam  string            `yaml:"default_team,omitempty"`
	UserID       string            `yaml:"user_id,omitempty"`
}

// Token returns the bearer token of the profile, if any.
func (p *Profile) Token() string {
	if p.AuthToken != "" {
		return p.AuthToken
	}
	if p.AuthTokenEnv != "" {
		return os.Getenv(p.AuthTokenEnv)
	}
	return ""
}

// AuthHeaders returns the extra headers of the profile plus the
// Authorization header when a token is configured.
func (p *Profile) AuthHeaders() http.Header {
	h := http.Header{}
	for k, v := range p.Headers {
		h.Set(k, v)
	}
	if token := p.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// Connection returns the connection described by the profile.
func (p *Profile) Connection() agentos.StaticConnection {
	return agentos.StaticConnection{
		URL:     cmp.Or(p.BaseURL, DefaultBaseURL),
		Headers: p.AuthHeaders(),
	}
}

func (p *Profile) clone() *Profile {
	c := *p
	c.Headers = maps.Clone(p.Headers)
	return &c
}

// Config represents the user-level agentos configuration
type Config struct {
	// mu protects concurrent access to the Profiles map.
	mu sync.Mutex

	// Version is the config format version
	Version string `yaml:"version,omitempty"`
	// CurrentProfile is the profile used when none is selected explicitly
	CurrentProfile string              `yaml:"current_profile,omitempty"`
	Profiles       map[string]*Profile `yaml:"profiles,omitempty"`
}

// Path returns the path to the config file
func Path() string {
	return filepath.Join(paths.GetConfigDir(), "config.yaml")
}

// Load loads the user configuration from the config file.
func Load() (*Config, error) {
	return loadFrom(Path())
}

func loadFrom(configPath string) (*Config, error) {
	config := &Config{Profiles: make(map[string]*Profile)}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Profiles == nil {
		config.Profiles = make(map[string]*Profile)
	}
	for name, p := range config.Profiles {
		if p == nil {
			config.Profiles[name] = &Profile{}
		}
	}

	return config, nil
}

// Save saves the configuration to the config file
func (c *Config) Save() error {
	return c.saveTo(Path())
}

func (c *Config) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	c.mu.Lock()
	c.Version = CurrentVersion
	data, err := yaml.Marshal(c)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold tokens.
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// validProfileNameRegex matches valid profile names: alphanumeric characters, hyphens, and underscores.
// Must start with an alphanumeric character.
var validProfileNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateProfileName checks if a profile name is valid.
func ValidateProfileName(name string) error {
	if name == "" {
		return errors.New("profile name cannot be empty")
	}
	if !validProfileNameRegex.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must start with a letter or digit and contain only letters, digits, hyphens, and underscores", name)
	}
	return nil
}

// ProfileNames returns the names of all profiles, sorted.
func (c *Config) ProfileNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Sorted(maps.Keys(c.Profiles))
}

// GetProfile returns a copy of the named profile.
func (c *Config) GetProfile(name string) (*Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.Profiles[name]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// SetProfile creates or replaces a profile. The first profile created
// becomes the current one.
func (c *Config) SetProfile(name string, profile *Profile) error {
	if err := ValidateProfileName(name); err != nil {
		return err
	}
	if profile == nil || profile.BaseURL == "" {
		return errors.New("base url cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.Profiles[name] = profile.clone()
	if c.CurrentProfile == "" {
		c.CurrentProfile = name
	}
	return nil
}

// DeleteProfile removes a profile by name.
// It returns true if the profile existed.
func (c *Config) DeleteProfile(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.Profiles[name]; !exists {
		return false
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return true
}

// Use makes the named profile the current one.
func (c *Config) Use(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.CurrentProfile = name
	return nil
}

// Current returns the name of the current profile, or DefaultProfile.
func (c *Config) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return cmp.Or(c.CurrentProfile, DefaultProfile)
}

// Resolve returns the profile to connect with. An empty name selects the
// current profile. A missing default profile resolves to a local server so
// the CLI works without any configuration. AGENTOS_BASE_URL and
// AGENTOS_TOKEN override the result.
func (c *Config) Resolve(name string) (*Profile, error) {
	explicit := name != ""
	if !explicit {
		name = c.Current()
	}

	p, ok := c.GetProfile(name)
	switch {
	case ok:
	case !explicit && name == DefaultProfile:
		p = &Profile{BaseURL: DefaultBaseURL}
	default:
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	if v := os.Getenv(EnvBaseURL); v != "" {
		p.BaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		p.AuthToken = v
	}
	return p, nil
}
