package mcpconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/docker/agentos-client/pkg/paths"
)

// DefaultPath returns the path of the MCP configuration file
func DefaultPath() string {
	return filepath.Join(paths.GetConfigDir(), "mcp_servers.json")
}

// Manager loads and edits an MCP configuration file. The file keeps ${VAR}
// references as written; readers get copies with references expanded.
type Manager struct {
	mu   sync.Mutex
	path string
	cfg  *Config
}

func NewManager(path string) *Manager {
	if path == "" {
		path = DefaultPath()
	}
	return &Manager{path: path}
}

func (m *Manager) Path() string {
	return m.path
}

// Load reads the configuration file, creating it with defaults when it does
// not exist.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read MCP config: %w", err)
		}
		slog.Debug("Creating default MCP config", "path", m.path)
		m.cfg = &Config{Servers: []ServerConfig{}, DefaultModel: DefaultModel()}
		return m.save()
	}

	cfg, err := parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse MCP config %s: %w", m.path, err)
	}
	m.cfg = cfg
	return nil
}

func parse(data []byte) (*Config, error) {
	cfg := &Config{DefaultModel: DefaultModel()}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Servers == nil {
		cfg.Servers = []ServerConfig{}
	}

	seen := map[string]bool{}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.ID == "" {
			return nil, fmt.Errorf("server #%d: id is required", i+1)
		}
		if !s.Transport.Valid() {
			return nil, fmt.Errorf("server %q: %w %q", s.ID, ErrInvalidTransport, s.Transport)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("server %q: %w", s.ID, ErrServerExists)
		}
		seen[s.ID] = true
		s.normalize()
	}
	return cfg, nil
}

func (m *Manager) ensureLoaded() error {
	if m.cfg != nil {
		return nil
	}
	return m.load()
}

// Save writes the configuration atomically.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg == nil {
		return nil
	}
	return m.save()
}

func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal MCP config: %w", err)
	}

	return atomic.WriteFile(m.path, bytes.NewReader(data))
}

// Config returns the configuration with ${VAR} references expanded.
func (m *Manager) Config() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return nil, err
	}

	out := m.cfg.clone()
	for i := range out.Servers {
		out.Servers[i] = out.Servers[i].resolved()
	}
	out.DefaultModel = out.DefaultModel.resolved()
	return out, nil
}

// Raw returns the configuration as stored, without expanding references.
func (m *Manager) Raw() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return nil, err
	}
	return m.cfg.clone(), nil
}

// EnabledServers returns the enabled servers with references expanded.
func (m *Manager) EnabledServers() ([]ServerConfig, error) {
	cfg, err := m.Config()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(cfg.Servers, func(s ServerConfig) bool { return !s.IsEnabled() }), nil
}

// Server returns the server with the given id, references expanded.
func (m *Manager) Server(id string) (ServerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return ServerConfig{}, err
	}
	i := m.indexOf(id)
	if i < 0 {
		return ServerConfig{}, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	return m.cfg.Servers[i].resolved(), nil
}

func (m *Manager) indexOf(id string) int {
	return slices.IndexFunc(m.cfg.Servers, func(s ServerConfig) bool { return s.ID == id })
}

// AddServer validates and appends a server.
func (m *Manager) AddServer(server ServerConfig) error {
	if err := server.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return err
	}
	if m.indexOf(server.ID) >= 0 {
		return fmt.Errorf("server with ID %q: %w", server.ID, ErrServerExists)
	}

	s := server.clone()
	s.normalize()
	m.cfg.Servers = append(m.cfg.Servers, s)
	return m.save()
}

// ServerUpdate lists the fields to change. Nil fields are left alone.
type ServerUpdate struct {
	Name           *string
	Description    *string
	Enabled        *bool
	Transport      *Transport
	Command        *string
	Args           []string
	URL            *string
	Headers        map[string]string
	Env            map[string]string
	Timeout        *int
	SSEReadTimeout *int
}

func (u *ServerUpdate) apply(s *ServerConfig) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Enabled != nil {
		s.SetEnabled(*u.Enabled)
	}
	if u.Transport != nil {
		s.Transport = *u.Transport
	}
	if u.Command != nil {
		s.Command = *u.Command
	}
	if u.Args != nil {
		s.Args = slices.Clone(u.Args)
	}
	if u.URL != nil {
		s.URL = *u.URL
	}
	if u.Headers != nil {
		s.Headers = u.Headers
	}
	if u.Env != nil {
		s.Env = u.Env
	}
	if u.Timeout != nil {
		v := *u.Timeout
		s.Timeout = &v
	}
	if u.SSEReadTimeout != nil {
		v := *u.SSEReadTimeout
		s.SSEReadTimeout = &v
	}
}

// UpdateServer applies update to the server and returns the stored result.
func (m *Manager) UpdateServer(id string, update ServerUpdate) (ServerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return ServerConfig{}, err
	}
	i := m.indexOf(id)
	if i < 0 {
		return ServerConfig{}, fmt.Errorf("server with ID %q: %w", id, ErrServerNotFound)
	}

	s := m.cfg.Servers[i].clone()
	update.apply(&s)
	if err := s.Validate(); err != nil {
		return ServerConfig{}, err
	}
	s.normalize()

	m.cfg.Servers[i] = s
	if err := m.save(); err != nil {
		return ServerConfig{}, err
	}
	return s.clone(), nil
}

// DeleteServer removes a server. It reports whether the server existed.
func (m *Manager) DeleteServer(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return false, err
	}
	i := m.indexOf(id)
	if i < 0 {
		return false, nil
	}
	m.cfg.Servers = slices.Delete(m.cfg.Servers, i, i+1)
	return true, m.save()
}

// ToggleServer enables or disables a server.
func (m *Manager) ToggleServer(id string, enabled bool) (ServerConfig, error) {
	return m.UpdateServer(id, ServerUpdate{Enabled: &enabled})
}

// ModelUpdate lists the model fields to change. Nil fields are left alone.
type ModelUpdate struct {
	Provider    *string
	ModelID     *string
	APIKeyEnv   *string
	BaseURL     *string
	Temperature *float64
	MaxTokens   *int
}

// UpdateModel changes the default model configuration.
func (m *Manager) UpdateModel(update ModelUpdate) (ModelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return ModelConfig{}, err
	}

	model := m.cfg.DefaultModel
	if update.Provider != nil {
		model.Provider = *update.Provider
	}
	if update.ModelID != nil {
		model.ModelID = *update.ModelID
	}
	if update.APIKeyEnv != nil {
		v := *update.APIKeyEnv
		model.APIKeyEnv = &v
	}
	if update.BaseURL != nil {
		v := *update.BaseURL
		model.BaseURL = &v
	}
	if update.Temperature != nil {
		if *update.Temperature < 0 || *update.Temperature > 2 {
			return ModelConfig{}, fmt.Errorf("temperature %v out of range [0, 2]", *update.Temperature)
		}
		model.Temperature = *update.Temperature
	}
	if update.MaxTokens != nil {
		v := *update.MaxTokens
		model.MaxTokens = &v
	}
	if model.Provider == "" || model.ModelID == "" {
		return ModelConfig{}, errors.New("provider and model id cannot be empty")
	}

	m.cfg.DefaultModel = model
	if err := m.save(); err != nil {
		return ModelConfig{}, err
	}
	return model, nil
}

// Export returns the stored configuration as indented JSON.
func (m *Manager) Export() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal MCP config: %w", err)
	}
	return string(data), nil
}

// Import replaces the whole configuration with the given JSON document.
func (m *Manager) Import(data string) error {
	cfg, err := parse([]byte(data))
	if err != nil {
		return fmt.Errorf("invalid MCP config: %w", err)
	}
	for i := range cfg.Servers {
		if err := cfg.Servers[i].Validate(); err != nil {
			return fmt.Errorf("invalid MCP config: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg
	return m.save()
}
