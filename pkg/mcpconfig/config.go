// Package mcpconfig manages the MCP servers and default model an AgentOS
// backend connects to. The configuration is stored as JSON in
// ~/.config/agentos/mcp_servers.json.
package mcpconfig

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
)

// Transport is the wire an MCP server is reached over
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

// Transports lists the supported transports.
var Transports = []Transport{TransportStdio, TransportSSE, TransportStreamableHTTP}

func (t Transport) Valid() bool {
	return slices.Contains(Transports, t)
}

const (
	DefaultTimeout        = 30
	DefaultSSEReadTimeout = 300
)

var (
	ErrServerExists     = errors.New("server already exists")
	ErrServerNotFound   = errors.New("server not found")
	ErrInvalidTransport = errors.New("invalid transport")
)

// ServerConfig describes one MCP server
type ServerConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Enabled defaults to true when absent from the file.
	Enabled   *bool     `json:"enabled,omitempty"`
	Transport Transport `json:"transport"`

	// stdio
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args"`

	// sse and streamable-http
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers"`

	Env map[string]string `json:"env"`

	// Timeout is the connection timeout in seconds.
	Timeout *int `json:"timeout,omitempty"`
	// SSEReadTimeout is the SSE read timeout in seconds.
	SSEReadTimeout *int `json:"sse_read_timeout,omitempty"`
}

// IsEnabled reports whether the server is enabled. Servers are enabled unless
// explicitly disabled.
func (s *ServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s *ServerConfig) SetEnabled(enabled bool) {
	s.Enabled = &enabled
}

// TimeoutSeconds returns the connection timeout, defaulting to 30s.
func (s *ServerConfig) TimeoutSeconds() int {
	if s.Timeout == nil || *s.Timeout <= 0 {
		return DefaultTimeout
	}
	return *s.Timeout
}

// SSEReadTimeoutSeconds returns the SSE read timeout, defaulting to 300s.
func (s *ServerConfig) SSEReadTimeoutSeconds() int {
	if s.SSEReadTimeout == nil || *s.SSEReadTimeout <= 0 {
		return DefaultSSEReadTimeout
	}
	return *s.SSEReadTimeout
}

// Validate checks that the server can be connected to.
func (s *ServerConfig) Validate() error {
	if s.ID == "" {
		return errors.New("server id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("server %q: name is required", s.ID)
	}
	if !s.Transport.Valid() {
		return fmt.Errorf("server %q: %w %q (expected one of %v)", s.ID, ErrInvalidTransport, s.Transport, Transports)
	}
	switch s.Transport {
	case TransportStdio:
		if s.Command == "" {
			return fmt.Errorf("server %q: command is required for stdio transport", s.ID)
		}
	case TransportSSE, TransportStreamableHTTP:
		if s.URL == "" {
			return fmt.Errorf("server %q: url is required for %s transport", s.ID, s.Transport)
		}
	}
	return nil
}

func (s ServerConfig) clone() ServerConfig {
	c := s
	c.Args = slices.Clone(s.Args)
	c.Headers = maps.Clone(s.Headers)
	c.Env = maps.Clone(s.Env)
	if s.Enabled != nil {
		v := *s.Enabled
		c.Enabled = &v
	}
	if s.Timeout != nil {
		v := *s.Timeout
		c.Timeout = &v
	}
	if s.SSEReadTimeout != nil {
		v := *s.SSEReadTimeout
		c.SSEReadTimeout = &v
	}
	return c
}

// normalize fills the collection fields so the file never contains null.
func (s *ServerConfig) normalize() {
	if s.Args == nil {
		s.Args = []string{}
	}
	if s.Headers == nil {
		s.Headers = map[string]string{}
	}
	if s.Env == nil {
		s.Env = map[string]string{}
	}
	if s.Enabled == nil {
		s.SetEnabled(true)
	}
	if s.Timeout == nil {
		v := DefaultTimeout
		s.Timeout = &v
	}
	if s.SSEReadTimeout == nil {
		v := DefaultSSEReadTimeout
		s.SSEReadTimeout = &v
	}
}

// ModelConfig is the model the backend agent runs on
type ModelConfig struct {
	Provider    string  `json:"provider"`
	ModelID     string  `json:"model_id"`
	APIKeyEnv   *string `json:"api_key_env"`
	BaseURL     *string `json:"base_url"`
	Temperature float64 `json:"temperature"`
	MaxTokens   *int    `json:"max_tokens"`
}

func DefaultModel() ModelConfig {
	return ModelConfig{
		Provider:    "openai",
		ModelID:     "gpt-4o-mini",
		Temperature: 0.7,
	}
}

// APIKey resolves the API key from the configured environment variable.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == nil || *m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(*m.APIKeyEnv)
}

// Config is the whole mcp_servers.json document
type Config struct {
	Servers      []ServerConfig `json:"servers"`
	DefaultModel ModelConfig    `json:"default_model"`
}

func (c *Config) clone() *Config {
	out := &Config{
		Servers:      make([]ServerConfig, len(c.Servers)),
		DefaultModel: c.DefaultModel,
	}
	for i := range c.Servers {
		out.Servers[i] = c.Servers[i].clone()
	}
	return out
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${VAR} references with the value of the environment
// variable. Unset variables expand to the empty string.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// resolved returns a copy of the server with ${VAR} references expanded in
// every string value.
func (s ServerConfig) resolved() ServerConfig {
	c := s.clone()
	c.ID = ExpandEnv(c.ID)
	c.Name = ExpandEnv(c.Name)
	c.Description = ExpandEnv(c.Description)
	c.Command = ExpandEnv(c.Command)
	c.URL = ExpandEnv(c.URL)
	for i, arg := range c.Args {
		c.Args[i] = ExpandEnv(arg)
	}
	for k, v := range c.Headers {
		c.Headers[k] = ExpandEnv(v)
	}
	for k, v := range c.Env {
		c.Env[k] = ExpandEnv(v)
	}
	return c
}

func (m ModelConfig) resolved() ModelConfig {
	c := m
	c.Provider = ExpandEnv(m.Provider)
	c.ModelID = ExpandEnv(m.ModelID)
	if m.APIKeyEnv != nil {
		v := ExpandEnv(*m.APIKeyEnv)
		c.APIKeyEnv = &v
	}
	if m.BaseURL != nil {
		v := ExpandEnv(*m.BaseURL)
		c.BaseURL = &v
	}
	return c
}
