// Package config decodes the mcp-config.json configuration file described in
// spec.md §6 and the environment inputs (provider API keys, PORT) the server
// reads at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// File is the top-level mcp-config.json document.
	File struct {
		MCPServers map[string]ServerConfig `json:"mcpServers" yaml:"mcpServers"`
	}

	// ServerConfig describes one MCP server entry. Exactly one of the stdio
	// fields (Command) or the HTTP fields (URL) is expected to be set; which
	// one determines the transport.
	ServerConfig struct {
		// Command launches a stdio MCP server subprocess.
		Command string `json:"command,omitempty" yaml:"command,omitempty"`
		Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
		Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

		// URL addresses an HTTP-transport MCP server.
		URL       string `json:"url,omitempty" yaml:"url,omitempty"`
		Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`

		// RequestInit carries additional per-request HTTP options (headers,
		// etc.) forwarded verbatim by the HTTP transport.
		RequestInit map[string]any `json:"requestInit,omitempty" yaml:"requestInit,omitempty"`
	}
)

// Transport kinds recognized for HTTP-based MCP servers.
const (
	TransportStdio           = "stdio"
	TransportSSE             = "sse"
	TransportStreamableHTTP  = "streamable-http"
)

// IsStdio reports whether this server entry describes a stdio subprocess.
func (s ServerConfig) IsStdio() bool {
	return s.Command != ""
}

// EffectiveTransport returns the HTTP transport kind for a non-stdio server,
// defaulting to streamable-http when unset.
func (s ServerConfig) EffectiveTransport() string {
	if s.Transport == "" {
		return TransportStreamableHTTP
	}
	return s.Transport
}

// Load reads an mcp-config.json (or, as a local-development convenience, a
// YAML file with the same shape) from path and decodes it into a File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode yaml config %s: %w", path, err)
		}
		return &f, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode json config %s: %w", path, err)
	}
	return &f, nil
}

// ProviderKeys reads the known LLM provider API key environment variables.
// Startup requires at least one to be present (agenterr.ConfigMissingKeys
// otherwise); cmd/server enforces that.
type ProviderKeys struct {
	Anthropic string
	OpenAI    string
}

// LoadProviderKeys reads ANTHROPIC_API_KEY and OPENAI_API_KEY from the
// environment.
func LoadProviderKeys() ProviderKeys {
	return ProviderKeys{
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
	}
}

// Any reports whether at least one provider key is present.
func (k ProviderKeys) Any() bool {
	return k.Anthropic != "" || k.OpenAI != ""
}

// Port reads the PORT environment variable, defaulting to "8080".
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "8080"
}
