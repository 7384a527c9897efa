// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ProviderType identifies an LLM provider's wire protocol.
type ProviderType string

const (
	// ProviderClaudeCode drives a local claude-code runtime.
	ProviderClaudeCode ProviderType = "claude_code"

	// ProviderOpenAI speaks the OpenAI-compatible HTTP API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderLocal is a local OpenAI-compatible server (ollama,
	// llama.cpp, vllm).
	ProviderLocal ProviderType = "local"
)

// Valid reports whether t is a known provider type token.
func (t ProviderType) Valid() bool {
	switch t {
	case ProviderClaudeCode, ProviderOpenAI, ProviderLocal:
		return true
	}
	return false
}

// UnmarshalYAML rejects unknown tokens.
func (t *ProviderType) UnmarshalYAML(value *yaml.Node) error {
	var token string
	if err := value.Decode(&token); err != nil {
		return err
	}
	if !ProviderType(token).Valid() {
		return fmt.Errorf("unknown provider type %q", token)
	}
	*t = ProviderType(token)
	return nil
}

// ProviderConfig describes one LLM provider agents may use.
type ProviderConfig struct {
	// Name identifies the provider in agent configuration.
	Name string `yaml:"name"`

	// Type selects the wire protocol.
	Type ProviderType `yaml:"type"`

	// BaseURL is the API endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// Keys never live in the config file. Multiple variables form a
	// token pool rotated round-robin across requests.
	APIKeyEnv []string `yaml:"api_key_env"`

	// Enabled gates the provider without deleting its block.
	Enabled bool `yaml:"enabled"`

	// RateLimit optionally throttles the provider.
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`

	// next is the token pool rotation cursor.
	nextMu sync.Mutex
	next   int
}

// RateLimitConfig throttles a provider.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate.
	RequestsPerMinute uint32 `yaml:"requests_per_minute"`

	// BurstSize is the short-term burst allowance.
	BurstSize uint32 `yaml:"burst_size"`
}

// Validate checks the provider block.
func (p *ProviderConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown provider type %q", p.Type)
	}
	if p.Type != ProviderClaudeCode && p.BaseURL == "" {
		return fmt.Errorf("base_url is required for provider type %q", p.Type)
	}
	if p.RateLimit != nil {
		if p.RateLimit.RequestsPerMinute == 0 {
			return fmt.Errorf("rate_limit.requests_per_minute must be positive")
		}
		if p.RateLimit.BurstSize == 0 {
			return fmt.Errorf("rate_limit.burst_size must be positive")
		}
	}
	return nil
}

// NextKey returns the next API key from the provider's token pool,
// rotating round-robin. Unset environment variables are skipped; an
// empty pool or all-unset pool yields "".
func (p *ProviderConfig) NextKey() string {
	p.nextMu.Lock()
	defer p.nextMu.Unlock()

	for range p.APIKeyEnv {
		name := p.APIKeyEnv[p.next%len(p.APIKeyEnv)]
		p.next++
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}
