// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// Manifest describes one skill: what it does, what it consumes and
// produces, and what it depends on. Manifests are produced by the
// building stage and registered by skill management.
type Manifest struct {
	// Name is the skill's unique name (e.g. "web-search").
	Name string `json:"name"`

	// Version is the skill's semantic version.
	Version string `json:"version"`

	// Description is a one-line human summary.
	Description string `json:"description"`

	// Capabilities are the capability tokens agents advertise when
	// they register with this skill loaded.
	Capabilities []string `json:"capabilities"`

	// Inputs and Outputs describe the skill's interface.
	Inputs  []IO `json:"inputs"`
	Outputs []IO `json:"outputs"`

	// Dependencies names other skills this one requires.
	Dependencies []string `json:"dependencies"`

	// HasCode is set when the skill ships executable code rather
	// than pure configuration.
	HasCode bool `json:"has_code"`

	// Endpoints lists the external HTTP endpoints the skill calls.
	Endpoints []Endpoint `json:"endpoints"`

	// AuthRef optionally names the credential the endpoints use.
	AuthRef string `json:"auth_ref"`
}

// IO is one named input or output of a skill.
type IO struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Endpoint is one external HTTP endpoint a skill calls.
type Endpoint struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Method  Method            `json:"method"`
	Headers map[string]string `json:"headers"`
}

// Method is an HTTP method token. Tokens are uppercase on the wire,
// matching HTTP itself.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// Valid reports whether m is a known method token.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown tokens.
func (m *Method) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("http method must be a string: %w", err)
	}
	if !Method(token).Valid() {
		return fmt.Errorf("unknown http method %q", token)
	}
	*m = Method(token)
	return nil
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Manifest.
func Parse(data []byte) (*Manifest, error) {
	stripped := jsonc.ToJSON(data)

	var manifest Manifest
	if err := json.Unmarshal(stripped, &manifest); err != nil {
		return nil, fmt.Errorf("parsing skill manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid skill manifest: %w", err)
	}
	return &manifest, nil
}

// Validate checks required fields and interface consistency.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("name is required")
	}
	if m.Version == "" {
		return errors.New("version is required")
	}
	names := make(map[string]bool)
	for _, io := range append(append([]IO(nil), m.Inputs...), m.Outputs...) {
		if io.Name == "" {
			return errors.New("input/output name is required")
		}
		if io.Type == "" {
			return fmt.Errorf("input/output %q: type is required", io.Name)
		}
	}
	for _, endpoint := range m.Endpoints {
		if endpoint.Name == "" {
			return errors.New("endpoint name is required")
		}
		if endpoint.URL == "" {
			return fmt.Errorf("endpoint %q: url is required", endpoint.Name)
		}
		if !endpoint.Method.Valid() {
			return fmt.Errorf("endpoint %q: unknown http method %q", endpoint.Name, endpoint.Method)
		}
		if names[endpoint.Name] {
			return fmt.Errorf("duplicate endpoint name %q", endpoint.Name)
		}
		names[endpoint.Name] = true
	}
	return nil
}

// ReadFile reads a JSONC manifest from disk.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	manifest, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// LoadDir loads every *.jsonc manifest in dir, keyed by skill name.
// A missing directory yields an empty map: skills are optional.
func LoadDir(dir string) (map[string]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]*Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading skill dir %s: %w", dir, err)
	}

	manifests := make(map[string]*Manifest)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonc") {
			continue
		}
		manifest, err := ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, ok := manifests[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate skill name %q in %s", manifest.Name, dir)
		}
		manifests[manifest.Name] = manifest
	}
	return manifests, nil
}

// Names returns the sorted skill names of a loaded manifest set.
func Names(manifests map[string]*Manifest) []string {
	names := make([]string, 0, len(manifests))
	for name := range manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
