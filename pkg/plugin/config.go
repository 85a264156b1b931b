package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name looked up inside the agents directory by default.
const ManifestFile = "agents.yaml"

// Manifest holds optional per-agent settings keyed by agent name.
type Manifest struct {
	Agents map[string]AgentConfig `yaml:"agents"`
}

// AgentConfig is the manifest block for a single agent.
type AgentConfig struct {
	Enabled     *bool          `yaml:"enabled"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Config      map[string]any `yaml:"config"`
}

// IsEnabled reports whether the agent should be loaded. Agents without an
// explicit flag are enabled.
func (c AgentConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoadManifest reads a YAML manifest. A missing file yields an empty manifest.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	if path == "" {
		return m, errors.New("manifest path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.Agents = map[string]AgentConfig{}
			return m, nil
		}
		return m, fmt.Errorf("read agent manifest: %w", err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("unmarshal agent manifest: %w", err)
	}
	if m.Agents == nil {
		m.Agents = map[string]AgentConfig{}
	}
	return m, m.Validate()
}

// Validate ensures the manifest is internally consistent.
func (m Manifest) Validate() error {
	for name := range m.Agents {
		if name == "" {
			return errors.New("agent name cannot be empty")
		}
	}
	return nil
}

// Lookup returns the block for name, or the zero block.
func (m Manifest) Lookup(name string) AgentConfig {
	if m.Agents == nil {
		return AgentConfig{}
	}
	return m.Agents[name]
}

func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	cp := make(map[string]any, len(cfg))
	for k, v := range cfg {
		cp[k] = v
	}
	return cp
}
