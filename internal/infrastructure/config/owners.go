package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OwnersConfig holds dynamic owner definitions (read/write).
type OwnersConfig struct {
	Owners map[string]OwnerEntry `yaml:"owners,omitempty"`
}

// OwnerEntry holds configuration for a specific owner.
type OwnerEntry struct {
	Collection  string `yaml:"collection"`
	Description string `yaml:"description,omitempty"`
}

// LoadOwners loads owner configuration from the .mnemo directory.
func LoadOwners(basePath string) (*OwnersConfig, error) {
	ownersFile := filepath.Join(basePath, DefaultConfigDir, DefaultOwnersFile)

	data, err := os.ReadFile(ownersFile)
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &OwnersConfig{
			Owners: make(map[string]OwnerEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading owners file: %w", err)
	}

	var cfg OwnersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing owners file: %w", err)
	}

	if cfg.Owners == nil {
		cfg.Owners = make(map[string]OwnerEntry)
	}

	return &cfg, nil
}

// Save writes the owner configuration to the owners file.
func (o *OwnersConfig) Save(basePath string) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	ownersFile := filepath.Join(configDir, DefaultOwnersFile)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshaling owners config: %w", err)
	}

	if err := os.WriteFile(ownersFile, data, 0600); err != nil {
		return fmt.Errorf("writing owners file: %w", err)
	}

	return nil
}

// Add adds an owner to the configuration.
func (o *OwnersConfig) Add(id string, entry OwnerEntry) {
	if o.Owners == nil {
		o.Owners = make(map[string]OwnerEntry)
	}
	o.Owners[id] = entry
}

// Remove removes an owner from the configuration.
func (o *OwnersConfig) Remove(id string) {
	if o.Owners != nil {
		delete(o.Owners, id)
	}
}

// Get returns the configuration for a specific owner.
func (o *OwnersConfig) Get(id string) (*OwnerEntry, error) {
	if len(o.Owners) == 0 {
		return nil, errors.New("no owners configured")
	}

	entry, ok := o.Owners[id]
	if !ok {
		var b strings.Builder
		count := 0
		for k := range o.Owners {
			if count > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			count++
			if count >= 5 {
				b.WriteString(", ...")
				break
			}
		}
		return nil, fmt.Errorf("owner %q not found (available: %s)", id, b.String())
	}

	return &entry, nil
}

// GetCollection returns the Qdrant collection name for an owner.
func (o *OwnersConfig) GetCollection(id string) (string, error) {
	entry, err := o.Get(id)
	if err != nil {
		return "", err
	}
	return entry.Collection, nil
}

// Exists checks if an owner exists in the configuration.
func (o *OwnersConfig) Exists(id string) bool {
	if o.Owners == nil {
		return false
	}
	_, ok := o.Owners[id]
	return ok
}

// OwnersExists checks if an owners config file exists in the given path.
func OwnersExists(basePath string) bool {
	ownersFile := filepath.Join(basePath, DefaultConfigDir, DefaultOwnersFile)
	_, err := os.Stat(ownersFile)
	return err == nil
}
