// Package config loads the optional bridge configuration file. Everything
// in it can also be supplied by flags; flags win.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bridge is the serve-mode configuration.
type Bridge struct {
	Name     string `yaml:"name,omitempty"`
	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
	// TimeoutSeconds bounds each controller HTTP exchange; 0 means the
	// client default.
	TimeoutSeconds int   `yaml:"timeout_seconds,omitempty"`
	MQTT           *MQTT `yaml:"mqtt,omitempty"`
}

// MQTT configures the optional broker mirror.
type MQTT struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic,omitempty"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// DefaultListen is used when neither file nor flag sets an address.
const DefaultListen = ":8080"

// Load reads a YAML bridge configuration. A missing path returns an empty
// config so flag-only invocations work.
func Load(path string) (*Bridge, error) {
	if path == "" {
		return &Bridge{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Bridge
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Merge overlays non-zero override values on top of the file values and
// fills remaining defaults.
func (b *Bridge) Merge(override Bridge) {
	if override.Name != "" {
		b.Name = override.Name
	}
	if override.Hostname != "" {
		b.Hostname = override.Hostname
	}
	if override.Username != "" {
		b.Username = override.Username
	}
	if override.Password != "" {
		b.Password = override.Password
	}
	if override.Debug {
		b.Debug = true
	}
	if override.Listen != "" {
		b.Listen = override.Listen
	}
	if override.TimeoutSeconds != 0 {
		b.TimeoutSeconds = override.TimeoutSeconds
	}
	if override.MQTT != nil {
		b.MQTT = override.MQTT
	}

	if b.Listen == "" {
		b.Listen = DefaultListen
	}
}

// Validate checks that the controller can actually be reached with what we
// have.
func (b *Bridge) Validate() error {
	if b.Hostname == "" {
		return errors.New("controller hostname is required (flag --hostname or config file)")
	}
	if b.Username == "" || b.Password == "" {
		return errors.New("controller credentials are required (flags --username/--password or config file)")
	}
	if b.MQTT != nil && b.MQTT.Broker == "" {
		return errors.New("mqtt section present but broker is empty")
	}
	return nil
}
