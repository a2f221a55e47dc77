package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")

	content := `
name: Garden Light
hostname: gate.local
username: admin
password: from-file
listen: ":9090"
mqtt:
  broker: tcp://broker.local:1883
  topic: home/garden/light
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Flags override the file.
	cfg.Merge(Bridge{Password: "from-flag"})

	if cfg.Hostname != "gate.local" {
		t.Fatalf("hostname = %q", cfg.Hostname)
	}
	if cfg.Password != "from-flag" {
		t.Fatalf("password = %q, want flag value to win", cfg.Password)
	}
	if cfg.Listen != ":9090" {
		t.Fatalf("listen = %q, want file value kept", cfg.Listen)
	}
	if cfg.MQTT == nil || cfg.MQTT.Broker != "tcp://broker.local:1883" {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestMergeDefaults(t *testing.T) {
	cfg := &Bridge{}
	cfg.Merge(Bridge{Hostname: "gate.local", Username: "admin", Password: "x"})

	if cfg.Listen != DefaultListen {
		t.Fatalf("listen = %q, want default %q", cfg.Listen, DefaultListen)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingPathIsEmpty(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty config")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Bridge{Hostname: "gate.local", Username: "admin", Password: "x", MQTT: &MQTT{}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for mqtt section without broker")
	}
}
