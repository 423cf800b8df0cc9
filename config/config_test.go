package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shmbus/shmbus/config"
)

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Defaults.PublishSubscribe.MaxPublishers == 0 {
		t.Fatal("expected nonzero default max publishers")
	}
}

func TestLoadExplicitPathOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shmbus.conf")
	content := `
[global]
prefix = "custom_"

[defaults.publish-subscribe]
max-publishers = 99
max-subscribers = 64

[unknown-section]
whatever = 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Global.Prefix != "custom_" {
		t.Fatalf("expected custom prefix, got %q", cfg.Global.Prefix)
	}
	if cfg.Defaults.PublishSubscribe.MaxPublishers != 99 {
		t.Fatalf("expected max-publishers 99, got %d", cfg.Defaults.PublishSubscribe.MaxPublishers)
	}
}
