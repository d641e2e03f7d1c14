package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `
admin:
  username: admin
  password: s3cret
display_modes:
  collection: [masonry]
  asset_group: [carousel]
`)
	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if seed.Admin.Username != "admin" || seed.Admin.Password != "s3cret" {
		t.Fatalf("admin not parsed: %+v", seed.Admin)
	}
	if len(seed.DisplayModes.Collection) != 1 || seed.DisplayModes.Collection[0] != "masonry" {
		t.Fatalf("collection modes not parsed: %+v", seed.DisplayModes)
	}
	if len(seed.DisplayModes.Relationship) != 0 {
		t.Fatalf("absent family should stay empty")
	}
}

func TestLoadSeedRejectsEmptyPassword(t *testing.T) {
	path := writeSeed(t, "admin:\n  username: admin\n")
	if _, err := LoadSeed(path); err == nil {
		t.Fatalf("admin with empty password should be rejected")
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing file should error")
	}
}
