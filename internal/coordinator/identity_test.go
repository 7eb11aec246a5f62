package coordinator

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateIdentity_GeneratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.dat")

	key1, err := loadOrCreateIdentity(path)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity (create): %v", err)
	}

	key2, err := loadOrCreateIdentity(path)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity (reload): %v", err)
	}

	if string(key1.Serialize()) != string(key2.Serialize()) {
		t.Error("reloaded identity does not match the persisted one")
	}
}

func TestLoadOrCreateIdentity_NestedDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "identity.dat")

	if _, err := loadOrCreateIdentity(path); err != nil {
		t.Fatalf("loadOrCreateIdentity: %v", err)
	}
}
