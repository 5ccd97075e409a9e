package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstaller_InstallCopiesAndWritesLock(t *testing.T) {
	src := writeSkill(t, t.TempDir(), "Stock-Price", `{"name":"Stock-Price","entrypoint":"run.sh"}`, echoScript)
	root := filepath.Join(t.TempDir(), "skills")

	installer := NewInstaller(root)
	name, err := installer.Install(src)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if name != "stock_price" {
		t.Fatalf("expected sanitized name stock_price, got %q", name)
	}
	if _, err := os.Stat(filepath.Join(root, "stock_price", "run.sh")); err != nil {
		t.Fatalf("expected entrypoint to be copied: %v", err)
	}

	entries, err := installer.Locked()
	if err != nil {
		t.Fatalf("Locked failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "stock_price" || len(entries[0].DigestSHA) != 64 {
		t.Fatalf("unexpected lock entries: %+v", entries)
	}

	if _, err := installer.Install(src); err == nil {
		t.Fatalf("expected duplicate install to fail")
	}
}

func TestInstaller_RejectsInvalidSkill(t *testing.T) {
	src := writeSkill(t, t.TempDir(), "broken", `{"name":"broken","entrypoint":"missing.sh"}`, "")
	root := filepath.Join(t.TempDir(), "skills")

	if _, err := NewInstaller(root).Install(src); err == nil {
		t.Fatalf("expected invalid skill to be rejected")
	}
	if _, err := os.Stat(filepath.Join(root, "broken")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing to be installed")
	}
}

func TestInstaller_UninstallRemovesLockEntry(t *testing.T) {
	src := writeSkill(t, t.TempDir(), "weather", `{"name":"weather","entrypoint":"run.sh"}`, echoScript)
	root := filepath.Join(t.TempDir(), "skills")
	installer := NewInstaller(root)
	if _, err := installer.Install(src); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if err := installer.Uninstall("weather"); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "weather")); !os.IsNotExist(err) {
		t.Fatalf("expected skill directory to be removed")
	}
	if _, err := os.Stat(filepath.Join(root, skillLockFile)); !os.IsNotExist(err) {
		t.Fatalf("expected lock file to be removed when last entry is deleted")
	}
	if err := installer.Uninstall("weather"); err == nil {
		t.Fatalf("expected second uninstall to fail")
	}
}
