package skills

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const echoScript = "#!/bin/sh\ncat\n"

func writeSkill(t *testing.T, root, dir, manifest, script string) string {
	t.Helper()
	skillDir := filepath.Join(root, dir)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir skill dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(skillDir, "run.sh"), []byte(script), 0o755); err != nil {
			t.Fatalf("write entrypoint: %v", err)
		}
	}
	return skillDir
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skill entrypoints in tests are shell scripts")
	}
}
