package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func TestInitWritesConfig(t *testing.T) {
	dir := chdirTemp(t)

	if err := initCmd.Flags().Set("owner", "octo"); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := initCmd.Flags().Set("repo", "demo"); err != nil {
		t.Fatalf("set repo: %v", err)
	}
	if err := initProject(initCmd, nil); err != nil {
		t.Fatalf("initProject: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".repolens.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	content := string(data)
	for _, want := range []string{"owner: octo", "name: demo", "api_version: \"2024-02-01\"", "command: npx"} {
		if !strings.Contains(content, want) {
			t.Errorf("config missing %q:\n%s", want, content)
		}
	}
}

func TestInitRefusesOverwriteWithoutForce(t *testing.T) {
	dir := chdirTemp(t)

	path := filepath.Join(dir, ".repolens.yaml")
	if err := os.WriteFile(path, []byte("existing: true\n"), 0644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if err := initCmd.Flags().Set("force", "false"); err != nil {
		t.Fatalf("set force: %v", err)
	}
	err := initProject(initCmd, nil)
	if err == nil {
		t.Fatal("expected error when config exists")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("error should mention --force, got %v", err)
	}

	if err := initCmd.Flags().Set("force", "true"); err != nil {
		t.Fatalf("set force: %v", err)
	}
	if err := initProject(initCmd, nil); err != nil {
		t.Fatalf("initProject with force: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(string(data), "existing: true") {
		t.Error("config was not overwritten")
	}
}
