package access

import (
	"os"
	"path/filepath"
	"testing"

	"estateflow/auth"
)

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yml")
	content := `
roles:
  agent:
    properties: [view, create]
  staff:
    analytics: [view]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}

	if !p.Allows(auth.RoleAgent, ModuleProperties, ActionView) {
		t.Fatal("expected agent properties view to be allowed")
	}
	if p.Allows(auth.RoleAgent, ModuleProperties, ActionEdit) {
		t.Fatal("actions absent from the file must stay denied")
	}
	if p.Allows(auth.RoleSuperAdmin, ModuleProperties, ActionView) {
		t.Fatal("a loaded file replaces the built-in defaults entirely")
	}
}

func TestLoadPolicy_RejectsUnknownNames(t *testing.T) {
	dir := t.TempDir()

	badModule := filepath.Join(dir, "bad_module.yml")
	if err := os.WriteFile(badModule, []byte("roles:\n  agent:\n    payments: [view]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicy(badModule); err == nil {
		t.Fatal("expected error for unknown module")
	}

	badAction := filepath.Join(dir, "bad_action.yml")
	if err := os.WriteFile(badAction, []byte("roles:\n  agent:\n    leads: [approve]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicy(badAction); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
