package distribution

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBundle(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

const validBundle = `
policies:
  - id: require-owner
    name: Capsules must declare an owner
    version: 2
    enabled: true
    enforcement: BLOCK
    severity: ERROR
    priority: 10
    scope:
      objectTypes: ["CAPSULE"]
      namespacePatterns: ["finance\\..*"]
    conditions:
      - field: classification
        operator: EQUALS
        value: restricted
    constraints:
      - type: REQUIRE_OWNER
        message: restricted capsules need an owner
  - id: warn-description
    name: Capsules should have a description
    version: 1
    enabled: true
    enforcement: WARN
    constraints:
      - type: REQUIRE_DESCRIPTION
`

func TestLoadBundleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeBundle(t, dir, "policies.yaml", validBundle)

	policies, err := LoadBundleFile(path)
	if err != nil {
		t.Fatalf("LoadBundleFile() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("LoadBundleFile() returned %d policies, want 2", len(policies))
	}

	p := policies[0]
	if p.ID != "require-owner" || p.Version != 2 || p.Priority != 10 {
		t.Errorf("policy = %+v, want require-owner v2 priority 10", p)
	}
	if len(p.Scope.ObjectTypes) != 1 || p.Scope.ObjectTypes[0] != "CAPSULE" {
		t.Errorf("ObjectTypes = %v, want [CAPSULE]", p.Scope.ObjectTypes)
	}
	if len(p.Conditions) != 1 || p.Conditions[0].Operator != "EQUALS" {
		t.Errorf("Conditions = %+v", p.Conditions)
	}
	if len(p.Constraints) != 1 || p.Constraints[0].Type != "REQUIRE_OWNER" {
		t.Errorf("Constraints = %+v", p.Constraints)
	}
	if p.Constraints[0].Message != "restricted capsules need an owner" {
		t.Errorf("Message = %q", p.Constraints[0].Message)
	}
}

func TestLoadBundleFileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{
			name: "missing file",
			path: filepath.Join(dir, "nope.yaml"),
		},
		{
			name: "directory",
			path: dir,
		},
		{
			name: "malformed yaml",
			path: writeBundle(t, dir, "broken.yaml", "policies: [unterminated"),
		},
		{
			name: "invalid policy",
			path: writeBundle(t, dir, "invalid.yaml", "policies:\n  - name: missing id\n"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadBundleFile(tt.path); err == nil {
				t.Error("LoadBundleFile() expected error")
			}
		})
	}
}

func TestLoadBundleDir(t *testing.T) {
	dir := t.TempDir()

	writeBundle(t, dir, "b.yaml", "policies:\n  - {id: second, name: second, enforcement: WARN, enabled: true}\n")
	writeBundle(t, dir, "a.yml", "policies:\n  - {id: first, name: first, enforcement: LOG, enabled: true}\n")
	writeBundle(t, dir, "notes.txt", "not a bundle")
	writeBundle(t, dir, ".hidden.yaml", "policies: [")

	policies, err := LoadBundleDir(dir)
	if err != nil {
		t.Fatalf("LoadBundleDir() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("LoadBundleDir() returned %d policies, want 2", len(policies))
	}
	// Files load in name order.
	if policies[0].ID != "first" || policies[1].ID != "second" {
		t.Errorf("order = [%s %s], want [first second]", policies[0].ID, policies[1].ID)
	}
}

func TestLoadBundleDirMissing(t *testing.T) {
	if _, err := LoadBundleDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("LoadBundleDir() on missing dir expected error")
	}
}
