// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.toml")
	contents := `
user = "deploy"
host_string = "example.invalid"
port = 2222
use_sudo = true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	t.Cleanup(func() {
		_ = SetDefaults(nil)
	})

	if err := LoadDefaults(path); err != nil {
		t.Fatalf("LoadDefaults returned error: %v", err)
	}

	env := CurrentEnv()
	if got, _ := env.GetString("user"); got != "deploy" {
		t.Fatalf("user = %q, want deploy", got)
	}
	if got, _ := env.GetString("host_string"); got != "example.invalid" {
		t.Fatalf("host_string = %q, want example.invalid", got)
	}
	if !env.GetBool("use_sudo") {
		t.Fatal("use_sudo = false, want true")
	}
}
