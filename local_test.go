// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
)

func skipIfNoBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestLocalCapturesStdout(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local("echo hello", map[string]any{optCapture: true})
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("result.Succeeded = false, want true")
	}
	if len(result.Stdout) != 1 || result.Stdout[0] != "hello" {
		t.Fatalf("Stdout = %v, want [hello]", result.Stdout)
	}
}

func TestLocalDiscardOutput(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local("echo hello", map[string]any{optCapture: true, optDiscardOutput: true})
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if result.Stdout != nil {
		t.Fatalf("Stdout = %v, want nil when discard_output is set", result.Stdout)
	}
}

func TestLocalCombineStderr(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local(`echo out; echo err 1>&2`, map[string]any{optCapture: true, optCombineStderr: true})
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if result.Stderr != nil {
		t.Fatalf("Stderr = %v, want nil when combine_stderr is set", result.Stderr)
	}
	if len(result.Stdout) != 2 {
		t.Fatalf("Stdout = %v, want two interleaved lines", result.Stdout)
	}
}

func TestLocalSplitStreams(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local(`echo out; echo err 1>&2`, map[string]any{optCapture: true})
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if len(result.Stdout) != 1 || result.Stdout[0] != "out" {
		t.Fatalf("Stdout = %v, want [out]", result.Stdout)
	}
	if len(result.Stderr) != 1 || result.Stderr[0] != "err" {
		t.Fatalf("Stderr = %v, want [err]", result.Stderr)
	}
}

// TestLocalUncapturedQuietDiscardsOutput is the §8 boundary case: with
// capture=false (the default) and quiet=true, both streams are
// redirected to /dev/null and the result carries no output at all.
func TestLocalUncapturedQuietDiscardsOutput(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local("echo hello", map[string]any{optQuiet: true})
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if result.Stdout != nil || result.Stderr != nil {
		t.Fatalf("Stdout/Stderr = %v/%v, want nil/nil with capture=false, quiet=true", result.Stdout, result.Stderr)
	}
	if !result.Succeeded {
		t.Fatalf("result.Succeeded = false, want true")
	}
}

// TestLocalUncapturedInheritsParentStreams exercises capture=false,
// quiet=false: the child's streams are inherited directly rather than
// piped and buffered, so the result still carries no captured lines.
func TestLocalUncapturedInheritsParentStreams(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local("echo hello")
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if result.Stdout != nil || result.Stderr != nil {
		t.Fatalf("Stdout/Stderr = %v/%v, want nil/nil with capture defaulting to false", result.Stdout, result.Stderr)
	}
}

func TestLocalErrorsOnNonZeroExitByDefault(t *testing.T) {
	skipIfNoBash(t)
	_, err := Local("exit 1")
	var failure *CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Local should return *CommandFailure on non-zero exit, got %v", err)
	}
	want := `local() encountered an error (return code 1) while executing '/bin/bash -l -c "exit 1"'`
	if failure.Message != want {
		t.Fatalf("failure.Message = %q, want %q", failure.Message, want)
	}
}

func TestLocalDoesNotAbortWhenWarnOnly(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local("exit 1", map[string]any{optWarnOnly: true})
	if err != nil {
		t.Fatalf("Local with warn_only=true returned error: %v", err)
	}
	if !result.Failed || result.ReturnCode != 1 {
		t.Fatalf("result = %+v, want Failed with ReturnCode 1", result)
	}
}

func TestLocalAbortExceptionPrefixesMessage(t *testing.T) {
	skipIfNoBash(t)
	_, err := Local("exit 1", map[string]any{optAbortException: "DeployFailure"})
	var failure *CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Local should return *CommandFailure on non-zero exit, got %v", err)
	}
	want := `DeployFailure: local() encountered an error (return code 1) while executing '/bin/bash -l -c "exit 1"'`
	if failure.Message != want {
		t.Fatalf("failure.Message = %q, want %q", failure.Message, want)
	}
}

func TestLocalInteractiveReturnsExitCode(t *testing.T) {
	skipIfNoBash(t)
	result, err := Local("exit 3", map[string]any{optInteractive: true, optWarnOnly: true})
	if err != nil {
		t.Fatalf("Local interactive returned error: %v", err)
	}
	if result.ReturnCode != 3 {
		t.Fatalf("ReturnCode = %d, want 3", result.ReturnCode)
	}
}

func TestLocalHonorsCwdFromScope(t *testing.T) {
	skipIfNoBash(t)
	dir := t.TempDir()
	err := Lcd(dir, func(env *Env) error {
		result, localErr := Local("pwd", map[string]any{optCapture: true})
		if localErr != nil {
			return localErr
		}
		if len(result.Stdout) != 1 {
			t.Fatalf("Stdout = %v, want one line", result.Stdout)
		}
		want, evalErr := filepath.EvalSymlinks(dir)
		if evalErr != nil {
			t.Fatalf("resolving %s: %v", dir, evalErr)
		}
		if result.Stdout[0] != want {
			t.Fatalf("pwd = %q, want %q", result.Stdout[0], want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Lcd returned error: %v", err)
	}
}

// TestLocalArgvWithoutShellAvoidsReinjection exercises the no-shell argv
// path (use_shell=false): an argument containing a space must reach the
// child process as a single argv element, not be re-split by a shell.
func TestLocalArgvWithoutShellAvoidsReinjection(t *testing.T) {
	dir := t.TempDir()
	target := dir + "/a dir with spaces"
	if err := exec.Command("mkdir", "-p", target).Run(); err != nil {
		t.Skipf("mkdir not available: %v", err)
	}

	result, err := Local([]string{"test", "-d", target}, map[string]any{optUseShell: false, optCapture: true})
	if err != nil {
		t.Fatalf("Local returned error: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("result.Succeeded = false, want true (argv preserved the space-containing argument)")
	}
}

func TestLocalArgvRunsWithUseShellFalse(t *testing.T) {
	_, err := Local([]string{"echo", "hi"}, map[string]any{optUseShell: false, optUseSudo: false})
	if err != nil {
		t.Fatalf("Local returned unexpected error: %v", err)
	}
}

func TestLocalRejectsNonArgvWhenShellDisabled(t *testing.T) {
	_, err := Local("echo hi", map[string]any{optUseShell: false})
	var usageErr *UsageError
	if !errors.As(err, &usageErr) {
		t.Fatalf("Local with use_shell=false and a string command should fail with *UsageError, got %v", err)
	}
}
