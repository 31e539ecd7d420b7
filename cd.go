// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Hide runs fn with quiet set, so its commands don't echo to the
// terminal. Syntactic sugar for Settings(map[string]any{"quiet": true},
// fn) (spec §6) — it does not also discard captured output.
func Hide(fn func(env *Env) error) error {
	return Settings(map[string]any{optQuiet: true}, func(env *Env) error {
		return fn(env)
	})
}

// Lcd changes the process's actual working directory to dir for the
// duration of fn, restoring the previous directory as a scope cleanup
// (spec §6) — unlike Rcd, this is a real os.Chdir, not a scope key
// consumed by ShapeCommand, so every local child process started inside
// fn inherits dir.
func Lcd(dir string, fn func(env *Env) error) error {
	return Settings(nil, func(env *Env) error {
		prev, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := os.Chdir(dir); err != nil {
			return err
		}
		AddCleanup(func() {
			os.Chdir(prev) //nolint:errcheck // best-effort restoration; error non-critical
		})
		return fn(env)
	})
}

// Rcd is scoped settings(remote_working_dir=dir): every Remote call
// inside fn changes into dir before running its command (spec §6).
func Rcd(dir string, fn func(env *Env) error) error {
	return Settings(map[string]any{optRemoteWorkingDir: dir}, func(env *Env) error {
		return fn(env)
	})
}

// Prompt asks the user for a line of input on the controlling terminal,
// returning PromptedError instead of blocking when the active scope has
// abort_on_prompts set and stdin isn't an interactive terminal.
func Prompt(message string) (string, error) {
	env := CurrentEnv()
	abortOnPrompts := env.GetBool(optAbortOnPrompts)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if abortOnPrompts && !interactive {
		return "", newPromptedError(message)
	}

	fmt.Fprint(os.Stdout, message)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
