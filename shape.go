// SPDX-License-Identifier: MPL-2.0

package threadbare

import "strings"

// SingleCommand joins an argv into a single space-separated string, used
// wherever a command must be rendered as one token before shaping.
func SingleCommand(command []string) string {
	return strings.Join(command, " ")
}

// shellEscape escapes the characters that would otherwise break out of
// the double-quoted string ShellWrap builds: double quotes, dollar
// signs, and backticks. This mirrors the original's _shell_escape
// exactly — it is deliberately narrow, not a general shell-quoting
// routine.
func shellEscape(s string) string {
	r := strings.NewReplacer(
		`"`, `\"`,
		`$`, `\$`,
		"`", "\\`",
	)
	return r.Replace(s)
}

// ShellWrap wraps command so it runs inside a login bash shell. The
// resulting string is part of the package's external wire contract:
// `/bin/bash -l -c "<escaped command>"`.
func ShellWrap(command string) string {
	return `/bin/bash -l -c "` + shellEscape(command) + `"`
}

// SudoWrap prefixes command so it runs under sudo non-interactively.
// Part of the package's external wire contract:
// `sudo --non-interactive <command>`.
func SudoWrap(command string) string {
	return "sudo --non-interactive " + command
}

// CwdWrap prefixes command with a directory change, when dir is
// non-empty. Part of the package's external wire contract:
// `cd "<dir>" && <command>`.
func CwdWrap(command, dir string) string {
	if dir == "" {
		return command
	}
	return `cd "` + dir + `" && ` + command
}

// shapeOptions carries the knobs ShapeCommand reads from the active
// Config Scope: whether to wrap in a login shell, run under sudo, and
// which directory (if any) to change into first.
type shapeOptions struct {
	Shell   bool
	Sudo    bool
	Cwd     string
	SudoCwd string
}

// ShapeCommand applies cwd-wrap, then shell-wrap, then sudo-wrap, in
// that fixed order (spec §4.2 invariant 1). Shell-wrapping is skipped
// when opts.Shell is false, in which case command is expected to
// already be directly executable.
func ShapeCommand(command string, opts shapeOptions) string {
	dir := opts.Cwd
	if opts.Sudo && opts.SudoCwd != "" {
		dir = opts.SudoCwd
	}
	out := CwdWrap(command, dir)
	if opts.Shell {
		out = ShellWrap(out)
	}
	if opts.Sudo {
		out = SudoWrap(out)
	}
	return out
}

// JoinCommands concatenates a list of already-shaped commands with " && "
// so they fail fast as a unit. An empty list yields ("", false); a
// non-empty list yields (joined, true).
func JoinCommands(commands []string) (string, bool) {
	if len(commands) == 0 {
		return "", false
	}
	return strings.Join(commands, " && "), true
}
