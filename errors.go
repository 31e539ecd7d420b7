// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"fmt"
	"os"
)

// UsageError reports that a caller supplied invalid arguments to one of
// the package's public entry points (a malformed scope write, a
// mismatched param_key/param_values pair, and so on).
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// CommandFailure reports that a shaped command ran and exited non-zero,
// or was killed by a signal. Result carries the full command result so
// callers can inspect return code and captured output.
type CommandFailure struct {
	Result  *Result
	Message string
}

func (e *CommandFailure) Error() string {
	return e.Message
}

// NetworkError wraps an authentication, connection, or transport error
// encountered while establishing or using an SSH session. It is kept
// distinct from CommandFailure so callers can retry on it specifically.
type NetworkError struct {
	Wrapped error
}

func (e *NetworkError) Error() string {
	prefix := networkErrorPrefix(e.Wrapped)
	if prefix == "" {
		return e.Wrapped.Error()
	}
	return prefix + e.Wrapped.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Wrapped
}

// PromptedError reports that a worker requested interactive input while
// prompts were disabled for the current scope (abort_on_prompts=true).
type PromptedError struct {
	Message string
}

func (e *PromptedError) Error() string {
	return e.Message
}

func newPromptedError(msg string) error {
	return &PromptedError{Message: fmt.Sprintf("prompted with: %s", msg)}
}

// resolveAbort implements the Local/Remote error policy (spec §7) once
// a result's return code is known. label is "local" or "remote",
// matching the default message's call-site prefix; display is the
// shaped command text.
//
// warn_only short-circuits entirely: the result is returned unchanged,
// with no error and no logging. Otherwise, if display_aborts is set and
// the call isn't quiet, the failure message is logged at error level.
// abort_exception then governs what's returned: absent, the default
// CommandFailure with the standard message; present and non-nil (a
// custom string), the same CommandFailure with that string prepended as
// Go's narrowed stand-in for the original's "named exception kind" (Go
// has no equivalent to raising an arbitrary exception type, so the
// custom value becomes a message prefix instead — see DESIGN.md);
// present and explicitly nil, the process terminates immediately with
// exit code 1, exactly as the original does for a null abort_exception.
func resolveAbort(opts map[string]any, result *Result, label, display string) error {
	if !result.Failed {
		return nil
	}
	if optBool(opts, optWarnOnly, false) {
		return nil
	}

	message := fmt.Sprintf(
		"%s() encountered an error (return code %d) while executing '%s'",
		label, result.ReturnCode, display,
	)

	if optBool(opts, optDisplayAborts, true) && !optBool(opts, optQuiet, false) {
		logger.Error(message)
	}

	if abortVal, present := opts[optAbortException]; present {
		if abortVal == nil {
			os.Exit(1)
		}
		if prefix, ok := abortVal.(string); ok && prefix != "" {
			message = prefix + ": " + message
		}
	}

	return &CommandFailure{Result: result, Message: message}
}
