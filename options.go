// SPDX-License-Identifier: MPL-2.0

package threadbare

import "time"

// Recognized configuration keys (spec's enumerated contract, §3/§6). Every
// component reads its defaults from these, patched by a call's own
// overrides.
const (
	optUser             = "user"
	optHostString       = "host_string"
	optPort             = "port"
	optKeyFilename      = "key_filename"
	optUseShell         = "use_shell"
	optUseSudo          = "use_sudo"
	optCombineStderr    = "combine_stderr"
	optQuiet            = "quiet"
	optDiscardOutput    = "discard_output"
	optWarnOnly         = "warn_only"
	optAbortException   = "abort_exception"
	optAbortOnPrompts   = "abort_on_prompts"
	optDisplayAborts    = "display_aborts"
	optDisplayRunning   = "display_running"
	optDisplayPrefix    = "display_prefix"
	optLineTemplate     = "line_template"
	optRemoteWorkingDir = "remote_working_dir"
	optTimeout          = "timeout"
	optTransferProtocol = "transfer_protocol"
	optSSHClient        = "ssh_client"
	optCapture          = "capture"
	optPoolSize         = "pool_size"
	optInteractive      = "interactive"
)

// mergeOptions builds the effective option set for one Local/Remote call:
// the current Config Scope's mapping, patched by the call's own
// overrides. It never mutates the active scope — a single call's
// keyword-style overrides are scoped to that call only, same as the
// original's `local(command, **kwargs)` pattern of merging kwargs over
// state.ENV without writing them back.
func mergeOptions(overrides map[string]any) map[string]any {
	merged := CurrentEnv().Map()
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func optBool(opts map[string]any, key string, def bool) bool {
	v, ok := opts[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func optString(opts map[string]any, key, def string) string {
	v, ok := opts[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func optDuration(opts map[string]any, key string, def time.Duration) time.Duration {
	v, ok := opts[key]
	if !ok {
		return def
	}
	switch d := v.(type) {
	case time.Duration:
		return d
	case int:
		return time.Duration(d) * time.Second
	case float64:
		return time.Duration(d * float64(time.Second))
	default:
		return def
	}
}

func optInt(opts map[string]any, key string, def int) int {
	v, ok := opts[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}
