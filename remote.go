// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// defaultLineTemplate renders a streamed line exactly as received, with
// no host/pipe/timestamp annotation.
const defaultLineTemplate = "{line}"

// Remote shapes and runs command over a cached SSH session, streaming
// output line by line as it arrives rather than buffering the whole
// run. use_pty is derived from combine_stderr (spec §4.4 invariant 2):
// a PTY merges the remote stderr into stdout at the kernel level, so
// requesting combined capture implies a PTY and vice versa.
func Remote(command any, overrides ...map[string]any) (*Result, error) {
	return remote(command, false, overrides)
}

// RemoteSudo is Remote with sudo-wrapping forced on.
func RemoteSudo(command any, overrides ...map[string]any) (*Result, error) {
	return remote(command, true, overrides)
}

func remote(command any, forceSudo bool, overrides []map[string]any) (*Result, error) {
	opts := mergeOptions(mergeAll(overrides))

	raw, _ := commandString(command)
	combine := optBool(opts, optCombineStderr, false)
	usePty := combine
	cwd := optString(opts, optRemoteWorkingDir, "")
	host := optString(opts, optHostString, "")

	shaped := ShapeCommand(raw, shapeOptions{
		Shell:   optBool(opts, optUseShell, true),
		Sudo:    forceSudo || optBool(opts, optUseSudo, false),
		Cwd:     cwd,
		SudoCwd: cwd,
	})

	key := sessionKey{
		user:    optString(opts, optUser, ""),
		host:    host,
		key:     optString(opts, optKeyFilename, ""),
		port:    optInt(opts, optPort, 22),
		timeout: optDuration(opts, optTimeout, 30*time.Second),
	}
	if key.host == "" {
		return nil, &UsageError{Message: "remote() requires a host_string"}
	}

	quiet := optBool(opts, optQuiet, false)
	discard := optBool(opts, optDiscardOutput, false)
	template := optString(opts, optLineTemplate, defaultLineTemplate)
	displayPrefix := optBool(opts, optDisplayPrefix, true)

	if optBool(opts, optDisplayRunning, false) && !quiet {
		fmt.Println(formatLineWith(template, host, "run", shaped, displayPrefix))
	}

	client, owned, err := acquireSession(key)
	if err != nil {
		return nil, err
	}
	if owned {
		defer client.Close() //nolint:errcheck // best-effort cleanup; error non-critical
	}

	session, err := client.NewSession()
	if err != nil {
		if !owned {
			evictSession(key)
		}
		return nil, &NetworkError{Wrapped: err}
	}
	defer session.Close() //nolint:errcheck // best-effort cleanup; error non-critical

	if usePty {
		if ptyErr := session.RequestPty("xterm", 80, 40, ssh.TerminalModes{}); ptyErr != nil {
			return nil, &NetworkError{Wrapped: ptyErr}
		}
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, &NetworkError{Wrapped: err}
	}
	var stderr io.Reader
	if !usePty {
		stderr, err = session.StderrPipe()
		if err != nil {
			return nil, &NetworkError{Wrapped: err}
		}
	}

	var stdoutLines, stderrLines []string
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		stdoutLines = streamLines(stdout, host, "out", quiet, discard, template, displayPrefix)
	}()
	if !usePty {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stderrLines = streamLines(stderr, host, "err", quiet, discard, template, displayPrefix)
		}()
	}

	runErr := session.Run(shaped)
	wg.Wait()

	code := 0
	if runErr != nil {
		var exitErr *ssh.ExitError
		if asSSHExitError(runErr, &exitErr) {
			code = exitErr.ExitStatus()
		} else {
			return nil, &NetworkError{Wrapped: runErr}
		}
	}

	result := newResult(shaped, code)
	result.Stdout = stdoutLines
	if !usePty {
		result.Stderr = stderrLines
	}

	if abortErr := resolveAbort(opts, result, "remote", shaped); abortErr != nil {
		return result, abortErr
	}
	return result, nil
}

func asSSHExitError(err error, target **ssh.ExitError) bool {
	e, ok := err.(*ssh.ExitError)
	if !ok {
		return false
	}
	*target = e
	return true
}

// streamLines reads r line by line as it is produced, formatting each
// complete line through template (when not quiet) as soon as it arrives,
// before the command's output has finished — the "lazy" streaming the
// original achieves via a generator over the paramiko/pssh channel.
func streamLines(r io.Reader, host, pipe string, quiet, discard bool, template string, displayPrefix bool) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !quiet {
			fmt.Println(formatLineWith(template, host, pipe, line, displayPrefix))
		}
		if !discard {
			lines = append(lines, line)
		}
	}
	return lines
}

var warnedMissingLinePlaceholder sync.Once

// formatLine renders line through template with no display_prefix
// trimming, for callers (the Local Executor) that treat display_prefix
// as always on.
func formatLine(template, host, pipe, line string) string {
	return formatLineWith(template, host, pipe, line, true)
}

// formatLineWith substitutes template's placeholders — {host}, {pipe},
// {line}, {year}, {month}, {day}, {hour}, {minute}, {second}, {ms} —
// against the current time and the given host/pipe/line (spec §4.4.3).
// When displayPrefix is false, the template is trimmed to start at the
// first occurrence of {line}, dropping everything before it (the
// timestamp/host/pipe prefix); if template has no {line} placeholder at
// all, a one-time warning is logged and the raw line is returned
// unformatted.
func formatLineWith(template, host, pipe, line string, displayPrefix bool) string {
	if template == "" {
		template = defaultLineTemplate
	}

	if !strings.Contains(template, "{line}") {
		warnedMissingLinePlaceholder.Do(func() {
			logger.Warn("line_template has no {line} placeholder; falling back to the raw line")
		})
		return line
	}

	if !displayPrefix {
		template = template[strings.Index(template, "{line}"):]
	}

	now := time.Now()
	replacer := strings.NewReplacer(
		"{host}", host,
		"{pipe}", pipe,
		"{line}", line,
		"{year}", strconv.Itoa(now.Year()),
		"{month}", pad2(int(now.Month())),
		"{day}", pad2(now.Day()),
		"{hour}", pad2(now.Hour()),
		"{minute}", pad2(now.Minute()),
		"{second}", pad2(now.Second()),
		"{ms}", strconv.Itoa(now.Nanosecond()/1_000_000),
	)
	return replacer.Replace(template)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// RemoteFileExists reports whether path exists on the remote host, by
// shelling out to `test -e`. It never aborts on a non-zero return code,
// since "doesn't exist" is an expected outcome, not a failure.
func RemoteFileExists(path string, overrides ...map[string]any) (bool, error) {
	warnOnly := mergeAll(overrides)
	if warnOnly == nil {
		warnOnly = map[string]any{}
	}
	warnOnly[optWarnOnly] = true
	result, err := remote("test -e "+ShellEscapeArg(path), false, []map[string]any{warnOnly})
	if err != nil {
		return false, err
	}
	return result.Succeeded, nil
}

// ShellEscapeArg wraps a single argument in double quotes, escaping the
// characters shellEscape already knows about, for callers building a
// shell fragment rather than a whole command line.
func ShellEscapeArg(arg string) string {
	return `"` + shellEscape(arg) + `"`
}
