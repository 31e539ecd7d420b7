// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Local shapes and runs command on the local machine. command may be a
// string (run through a login shell, unless use_shell=false) or a
// []string argv. When use_shell=false, command must be a []string: it is
// executed directly via exec.Cmd with no shell re-interpretation, so an
// argument containing spaces or shell metacharacters is passed through
// verbatim rather than being re-split by a shell (spec §4.2/§4.3).
// overrides patch the active Config Scope for this call only.
//
// Output routing is governed by capture, combine_stderr, and quiet
// together (spec §4.3 step 3): capture=true buffers the child's streams
// into Result.Stdout/Stderr (merged when combine_stderr is set, split
// otherwise); capture=false instead either inherits the parent's own
// stdout/stderr (quiet=false) or discards both to /dev/null (quiet=true)
// — no buffering happens in either capture=false case.
func Local(command any, overrides ...map[string]any) (*Result, error) {
	opts := mergeOptions(mergeAll(overrides))

	useShell := optBool(opts, optUseShell, true)
	sudo := optBool(opts, optUseSudo, false)
	cwd := optString(opts, optRemoteWorkingDir, "")
	quiet := optBool(opts, optQuiet, false)
	discard := optBool(opts, optDiscardOutput, false)
	combine := optBool(opts, optCombineStderr, false)
	capture := optBool(opts, optCapture, false)
	timeout := optDuration(opts, optTimeout, 0)
	interactive := optBool(opts, optInteractive, false)

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if !useShell {
		argv, ok := command.([]string)
		if !ok {
			return nil, &UsageError{Message: "local() with use_shell=false requires a []string command"}
		}
		if len(argv) == 0 {
			return nil, &UsageError{Message: "local() requires a non-empty command"}
		}
		if sudo {
			argv = append([]string{"sudo", "--non-interactive"}, argv...)
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		// No shell is available to interpret `cd "<dir>" && ...`, so the
		// cwd-wrap step (spec §4.2) is applied via exec.Cmd.Dir instead.
		cmd.Dir = cwd
		return runLocalWith(cmd, SingleCommand(argv), opts, quiet, discard, combine, capture, interactive)
	}

	raw, _ := commandString(command)
	shaped := ShapeCommand(raw, shapeOptions{
		Shell:   true,
		Sudo:    sudo,
		Cwd:     cwd,
		SudoCwd: cwd,
	})

	if interactive {
		shell, err := exec.LookPath("bash")
		if err != nil {
			return nil, fmt.Errorf("interactive execution requires bash on PATH: %w", err)
		}
		return runLocalWith(exec.CommandContext(ctx, shell, "-c", shaped), shaped, opts, quiet, discard, combine, capture, true)
	}

	shell, err := exec.LookPath("bash")
	if err != nil {
		announceRunning(opts, quiet, shaped)
		// The embedded interpreter is the shell here, so it gets the
		// command without the /bin/bash wrapper.
		script := ShapeCommand(raw, shapeOptions{Sudo: sudo, Cwd: cwd, SudoCwd: cwd})
		code, stdout, stderr, runErr := runLocalEmbedded(ctx, script, quiet, discard, combine)
		return finishLocal(shaped, opts, code, stdout, stderr, runErr)
	}
	return runLocalWith(exec.CommandContext(ctx, shell, "-c", shaped), shaped, opts, quiet, discard, combine, capture, false)
}

func announceRunning(opts map[string]any, quiet bool, display string) {
	if optBool(opts, optDisplayRunning, false) && !quiet {
		template := optString(opts, optLineTemplate, defaultLineTemplate)
		host := optString(opts, optHostString, "")
		fmt.Println(formatLine(template, host, "run", display))
	}
}

func runLocalWith(cmd *exec.Cmd, display string, opts map[string]any, quiet, discard, combine, capture, interactive bool) (*Result, error) {
	announceRunning(opts, quiet, display)

	var code int
	var stdout, stderr []string
	var runErr error
	if interactive {
		code, runErr = runLocalInteractive(cmd)
	} else {
		code, stdout, stderr, runErr = runLocal(cmd, quiet, discard, combine, capture)
	}
	return finishLocal(display, opts, code, stdout, stderr, runErr)
}

func finishLocal(display string, opts map[string]any, code int, stdout, stderr []string, runErr error) (*Result, error) {
	if runErr != nil && code == -1 {
		return nil, runErr
	}
	result := newResult(display, code)
	result.Stdout = stdout
	result.Stderr = stderr

	if abortErr := resolveAbort(opts, result, "local", display); abortErr != nil {
		return result, abortErr
	}
	return result, nil
}

func mergeAll(overrides []map[string]any) map[string]any {
	if len(overrides) == 0 {
		return nil
	}
	merged := make(map[string]any)
	for _, o := range overrides {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}

// commandString renders a shell-path command to a single string.
func commandString(command any) (string, bool) {
	switch c := command.(type) {
	case string:
		return c, true
	case []string:
		return SingleCommand(c), true
	default:
		return fmt.Sprint(command), false
	}
}

// runLocal drives cmd according to the four capture/quiet/combine output
// modes (spec §4.3 step 3). Returns (-1, nil, nil, err) only for
// failures to even start the command; a non-zero exit is reported via
// the returned code, not err.
func runLocal(cmd *exec.Cmd, quiet, discard, combine, capture bool) (int, []string, []string, error) {
	if !capture {
		if quiet {
			devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
			if err != nil {
				return -1, nil, nil, err
			}
			defer devnull.Close() //nolint:errcheck // best-effort cleanup; error non-critical
			cmd.Stdout = devnull
			cmd.Stderr = devnull
		} else {
			cmd.Stdout = os.Stdout
			if combine {
				cmd.Stderr = os.Stdout
			} else {
				cmd.Stderr = os.Stderr
			}
		}
		if startErr := cmd.Start(); startErr != nil {
			return -1, nil, nil, startErr
		}
		return exitCode(cmd.Wait()), nil, nil, nil
	}

	stdoutR, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW
	var stderrW *io.PipeWriter
	var stderrR *io.PipeReader
	if combine {
		cmd.Stderr = stdoutW
	} else {
		stderrR, stderrW = io.Pipe()
		cmd.Stderr = stderrW
	}

	var stdoutLines, stderrLines []string
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		stdoutLines = collectLines(stdoutR, os.Stdout, quiet, discard)
	}()
	if !combine {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stderrLines = collectLines(stderrR, os.Stderr, quiet, discard)
		}()
	}

	startErr := cmd.Start()
	if startErr != nil {
		stdoutW.Close()
		if stderrW != nil {
			stderrW.Close()
		}
		wg.Wait()
		return -1, nil, nil, startErr
	}

	waitErr := cmd.Wait()
	stdoutW.Close()
	if stderrW != nil {
		stderrW.Close()
	}
	wg.Wait()

	code := exitCode(waitErr)
	if combine {
		return code, stdoutLines, nil, nil
	}
	return code, stdoutLines, stderrLines, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		if exitErr.ProcessState != nil {
			return exitErr.ProcessState.ExitCode()
		}
	}
	return 1
}

func asExitError(err error, target **exec.ExitError) bool {
	for err != nil {
		if e, ok := err.(*exec.ExitError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// collectLines copies r line by line to echo (when !quiet) and accumulates
// into the returned slice (when !discard), mirroring the original's
// _print_line/_process_output split of "print it" from "keep it".
func collectLines(r io.Reader, echo io.Writer, quiet, discard bool) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !quiet {
			fmt.Fprintln(echo, line)
		}
		if !discard {
			lines = append(lines, line)
		}
	}
	return lines
}

// runLocalInteractive runs cmd attached to a real pseudo-terminal
// instead of pipes, so full-screen and password-prompting programs (an
// editor, sudo, an interactive ssh session) behave as they would at a
// real terminal. Output is neither captured nor echo-gated by quiet:
// the pty's master end is copied straight to the controlling terminal,
// matching invowk's PrepareInteractive/startPty idiom.
func runLocalInteractive(cmd *exec.Cmd) (int, error) {
	master, err := pty.Start(cmd)
	if err != nil {
		return -1, err
	}
	defer master.Close() //nolint:errcheck // best-effort cleanup; error non-critical

	done := make(chan struct{})
	go func() {
		io.Copy(os.Stdout, master) //nolint:errcheck // copy loop ends when the pty closes
		close(done)
	}()
	go func() {
		io.Copy(master, os.Stdin) //nolint:errcheck // copy loop ends when the pty closes
	}()

	waitErr := cmd.Wait()
	<-done
	return exitCode(waitErr), nil
}

// runLocalEmbedded executes shaped using mvdan.cc/sh's POSIX shell
// interpreter when no real shell binary is available on the host. It
// does not honor login-shell semantics (profile sourcing); this is a
// best-effort fallback, not a bash replacement.
func runLocalEmbedded(ctx context.Context, shaped string, quiet, discard, combine bool) (int, []string, []string, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(shaped), "")
	if err != nil {
		return -1, nil, nil, err
	}

	var stdoutBuf, stderrBuf strings.Builder
	stdoutW := io.Writer(&stdoutBuf)
	stderrW := io.Writer(&stderrBuf)
	if !quiet {
		stdoutW = io.MultiWriter(&stdoutBuf, os.Stdout)
		stderrW = io.MultiWriter(&stderrBuf, os.Stderr)
	}
	if combine {
		stderrW = stdoutW
	}

	runner, err := interp.New(interp.StdIO(os.Stdin, stdoutW, stderrW))
	if err != nil {
		return -1, nil, nil, err
	}

	code := 0
	if err := runner.Run(ctx, file); err != nil {
		var status interp.ExitStatus
		if asInterpExitStatus(err, &status) {
			code = int(status)
		} else {
			code = 1
		}
	}

	stdoutLines := splitNonEmpty(stdoutBuf.String())
	var stderrLines []string
	if !combine {
		stderrLines = splitNonEmpty(stderrBuf.String())
	}
	if discard {
		stdoutLines, stderrLines = nil, nil
	}
	return code, stdoutLines, stderrLines, nil
}

func asInterpExitStatus(err error, target *interp.ExitStatus) bool {
	status, ok := err.(interp.ExitStatus)
	if !ok {
		return false
	}
	*target = status
	return true
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines
}
