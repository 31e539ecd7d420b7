// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Task names a registered WorkerFunc and whether it should be dispatched
// across a pool of OS processes or run serially in-process.
type Task struct {
	name       string
	wantsPool  bool
}

// SerialTask selects name to run once per param value (or pool_size
// times with no param), in-process, one after another.
func SerialTask(name string) Task {
	return Task{name: name, wantsPool: false}
}

// ParallelTask selects name to run once per param value (or pool_size
// times with no param) across a pool of re-exec'd OS processes, so a
// stalled or crashed worker can't take the others down with it.
func ParallelTask(name string) Task {
	return Task{name: name, wantsPool: true}
}

// WorkerResult is one slot's outcome: the process--N name it ran under,
// its returned value (nil on failure), the error it failed with (if
// any), and — for Parallel — whether it had to be killed.
type WorkerResult struct {
	Name       string
	Result     any
	Err        error
	Killed     bool
	KillSignal int
}

// executeConfig collects Execute's options. raiseUnhandledErrors
// defaults to true: Go's zero value for bool is false, which would
// silently swallow worker errors, the opposite of the original's
// default.
type executeConfig struct {
	raiseUnhandledErrors bool
	poolSize             int
}

// ExecuteOption customizes one Execute call.
type ExecuteOption func(*executeConfig)

// WithoutRaisingErrors makes Execute return worker errors inside each
// WorkerResult instead of also returning them as the call's own error.
func WithoutRaisingErrors() ExecuteOption {
	return func(c *executeConfig) { c.raiseUnhandledErrors = false }
}

// WithPoolSize caps how many parallel worker processes run at once. It
// has no effect on a SerialTask. Zero (the default) runs every param
// value's worker concurrently.
func WithPoolSize(n int) ExecuteOption {
	return func(c *executeConfig) { c.poolSize = n }
}

// ExecuteParams supplies the param_key/param_values pair that
// parameterizes a dispatch: one call to task's worker per value, with
// env[ParamKey] set to that value for the duration of the call. Leave
// both fields zero to run the worker pool_size times with no per-call
// override.
type ExecuteParams struct {
	ParamKey    string
	ParamValues []any
}

// Execute dispatches task, either serially or across a process pool,
// once per entry in params.ParamValues (or PoolSize times, if params is
// nil or empty), and returns one WorkerResult per dispatch in the same
// order the param values were given. Supplying exactly one of
// ParamKey/ParamValues is a UsageError (spec §4.5 invariant 2).
func Execute(task Task, params *ExecuteParams, opts ...ExecuteOption) ([]WorkerResult, error) {
	cfg := executeConfig{raiseUnhandledErrors: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	paramKey := ""
	var paramValues []any
	if params != nil {
		paramKey = params.ParamKey
		paramValues = params.ParamValues
	}
	if (paramKey == "") != (len(paramValues) == 0) {
		return nil, &UsageError{Message: "param_key and param_values must both be set, or neither"}
	}

	fn, ok := lookupWorker(task.name)
	if !ok {
		return nil, &UsageError{Message: fmt.Sprintf("no worker registered with name %q", task.name)}
	}

	n := len(paramValues)
	if n == 0 {
		n = optInt(CurrentEnv().Map(), optPoolSize, 1)
	}

	if task.wantsPool {
		return parallelExecution(task.name, paramKey, paramValues, n, cfg)
	}
	return serialExecution(fn, paramKey, paramValues, n, cfg.raiseUnhandledErrors)
}

// HostResult is ExecuteWithHosts's per-host outcome, naming the host the
// generic process--N slot name would otherwise hide.
type HostResult struct {
	Host   string
	Result WorkerResult
}

// ExecuteWithHosts is Execute specialized to the common case of running
// task once per host, with env["host_string"] set to each in turn.
func ExecuteWithHosts(task Task, hosts []string, opts ...ExecuteOption) ([]HostResult, error) {
	values := make([]any, len(hosts))
	for i, h := range hosts {
		values[i] = h
	}
	results, err := Execute(task, &ExecuteParams{ParamKey: optHostString, ParamValues: values}, opts...)
	out := make([]HostResult, len(results))
	for i, r := range results {
		host := ""
		if i < len(hosts) {
			host = hosts[i]
		}
		out[i] = HostResult{Host: host, Result: r}
	}
	return out, err
}

func serialExecution(fn WorkerFunc, paramKey string, paramValues []any, n int, raiseUnhandledErrors bool) ([]WorkerResult, error) {
	results := make([]WorkerResult, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("process--%d", i+1)
		overrides := map[string]any{}
		var param any
		if paramKey != "" {
			param = paramValues[i]
			overrides[paramKey] = param
		}

		var res WorkerResult
		settingsErr := Settings(overrides, func(env *Env) error {
			r, workErr := fn(env, param)
			res = WorkerResult{Name: name, Result: r, Err: workErr}
			return workErr
		})
		results = append(results, res)
		if settingsErr != nil && raiseUnhandledErrors {
			return results, settingsErr
		}
	}
	return results, nil
}

// serializableEnv strips entries from env that cannot round-trip through
// JSON before it is handed to a re-exec'd worker process: a scope-held
// SSH session cache (keyed by a struct, valued by *ssh.Client) is the
// only such entry threadbare itself ever places in the active scope. A
// worker process dials its own connections instead of inheriting the
// parent's.
func serializableEnv(env map[string]any) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		if k == optSSHClient {
			continue
		}
		out[k] = v
	}
	return out
}

func parallelExecution(workerName, paramKey string, paramValues []any, n int, cfg executeConfig) ([]WorkerResult, error) {
	poolSize := cfg.poolSize
	if poolSize <= 0 || poolSize > n {
		poolSize = n
	}

	results := make([]WorkerResult, n)
	errs := make([]error, n)
	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup

	env := serializableEnv(CurrentEnv().Map())

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("process--%d", i+1)
		var param any
		if paramKey != "" {
			param = paramValues[i]
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string, param any) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := runParallelTask(workerName, name, env, paramKey, param)
			results[i] = res
			errs[i] = err
		}(i, name, param)
	}
	wg.Wait()

	if cfg.raiseUnhandledErrors {
		for _, err := range errs {
			if err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// runParallelTask spawns one worker process, waits for it to finish,
// checks it is actually gone, and decodes its reported outcome.
func runParallelTask(workerName, processName string, env map[string]any, paramKey string, param any) (WorkerResult, error) {
	callEnv := make(map[string]any, len(env)+3)
	for k, v := range env {
		callEnv[k] = v
	}
	callEnv["parallel"] = true
	callEnv[optAbortOnPrompts] = true
	if paramKey != "" {
		callEnv[paramKey] = param
	}

	sw, err := spawnWorker(workerName, processName, callEnv, param)
	if err != nil {
		return WorkerResult{Name: processName, Err: err}, err
	}
	defer os.Remove(sw.snapshotPath) //nolint:errcheck // best-effort cleanup; error non-critical

	data, _ := io.ReadAll(sw.resultR)
	sw.resultR.Close() //nolint:errcheck // best-effort cleanup; error non-critical

	waitErr := sw.cmd.Wait()
	status := processStatus(sw.cmd, processName)

	if status.Pid != 0 && stillAlive(status.Pid) {
		logger.Warnf("process is still alive despite worker having completed. terminating process: %s", processName)
		killProcess(sw.cmd)
		status.Alive = true
	}

	result := WorkerResult{
		Name:       processName,
		Killed:     status.Killed,
		KillSignal: status.KillSignal,
	}

	var outcome workerOutcome
	if len(data) > 0 {
		if jsonErr := json.Unmarshal(data, &outcome); jsonErr != nil {
			result.Err = jsonErr
			return result, jsonErr
		}
	}
	result.Result = outcome.Result

	if outcome.Error != "" {
		result.Err = fmt.Errorf("%s", outcome.Error)
		return result, result.Err
	}
	if waitErr != nil && !status.Killed {
		result.Err = waitErr
		return result, waitErr
	}
	return result, nil
}
