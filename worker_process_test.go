// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"encoding/json"
	"testing"
)

func TestRegisterWorkerAndLookup(t *testing.T) {
	RegisterWorker("worker-process-lookup-test", func(env *Env, param any) (any, error) {
		return "ok", nil
	})
	fn, ok := lookupWorker("worker-process-lookup-test")
	if !ok {
		t.Fatal("lookupWorker did not find a just-registered worker")
	}
	result, err := fn(CurrentEnv(), nil)
	if err != nil || result != "ok" {
		t.Fatalf("fn() = (%v, %v), want (ok, nil)", result, err)
	}
}

func TestLookupWorkerMissing(t *testing.T) {
	if _, ok := lookupWorker("never-registered"); ok {
		t.Fatal("lookupWorker should report false for an unregistered name")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := snapshot{
		Env:   map[string]any{"user": "deploy", "port": float64(22)},
		Param: "host-a",
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Param != "host-a" {
		t.Fatalf("decoded.Param = %v, want host-a", decoded.Param)
	}
	if decoded.Env["user"] != "deploy" {
		t.Fatalf("decoded.Env[user] = %v, want deploy", decoded.Env["user"])
	}
}

func TestWorkerOutcomeRoundTrip(t *testing.T) {
	outcome := workerOutcome{Result: map[string]any{"ok": true}}
	data, err := json.Marshal(outcome)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded workerOutcome
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Error != "" {
		t.Fatalf("decoded.Error = %q, want empty", decoded.Error)
	}
}
