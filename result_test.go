// SPDX-License-Identifier: MPL-2.0

package threadbare

import "testing"

func TestNewResultSucceededAndFailed(t *testing.T) {
	ok := newResult("echo hi", 0)
	if !ok.Succeeded || ok.Failed {
		t.Fatalf("code 0 result = %+v, want Succeeded", ok)
	}

	bad := newResult("exit 1", 1)
	if ok.Failed == false && bad.Failed == false {
		t.Fatal("code 1 result should be Failed")
	}
	if bad.Succeeded {
		t.Fatalf("code 1 result = %+v, want not Succeeded", bad)
	}
}

func TestCombinedOutputWhenSeparate(t *testing.T) {
	r := &Result{Stdout: []string{"a", "b"}, Stderr: []string{"c"}}
	got := r.CombinedOutput()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("CombinedOutput = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CombinedOutput = %v, want %v", got, want)
		}
	}
}

func TestCombinedOutputWhenAlreadyCombined(t *testing.T) {
	r := &Result{Stdout: []string{"a", "b"}}
	got := r.CombinedOutput()
	if len(got) != 2 {
		t.Fatalf("CombinedOutput = %v, want [a b]", got)
	}
}
