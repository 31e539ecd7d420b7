// SPDX-License-Identifier: MPL-2.0

package threadbare

// Result is the outcome of running a shaped command, whether locally or
// over SSH. Stdout and Stderr are split into lines; when output is
// discarded rather than captured, both are nil.
type Result struct {
	Command    string
	ReturnCode int
	Succeeded  bool
	Failed     bool
	Stdout     []string
	Stderr     []string
}

func newResult(command string, code int) *Result {
	return &Result{
		Command:    command,
		ReturnCode: code,
		Succeeded:  code == 0,
		Failed:     code != 0,
	}
}

// CombinedOutput returns all captured lines as one slice. When Stderr is
// nil (combined-stream capture) this simply returns Stdout; when the two
// streams were captured separately it returns Stdout followed by Stderr,
// not interleaved by arrival time.
func (r *Result) CombinedOutput() []string {
	if r.Stderr == nil {
		return r.Stdout
	}
	out := make([]string, 0, len(r.Stdout)+len(r.Stderr))
	out = append(out, r.Stdout...)
	out = append(out, r.Stderr...)
	return out
}
