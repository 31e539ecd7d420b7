// SPDX-License-Identifier: MPL-2.0

package threadbare

import (
	"os"

	"github.com/charmbracelet/log"
)

// logger is the package-wide structured logger. It backs display_aborts,
// the line_template warning, and the Parallel Runner's stall-detection
// warning; display_running lines are printed to stdout, not logged.
// Tests substitute their own writer via SetLogger to capture log lines,
// mirroring the Python suite's use of pytest's caplog fixture.
var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "threadbare",
})

// SetLogger replaces the package-wide logger. Intended for tests and for
// callers that want threadbare's diagnostics folded into their own
// structured log stream.
func SetLogger(l *log.Logger) {
	if l == nil {
		return
	}
	logger = l
}
