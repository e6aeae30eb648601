package progress

import (
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter renders one aggregate bar across all entities to
// stderr, so stdout stays free for machine-readable Result output.
//
// Grounded on rolldone-data-splitter/internal/database/migration.go's
// spinner setup (isatty check before attaching a live renderer) and
// original_source/guidewire/batch.py's tqdm progress bar, including the
// threshold below which no bar is shown.
type TerminalReporter struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewTerminalReporter builds a reporter that renders a bar only when
// stderr is a real terminal and at least MinEntitiesForBar entities are
// started, so piped/CI output isn't polluted with carriage-return spam.
// Without a bar it still writes one "<table>: failed" line to stderr
// for each entity that finishes with errors.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{}
}

func (t *TerminalReporter) Start(total int) {
	if !isatty.IsTerminal(os.Stderr.Fd()) || total < MinEntitiesForBar {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("cloning entities"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (t *TerminalReporter) Advance(table string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar == nil {
		return
	}
	_ = t.bar.Add(n)
}

func (t *TerminalReporter) Finish(table string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar == nil {
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: failed\n", table)
		}
		return
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "\n%s: failed\n", table)
	}
}
