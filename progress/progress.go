// Package progress defines the Pipeline Orchestrator's progress
// callback surface and a default terminal renderer, per spec §4.E's
// "delegated to an injected callback with methods start(total),
// advance(table, n), finish(table, ok)".
package progress

// MinEntitiesForBar is the supplemented threshold below which the
// default Reporter skips rendering a bar entirely (a handful of
// entities finish before a bar would ever repaint), following
// original_source/guidewire/batch.py's tqdm usage, which only wraps
// the entity loop when there is more than a trivial number of folders
// to walk.
const MinEntitiesForBar = 50

// Reporter is the callback surface the Orchestrator drives. Table is
// always the entity's table_name; n in Advance is the number of
// batches just committed for that table.
type Reporter interface {
	Start(total int)
	Advance(table string, n int)
	Finish(table string, ok bool)
}

// NopReporter discards all callbacks, for progress_ui=false runs and
// tests.
type NopReporter struct{}

func (NopReporter) Start(int)           {}
func (NopReporter) Advance(string, int) {}
func (NopReporter) Finish(string, bool) {}
