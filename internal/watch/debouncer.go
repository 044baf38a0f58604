package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer turns a burst of layer file events into one re-export. GIS
// tools save a GeoJSON layer in several writes (or a write plus a rename),
// so the export starts only once the file has been quiet for the interval,
// and it is told which file changed last. Exports never overlap: one that
// becomes due while the previous export is still writing its CSV waits.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	runMu    sync.Mutex
	timer    *time.Timer
	callback func(path string)
	lastPath string
}

// NewDebouncer creates a debouncer that calls export with the last changed
// path after interval without further events.
func NewDebouncer(interval time.Duration, export func(path string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: export,
	}
}

// Trigger records a change to path and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastPath = path

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("re-export panicked", slog.Any("error", r))
			}
		}()

		d.runMu.Lock()
		defer d.runMu.Unlock()

		d.mu.Lock()
		p := d.lastPath
		d.mu.Unlock()
		d.callback(p)
	})
}

// Stop drops a pending re-export. A running export is not interrupted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
