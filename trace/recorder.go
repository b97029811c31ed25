// Package trace provides the user-facing mark/measure API and the
// per-invocation session that bundles a timeline, a record store, and the
// wrap engine.
package trace

import (
	"log"
	"sync"

	"github.com/sarchlab/tracemark/timeline"
)

// A Recorder is the manual instrumentation surface. Users bracket their own
// code blocks with Start and End and derive intervals with Measure. Misuse
// is reported through the logger and ignored; it never fails the caller.
type Recorder struct {
	timeline    timeline.Timeline
	logger      *log.Logger
	autoMeasure bool

	mu   sync.Mutex
	open map[string]bool
}

// NewRecorder creates a Recorder writing to the given timeline.
// Auto-measuring is on by default.
func NewRecorder(tl timeline.Timeline) *Recorder {
	if tl == nil {
		panic("timeline must not be nil")
	}

	return &Recorder{
		timeline:    tl,
		logger:      log.Default(),
		autoMeasure: true,
		open:        make(map[string]bool),
	}
}

// WithLogger sets the logger that receives usage-error reports.
func (r *Recorder) WithLogger(logger *log.Logger) *Recorder {
	r.logger = logger
	return r
}

// WithAutoMeasure controls whether End appends a measure over the closed
// pair automatically.
func (r *Recorder) WithAutoMeasure(enabled bool) *Recorder {
	r.autoMeasure = enabled
	return r
}

// Start records a start:<name> mark. Starting a name that is already open is
// a usage error: it is reported and the duplicate call is ignored.
func (r *Recorder) Start(name string) {
	r.mu.Lock()

	if r.open[name] {
		r.mu.Unlock()
		r.logger.Printf("trace: start(%q) while the mark is already open, ignored",
			name)
		return
	}

	r.open[name] = true
	r.mu.Unlock()

	r.timeline.Mark(timeline.StartMarkName(name))
}

// End records an end:<name> mark for an open start. Ending a name that is
// not open is a usage error: it is reported and no mark is written.
func (r *Recorder) End(name string) {
	r.mu.Lock()

	if !r.open[name] {
		r.mu.Unlock()
		r.logger.Printf("trace: end(%q) without a matching start, ignored", name)
		return
	}

	delete(r.open, name)
	r.mu.Unlock()

	r.timeline.Mark(timeline.EndMarkName(name))

	if r.autoMeasure {
		err := r.timeline.Measure(
			name,
			timeline.StartMarkName(name),
			timeline.EndMarkName(name),
		)
		if err != nil {
			r.logger.Printf("trace: auto-measure of %q failed: %v", name, err)
		}
	}
}

// Measure appends a measure named name over the marks start:<startName> and
// end:<endName>. If either mark is missing, the failure is reported, nothing
// is appended, and the error is returned.
func (r *Recorder) Measure(name, startName, endName string) error {
	err := r.timeline.Measure(
		name,
		timeline.StartMarkName(startName),
		timeline.EndMarkName(endName),
	)
	if err != nil {
		r.logger.Printf("trace: measure(%q, %q, %q) failed: %v",
			name, startName, endName, err)
		return err
	}

	return nil
}
