package trace

import (
	"log"
	"sync"

	"github.com/sarchlab/tracemark/capture"
	"github.com/sarchlab/tracemark/idgen"
	"github.com/sarchlab/tracemark/timeline"
	"github.com/sarchlab/tracemark/wrap"
)

// A Session is everything the host runtime needs for one invocation: a
// timeline, a captured-record store, a manual Recorder, and a wrap Engine,
// all wired together. Sessions hold no process-global state; the host
// creates one per invocation and closes it when the invocation ends.
//
// Configure a session with the With* setters before first use. The
// components are built lazily on first access.
type Session struct {
	timeline       timeline.Timeline
	store          *capture.Store
	filter         capture.Filter
	ids            idgen.Generator
	logger         *log.Logger
	timeTeller     timeline.TimeTeller
	summarizer     wrap.Summarizer
	autoMeasure    bool
	captureEnabled bool

	once     sync.Once
	recorder *Recorder
	engine   *wrap.Engine
}

// NewSession creates a session with the default configuration: a fresh
// in-memory timeline, capturing enabled, and auto-measuring enabled.
func NewSession() *Session {
	return &Session{
		logger:         log.Default(),
		autoMeasure:    true,
		captureEnabled: true,
	}
}

// WithTimeline sets the host-provided timeline. By default the session
// builds its own in-memory List.
func (s *Session) WithTimeline(tl timeline.Timeline) *Session {
	s.timeline = tl
	return s
}

// WithStore sets the captured-record store.
func (s *Session) WithStore(store *capture.Store) *Session {
	s.store = store
	return s
}

// WithFilter sets the filter applied to each captured record.
func (s *Session) WithFilter(f capture.Filter) *Session {
	s.filter = f
	return s
}

// WithCapture controls whether Wrap instruments targets at all. With
// capturing disabled, Wrap is a refused no-op and only the manual API
// records anything.
func (s *Session) WithCapture(enabled bool) *Session {
	s.captureEnabled = enabled
	return s
}

// WithAutoMeasure controls automatic measures for both the manual API and
// wrapped calls.
func (s *Session) WithAutoMeasure(enabled bool) *Session {
	s.autoMeasure = enabled
	return s
}

// WithIDGenerator sets the correlation ID generator.
func (s *Session) WithIDGenerator(g idgen.Generator) *Session {
	s.ids = g
	return s
}

// WithLogger sets the logger for the whole session.
func (s *Session) WithLogger(logger *log.Logger) *Session {
	s.logger = logger
	return s
}

// WithTimeTeller sets the clock used by the session-built timeline. It has
// no effect when a host timeline is supplied.
func (s *Session) WithTimeTeller(tt timeline.TimeTeller) *Session {
	s.timeTeller = tt
	return s
}

// WithSummarizer sets the request/response summarizer for wrapped calls.
func (s *Session) WithSummarizer(sum wrap.Summarizer) *Session {
	s.summarizer = sum
	return s
}

func (s *Session) init() {
	s.once.Do(func() {
		if s.timeline == nil {
			s.timeline = timeline.NewList(s.timeTeller)
		}

		if s.store == nil {
			s.store = capture.NewStore()
		}
		s.store.WithLogger(s.logger)
		if s.filter != nil {
			s.store.WithFilter(s.filter)
		}

		if s.ids == nil {
			s.ids = idgen.New()
		}

		s.recorder = NewRecorder(s.timeline).
			WithLogger(s.logger).
			WithAutoMeasure(s.autoMeasure)

		s.engine = wrap.NewEngine(s.timeline, s.store).
			WithIDGenerator(s.ids).
			WithLogger(s.logger).
			WithAutoMeasure(s.autoMeasure)
		if s.summarizer != nil {
			s.engine.WithSummarizer(s.summarizer)
		}
	})
}

// Timeline returns the session's timeline.
func (s *Session) Timeline() timeline.Timeline {
	s.init()
	return s.timeline
}

// Store returns the session's captured-record store.
func (s *Session) Store() *capture.Store {
	s.init()
	return s.store
}

// Recorder returns the manual mark/measure surface.
func (s *Session) Recorder() *Recorder {
	s.init()
	return s.recorder
}

// Engine returns the session's wrap engine.
func (s *Session) Engine() *wrap.Engine {
	s.init()
	return s.engine
}

// Start is a shorthand for Recorder().Start.
func (s *Session) Start(name string) {
	s.Recorder().Start(name)
}

// End is a shorthand for Recorder().End.
func (s *Session) End(name string) {
	s.Recorder().End(name)
}

// Measure is a shorthand for Recorder().Measure.
func (s *Session) Measure(name, startName, endName string) error {
	return s.Recorder().Measure(name, startName, endName)
}

// Wrap instruments the named methods of the target, honoring the session's
// capture switch. It returns false, wrapping nothing, when capturing is
// disabled or when the engine refuses the configuration.
func (s *Session) Wrap(target wrap.Wrappable, methods ...string) bool {
	s.init()

	if !s.captureEnabled {
		return false
	}

	return s.engine.Wrap(target, methods...)
}

// Close unwraps every wrapped method, restoring original behavior. The
// populated timeline and store remain available for the host to serialize.
// Closing twice is safe.
func (s *Session) Close() {
	s.init()
	s.engine.Unwrap()
}
