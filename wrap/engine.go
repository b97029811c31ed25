package wrap

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/tracemark/capture"
	"github.com/sarchlab/tracemark/idgen"
	"github.com/sarchlab/tracemark/timeline"
)

// An Engine wraps and unwraps methods on target objects. One engine serves
// one invocation: it owns the wrap registry for that invocation and writes
// to the timeline and record store the host handed in. No state survives the
// engine itself.
type Engine struct {
	timeline    timeline.Timeline
	data        *capture.Store
	ids         idgen.Generator
	summarizer  Summarizer
	logger      *log.Logger
	autoMeasure bool

	mu        sync.Mutex
	originals map[wrapKey]Method
}

type wrapKey struct {
	target Wrappable
	method string
}

// NewEngine creates an engine that records into the given timeline and
// record store. Auto-measuring is on by default.
func NewEngine(tl timeline.Timeline, data *capture.Store) *Engine {
	return &Engine{
		timeline:    tl,
		data:        data,
		ids:         idgen.New(),
		summarizer:  NewKeySummarizer(),
		logger:      log.Default(),
		autoMeasure: true,
		originals:   make(map[wrapKey]Method),
	}
}

// WithIDGenerator sets the correlation ID generator.
func (e *Engine) WithIDGenerator(g idgen.Generator) *Engine {
	e.ids = g
	return e
}

// WithSummarizer sets the request/response summarizer.
func (e *Engine) WithSummarizer(s Summarizer) *Engine {
	e.summarizer = s
	return e
}

// WithLogger sets the logger used to report usage notices.
func (e *Engine) WithLogger(logger *log.Logger) *Engine {
	e.logger = logger
	return e
}

// WithAutoMeasure controls whether a measure is appended automatically when
// a wrapped call's end mark is recorded.
func (e *Engine) WithAutoMeasure(enabled bool) *Engine {
	e.autoMeasure = enabled
	return e
}

// Wrap installs instrumented replacements for the named methods of the
// target. An empty method list wraps every method the target exposes.
//
// Wrap validates its collaborators first. If the engine was handed no usable
// timeline or record store, Wrap returns false and mutates nothing. Methods
// the engine has already wrapped are skipped, so calling Wrap twice is safe.
// Wrap returns true when the target is left fully instrumented.
func (e *Engine) Wrap(target Wrappable, methods ...string) bool {
	if e.timeline == nil || e.data == nil {
		return false
	}

	if target == nil {
		return false
	}

	if len(methods) == 0 {
		methods = target.MethodNames()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, name := range methods {
		key := wrapKey{target: target, method: name}
		if _, alreadyWrapped := e.originals[key]; alreadyWrapped {
			continue
		}

		original, ok := target.Method(name)
		if !ok {
			e.logger.Printf("wrap: %s has no method %s, skipping",
				target.Name(), name)
			continue
		}

		e.originals[key] = original
		target.SetMethod(name, e.instrumented(target, name, original))
	}

	return true
}

// Wrapped reports whether the engine currently has the named method of the
// target wrapped. The state lives in an engine-owned side table, so it stays
// accurate even after the method value has been reassigned.
func (e *Engine) Wrapped(target Wrappable, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.originals[wrapKey{target: target, method: name}]

	return ok
}

// Unwrap restores every wrapped method to its original implementation and
// clears the registry. It is safe to call when nothing is wrapped and safe
// to call repeatedly. Unwrap does not wait for in-flight calls; a call that
// never completes simply never produces its end mark.
func (e *Engine) Unwrap() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, original := range e.originals {
		key.target.SetMethod(key.method, original)
	}

	e.originals = make(map[wrapKey]Method)
}

// instrumented builds the replacement for one method. Each invocation of the
// replacement mints its own correlation ID, so overlapping calls to the same
// method never share marks or records.
func (e *Engine) instrumented(
	target Wrappable,
	methodName string,
	original Method,
) Method {
	return func(args ...interface{}) (interface{}, error) {
		call := e.beginCall(target, methodName, args)

		if cb, rest, ok := trailingCallback(args); ok {
			return e.delegateWithCallback(call, original, rest, cb)
		}

		result, err := e.delegateGuarded(call, original, args)

		if err == nil {
			if th, ok := result.(Thenable); ok {
				th.Then(
					func(v interface{}) { call.complete(v, nil) },
					func(callErr error) { call.complete(nil, callErr) },
				)

				return result, nil
			}
		}

		call.complete(result, err)

		return result, err
	}
}

// beginCall mints the correlation ID, stores the request half of the
// captured record, and emits the start mark, in that order, before the
// original method runs.
func (e *Engine) beginCall(
	target Wrappable,
	methodName string,
	args []interface{},
) *callState {
	id := e.ids.Generate()
	label := fmt.Sprintf("%s-%s-%s", target.Name(), methodName, id)

	summarized := args
	if _, rest, ok := trailingCallback(args); ok {
		summarized = rest
	}

	e.data.Put(capture.Record{
		ID:      id,
		Name:    label,
		Request: e.summarizer.SummarizeRequest(summarized),
	})
	e.timeline.Mark(timeline.StartMarkName(label))

	return &callState{engine: e, id: id, label: label}
}

// delegateWithCallback substitutes the caller's trailing callback with one
// that completes the record and emits the end mark before invoking the
// original callback with the original arguments.
func (e *Engine) delegateWithCallback(
	call *callState,
	original Method,
	rest []interface{},
	cb Callback,
) (interface{}, error) {
	forwarded := make([]interface{}, len(rest)+1)
	copy(forwarded, rest)
	forwarded[len(rest)] = Callback(func(err error, result interface{}) {
		call.complete(result, err)
		cb(err, result)
	})

	return e.delegateGuarded(call, original, forwarded)
}

// delegateGuarded invokes the original method inside a scoped handler that
// guarantees the end mark fires before a panic propagates to the caller. The
// panic itself is re-raised unchanged.
func (e *Engine) delegateGuarded(
	call *callState,
	original Method,
	args []interface{},
) (result interface{}, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			call.complete(nil, panicError(recovered))
			panic(recovered)
		}
	}()

	return original(args...)
}

// callState carries the identity of one in-flight instrumented call. Its
// complete method is idempotent, so exactly one end mark is emitted no
// matter which completion path fires, or how often.
type callState struct {
	engine *Engine
	id     string
	label  string
	done   uint32
}

func (c *callState) complete(result interface{}, err error) {
	if !atomic.CompareAndSwapUint32(&c.done, 0, 1) {
		return
	}

	e := c.engine

	var response interface{}
	if err == nil {
		response = e.summarizer.SummarizeResponse(result)
	}

	e.data.Finalize(c.id, response, err)
	e.timeline.Mark(timeline.EndMarkName(c.label))

	if e.autoMeasure {
		measureErr := e.timeline.Measure(
			c.label,
			timeline.StartMarkName(c.label),
			timeline.EndMarkName(c.label),
		)
		if measureErr != nil {
			e.logger.Printf("wrap: auto-measure of %s failed: %v",
				c.label, measureErr)
		}
	}
}

// trailingCallback reports whether the last argument is a Callback. Callback
// presence is explicit caller intent, so it takes precedence over any
// deferred value the method might also return.
func trailingCallback(
	args []interface{},
) (cb Callback, rest []interface{}, ok bool) {
	if len(args) == 0 {
		return nil, nil, false
	}

	last := args[len(args)-1]

	switch c := last.(type) {
	case Callback:
		return c, args[:len(args)-1], true
	case func(error, interface{}):
		return Callback(c), args[:len(args)-1], true
	default:
		return nil, nil, false
	}
}

func panicError(recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return err
	}

	return fmt.Errorf("panic: %v", recovered)
}
