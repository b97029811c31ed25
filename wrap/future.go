package wrap

import "sync"

// Thenable is the continuation-registration contract of a deferred return
// value. A call that returns a Thenable signals completion by settling it,
// not through the returned value itself.
type Thenable interface {
	// Then registers a pair of continuations. Exactly one of the two fires,
	// exactly once, when the value settles. Registering after settlement
	// fires the matching continuation immediately.
	Then(onResolve func(result interface{}), onReject func(err error))
}

// A Future is the deferred completion value client libraries return for
// asynchronous calls. It settles at most once. A Future is safe for
// concurrent use.
type Future struct {
	mu        sync.Mutex
	settled   bool
	result    interface{}
	err       error
	onResolve []func(interface{})
	onReject  []func(error)
	done      chan struct{}
}

// NewFuture creates an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future successfully and fires all registered resolve
// continuations. Settling an already-settled future is a no-op.
func (f *Future) Resolve(result interface{}) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}

	f.settled = true
	f.result = result
	continuations := f.onResolve
	f.onResolve = nil
	f.onReject = nil
	f.mu.Unlock()

	for _, c := range continuations {
		c(result)
	}

	// The done channel closes only after all continuations ran, so anyone
	// waiting on it observes the fully recorded outcome.
	close(f.done)
}

// Reject settles the future with an error and fires all registered reject
// continuations. Settling an already-settled future is a no-op.
func (f *Future) Reject(err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}

	f.settled = true
	f.err = err
	continuations := f.onReject
	f.onResolve = nil
	f.onReject = nil
	f.mu.Unlock()

	for _, c := range continuations {
		c(err)
	}

	close(f.done)
}

// Then registers a pair of continuations. Either may be nil.
func (f *Future) Then(
	onResolve func(result interface{}),
	onReject func(err error),
) {
	f.mu.Lock()

	if !f.settled {
		if onResolve != nil {
			f.onResolve = append(f.onResolve, onResolve)
		}
		if onReject != nil {
			f.onReject = append(f.onReject, onReject)
		}
		f.mu.Unlock()
		return
	}

	err := f.err
	result := f.result
	f.mu.Unlock()

	if err != nil {
		if onReject != nil {
			onReject(err)
		}
		return
	}

	if onResolve != nil {
		onResolve(result)
	}
}

// Done returns a channel that is closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future settles and returns its outcome.
func (f *Future) Result() (interface{}, error) {
	<-f.done

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.result, f.err
}
