// Package wrap implements the method wrapper engine. It replaces selected
// methods of a target object with instrumented versions that mint a
// correlation ID, emit a start mark, delegate to the original, and emit a
// matching end mark when the call's completion signal fires, whichever of
// the three completion styles the call uses.
package wrap

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownMethod is returned when a dispatch table is asked to call a
// method it does not know.
var ErrUnknownMethod = errors.New("unknown method")

// A Method is the callable unit the engine wraps. Arguments and results are
// untyped because the engine must not know the target library's API
// contract in advance.
type Method func(args ...interface{}) (interface{}, error)

// A Callback is the trailing-callback completion contract. When the last
// argument of a call is a Callback, the call signals completion by invoking
// it with the outcome, not through its return value.
type Callback func(err error, result interface{})

// Wrappable is an object whose named methods can be replaced at run time.
// Client libraries expose their command-dispatch entry points through this
// interface to become instrumentable.
type Wrappable interface {
	// Name returns the integration label, e.g. "kvstore".
	Name() string

	// Method returns the current implementation of the named method.
	Method(name string) (Method, bool)

	// SetMethod replaces the implementation of the named method.
	SetMethod(name string, m Method)

	// MethodNames lists all method names, in registration order.
	MethodNames() []string
}

// A Table is a reusable dispatch-table implementation of Wrappable. Client
// libraries embed one and register their methods into it. A Table is safe
// for concurrent use.
type Table struct {
	name string

	mu      sync.RWMutex
	methods map[string]Method
	order   []string
}

// NewTable creates an empty dispatch table with the given integration name.
func NewTable(name string) *Table {
	if name == "" {
		panic("table name must not be empty")
	}

	return &Table{
		name:    name,
		methods: make(map[string]Method),
	}
}

// Name returns the integration label.
func (t *Table) Name() string {
	return t.name
}

// Register adds a method to the table. Registering the same name twice is a
// programmer error.
func (t *Table) Register(name string, m Method) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.methods[name]; ok {
		panic(fmt.Sprintf("method %s is already registered", name))
	}

	t.methods[name] = m
	t.order = append(t.order, name)
}

// Method returns the current implementation of the named method.
func (t *Table) Method(name string) (Method, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.methods[name]

	return m, ok
}

// SetMethod replaces the implementation of the named method. The method must
// have been registered before.
func (t *Table) SetMethod(name string, m Method) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.methods[name]; !ok {
		panic(fmt.Sprintf("method %s is not registered", name))
	}

	t.methods[name] = m
}

// MethodNames lists all registered method names in registration order.
func (t *Table) MethodNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, len(t.order))
	copy(names, t.order)

	return names
}

// Call dispatches to the current implementation of the named method. This is
// the entry point callers of the client library go through, so a wrapped
// implementation takes effect immediately for all callers.
func (t *Table) Call(name string, args ...interface{}) (interface{}, error) {
	m, ok := t.Method(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}

	return m(args...)
}
