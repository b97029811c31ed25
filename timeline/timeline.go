// Package timeline defines the append-only log of marks and measures that
// one invocation accumulates, together with the minimum recording interface
// the instrumentation engine requires from a host-provided timeline.
package timeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/tracemark/hooking"
)

// ErrMissingMark is returned when a measure references a mark that is not in
// the timeline.
var ErrMissingMark = errors.New("missing mark")

// HookPosEntryAdded is triggered after an entry is appended to a timeline.
var HookPosEntryAdded = &hooking.HookPos{Name: "HookPosEntryAdded"}

// A Timeline is the recording surface the instrumentation engine writes to.
// The engine never constructs its own Timeline. The host hands one in per
// invocation and takes it back, populated, when the invocation ends.
type Timeline interface {
	// Mark appends a mark with the given name, timestamped now.
	Mark(name string)

	// Measure appends a measure over the marks named startMark and endMark.
	// It returns ErrMissingMark and appends nothing if either mark is not
	// in the timeline.
	Measure(name, startMark, endMark string) error

	// Entries lists all entries appended so far, in append order.
	Entries() []Entry
}

// A List is the in-memory Timeline implementation. It is hookable, so
// observers such as recorders see every appended entry. A List is safe for
// concurrent use.
type List struct {
	hooking.HookableBase

	mu         sync.Mutex
	timeTeller TimeTeller
	entries    []Entry
}

// NewList creates an empty List that timestamps marks with the given
// TimeTeller. A nil timeTeller selects the host's monotonic clock.
func NewList(timeTeller TimeTeller) *List {
	if timeTeller == nil {
		timeTeller = NewTimeTeller()
	}

	return &List{timeTeller: timeTeller}
}

// Mark appends a mark named name, timestamped now.
func (l *List) Mark(name string) {
	l.mu.Lock()
	entry := Entry{
		Kind: KindMark,
		Name: name,
		Time: l.timeTeller.CurrentTime(),
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.InvokeHook(hooking.HookCtx{
		Pos:  HookPosEntryAdded,
		Item: entry,
	})
}

// Measure appends a measure named name whose duration spans from the mark
// named startMark to the mark named endMark. When a mark name appears more
// than once, the most recent occurrence wins.
func (l *List) Measure(name, startMark, endMark string) error {
	l.mu.Lock()

	start, ok := l.findLocked(startMark)
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMissingMark, startMark)
	}

	end, ok := l.findLocked(endMark)
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMissingMark, endMark)
	}

	entry := Entry{
		Kind:      KindMeasure,
		Name:      name,
		Time:      start.Time,
		StartMark: startMark,
		EndMark:   endMark,
		Duration:  end.Time.Sub(start.Time),
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.InvokeHook(hooking.HookCtx{
		Pos:  HookPosEntryAdded,
		Item: entry,
	})

	return nil
}

// Entries returns a copy of all entries in append order.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)

	return entries
}

// Find returns the most recent entry with the given name.
func (l *List) Find(name string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.findLocked(name)
}

func (l *List) findLocked(name string) (Entry, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Name == name {
			return l.entries[i], true
		}
	}

	return Entry{}, false
}
