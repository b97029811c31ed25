package capture

import (
	"log"
	"sync"

	"github.com/sarchlab/tracemark/hooking"
)

// Hook positions that a Store triggers while processing records.
var (
	// HookPosRecordFinal is triggered after a record passes the filter and
	// is kept in the store.
	HookPosRecordFinal = &hooking.HookPos{Name: "HookPosRecordFinal"}

	// HookPosRecordDropped is triggered after the filter discards a record.
	HookPosRecordDropped = &hooking.HookPos{Name: "HookPosRecordDropped"}
)

// A Store maps correlation IDs to captured records for one invocation. It is
// hookable, so observers such as recorders see every finalized record. A
// Store is safe for concurrent use.
type Store struct {
	hooking.HookableBase

	mu      sync.Mutex
	records map[string]*Record
	order   []string
	filter  Filter
	logger  *log.Logger
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		logger:  log.Default(),
	}
}

// WithFilter sets the filter applied to each record at finalization.
func (s *Store) WithFilter(f Filter) *Store {
	s.filter = f
	return s
}

// WithLogger sets the logger used to report filter failures.
func (s *Store) WithLogger(logger *log.Logger) *Store {
	s.logger = logger
	return s
}

// Put inserts the record for a call that just started. Records are keyed by
// correlation ID, so overlapping calls never collide.
func (s *Store) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}

	stored := r
	s.records[r.ID] = &stored
}

// Get returns a copy of the record with the given correlation ID.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}

	return *r, true
}

// Finalize completes the record with the call's outcome and runs the filter
// exactly once, now that both the request and the response halves are known.
// A filter that returns nil, or that panics, discards the record. Filter
// panics are reported as warnings and never propagate to the caller. The
// filter runs on a copy of the record, outside the store's lock, so it may
// read back into the store.
func (s *Store) Finalize(id string, response interface{}, callErr error) {
	s.mu.Lock()

	r, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	if callErr != nil {
		r.Error = callErr.Error()
	} else {
		r.Response = response
	}

	working := *r
	s.mu.Unlock()

	filtered, filterErr := s.runFilter(&working)

	if filtered == nil {
		s.mu.Lock()
		s.deleteLocked(id)
		s.mu.Unlock()

		if filterErr != nil {
			s.logger.Printf("warning: record filter failed for %s: %v",
				working.Name, filterErr)
		}

		s.InvokeHook(hooking.HookCtx{
			Pos:  HookPosRecordDropped,
			Item: working,
		})

		return
	}

	s.mu.Lock()
	if _, stillThere := s.records[id]; stillThere {
		stored := *filtered
		s.records[id] = &stored
	}
	s.mu.Unlock()

	s.InvokeHook(hooking.HookCtx{
		Pos:  HookPosRecordFinal,
		Item: *filtered,
	})
}

func (s *Store) runFilter(r *Record) (filtered *Record, err error) {
	if s.filter == nil {
		return r, nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			filtered = nil
			err = recoveredError(recovered)
		}
	}()

	return s.filter(r), nil
}

// Delete removes the record with the given correlation ID. It is a no-op if
// no such record exists.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) {
	if _, ok := s.records[id]; !ok {
		return
	}

	delete(s.records, id)

	for i, storedID := range s.order {
		if storedID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// All returns copies of all records in insertion order.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, *s.records[id])
	}

	return all
}

// Len returns the number of records currently stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}
