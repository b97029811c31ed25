// Package analysis aggregates measures from a live timeline into summary
// statistics, for a quick view of where an invocation spent its time.
package analysis

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sarchlab/tracemark/hooking"
	"github.com/sarchlab/tracemark/timeline"
)

// An EntryFilter selects the measures a MeasureStats aggregates. If this
// function returns true, the measure is considered interesting.
type EntryFilter func(e timeline.Entry) bool

// PrefixFilter selects measures whose name starts with prefix. Wrapped-call
// measures are named <integration>-<method>-<correlation id>, so the prefix
// "kvstore-Get" selects one method of one integration.
func PrefixFilter(prefix string) EntryFilter {
	return func(e timeline.Entry) bool {
		return strings.HasPrefix(e.Name, prefix)
	}
}

// A Group holds the aggregate of all selected measures sharing a group key.
type Group struct {
	Key     string
	Count   uint64
	Total   time.Duration
	Average time.Duration
}

// MeasureStats is a hook that aggregates measures as they are appended to a
// timeline. Measures are grouped by their name with the trailing correlation
// ID stripped, so all calls to the same wrapped method land in one group.
type MeasureStats struct {
	filter EntryFilter

	lock   sync.Mutex
	groups map[string]*Group
}

// NewMeasureStats creates a MeasureStats. A nil filter aggregates every
// measure.
func NewMeasureStats(filter EntryFilter) *MeasureStats {
	return &MeasureStats{
		filter: filter,
		groups: make(map[string]*Group),
	}
}

// Observe registers the stats collector as a hook on a hookable timeline.
func (s *MeasureStats) Observe(h hooking.Hookable) *MeasureStats {
	h.AcceptHook(s)
	return s
}

// Func aggregates one appended measure.
func (s *MeasureStats) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timeline.HookPosEntryAdded {
		return
	}

	entry, ok := ctx.Item.(timeline.Entry)
	if !ok || entry.Kind != timeline.KindMeasure {
		return
	}

	if s.filter != nil && !s.filter(entry) {
		return
	}

	key := groupKey(entry.Name)

	s.lock.Lock()
	defer s.lock.Unlock()

	group, ok := s.groups[key]
	if !ok {
		group = &Group{Key: key}
		s.groups[key] = group
	}

	group.Count++
	group.Total += entry.Duration
	group.Average = group.Total / time.Duration(group.Count)
}

// Groups returns all aggregates, sorted by descending total time.
func (s *MeasureStats) Groups() []Group {
	s.lock.Lock()
	defer s.lock.Unlock()

	groups := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, *g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Total > groups[j].Total
	})

	return groups
}

// TotalTime returns the summed duration of the group with the given key.
func (s *MeasureStats) TotalTime(key string) time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()

	group, ok := s.groups[key]
	if !ok {
		return 0
	}

	return group.Total
}

// groupKey strips the trailing correlation ID from a wrapped-call measure
// name of the form <integration>-<method>-<id>. Manual measure names, even
// ones containing hyphens, are their own group.
func groupKey(name string) string {
	last := strings.LastIndex(name, "-")
	if last < 0 || strings.Index(name, "-") == last {
		return name
	}

	if !isCorrelationID(name[last+1:]) {
		return name
	}

	return name[:last]
}

// isCorrelationID matches the output of the ID generators: either a decimal
// counter or a 20-character xid string.
func isCorrelationID(s string) bool {
	if s == "" {
		return false
	}

	digitsOnly := true
	for _, r := range s {
		if r < '0' || r > '9' {
			digitsOnly = false
		}
		if (r < '0' || r > '9') && (r < 'a' || r > 'v') {
			return false
		}
	}

	return digitsOnly || len(s) == 20
}
