package timeline

import "time"

// EntryKind distinguishes the two kinds of timeline entries.
type EntryKind int

const (
	// KindMark is a single named, timestamped point.
	KindMark EntryKind = iota

	// KindMeasure is a named interval derived from a start/end mark pair.
	KindMeasure
)

// An Entry is one element of a timeline. Marks only carry a name and a
// timestamp. Measures additionally reference the two marks they were derived
// from and carry the computed duration.
type Entry struct {
	Kind      EntryKind     `json:"kind"`
	Name      string        `json:"name"`
	Time      time.Time     `json:"time"`
	StartMark string        `json:"start_mark,omitempty"`
	EndMark   string        `json:"end_mark,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// StartMarkName returns the mark name that represents the start of the
// interval named name.
func StartMarkName(name string) string {
	return "start:" + name
}

// EndMarkName returns the mark name that represents the end of the interval
// named name.
func EndMarkName(name string) string {
	return "end:" + name
}
