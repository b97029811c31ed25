package recording

import (
	"encoding/json"

	"github.com/sarchlab/tracemark/capture"
	"github.com/sarchlab/tracemark/hooking"
	"github.com/sarchlab/tracemark/timeline"
)

// Table names used by TimelineRecorder.
const (
	EntryTableName  = "entries"
	RecordTableName = "records"
)

// An EntryRow is the flat form of a timeline entry as stored in the
// recording database. Times are nanoseconds since the Unix epoch.
type EntryRow struct {
	Kind       string
	Name       string
	TimeNS     int64
	StartMark  string
	EndMark    string
	DurationNS int64
}

// A RecordRow is the flat form of a captured record as stored in the
// recording database. Request and Response summaries are JSON-encoded.
type RecordRow struct {
	ID       string
	Name     string
	Request  string
	Response string
	Error    string
}

// A TimelineRecorder is a hook that mirrors every appended timeline entry
// and every finalized captured record into a DataRecorder backend.
type TimelineRecorder struct {
	backend DataRecorder
}

// NewTimelineRecorder creates a TimelineRecorder and prepares the entry and
// record tables on the backend.
func NewTimelineRecorder(backend DataRecorder) *TimelineRecorder {
	backend.CreateTable(EntryTableName, EntryRow{})
	backend.CreateTable(RecordTableName, RecordRow{})

	return &TimelineRecorder{backend: backend}
}

// ObserveTimeline registers the recorder as a hook on a hookable timeline.
func (t *TimelineRecorder) ObserveTimeline(h hooking.Hookable) *TimelineRecorder {
	h.AcceptHook(t)
	return t
}

// ObserveStore registers the recorder as a hook on a captured-record store.
func (t *TimelineRecorder) ObserveStore(h hooking.Hookable) *TimelineRecorder {
	h.AcceptHook(t)
	return t
}

// Func mirrors the hooked item into the backend.
func (t *TimelineRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timeline.HookPosEntryAdded:
		entry, ok := ctx.Item.(timeline.Entry)
		if !ok {
			return
		}
		t.recordEntry(entry)
	case capture.HookPosRecordFinal:
		record, ok := ctx.Item.(capture.Record)
		if !ok {
			return
		}
		t.recordRecord(record)
	}
}

// Flush forces all buffered rows into the database.
func (t *TimelineRecorder) Flush() {
	t.backend.Flush()
}

func (t *TimelineRecorder) recordEntry(entry timeline.Entry) {
	kind := "mark"
	if entry.Kind == timeline.KindMeasure {
		kind = "measure"
	}

	t.backend.InsertData(EntryTableName, EntryRow{
		Kind:       kind,
		Name:       entry.Name,
		TimeNS:     entry.Time.UnixNano(),
		StartMark:  entry.StartMark,
		EndMark:    entry.EndMark,
		DurationNS: entry.Duration.Nanoseconds(),
	})
}

func (t *TimelineRecorder) recordRecord(record capture.Record) {
	t.backend.InsertData(RecordTableName, RecordRow{
		ID:       record.ID,
		Name:     record.Name,
		Request:  jsonSummary(record.Request),
		Response: jsonSummary(record.Response),
		Error:    record.Error,
	})
}

func jsonSummary(v any) string {
	if v == nil {
		return ""
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return "unencodable"
	}

	return string(encoded)
}
