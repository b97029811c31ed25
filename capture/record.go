// Package capture stores per-call metadata records and runs the user filter
// that decides whether each record is kept, transformed, or dropped.
package capture

// A Record holds the metadata captured for one intercepted call. It is
// created when the call starts, with Request populated, and completed with
// Response or Error once the call's completion signal fires.
type Record struct {
	// ID is the correlation ID that binds this record to the call's start
	// and end marks.
	ID string `json:"id"`

	// Name is the integration-specific label of the wrapped method, e.g.
	// "kvstore-Get-<id>".
	Name string `json:"name"`

	// Request summarizes the call arguments.
	Request interface{} `json:"request"`

	// Response summarizes a successful outcome. Nil until completion.
	Response interface{} `json:"response,omitempty"`

	// Error summarizes a failed outcome. Empty until completion.
	Error string `json:"error,omitempty"`
}

// A Filter decides the fate of a finalized record. It may return the record
// unchanged, return a modified record that replaces the stored one, or
// return nil to discard the record entirely. A panicking filter counts as
// returning nil.
type Filter func(r *Record) *Record
