// Package eventlog parses the append-only JSONL event stream written by the
// hook process (spec §4.2, C2) and tails it across restarts with bounded
// memory (spec §4.4, C4).
//
// Event is a single flat struct tagged by its Kind field: one Kind constant
// per variant, with the fields that a variant does not use left empty.
// dashboard.Store.ApplyEvent dispatches with a switch on Event.Kind; the
// compiler does not check that switch for exhaustiveness.
package eventlog

import "time"

// Kind identifies which of the five event variants an Event carries.
type Kind string

// Event kinds, spec §3/§6.
const (
	KindAgentStart Kind = "AgentStart"
	KindAgentEnd   Kind = "AgentEnd"
	KindToolStart  Kind = "ToolStart"
	KindToolEnd    Kind = "ToolEnd"
	KindError      Kind = "Error"
	// KindOther is the fallback for a recognized-but-unknown event_type
	// value (spec §4.2: "preserved as Event::Other(name) and counted but
	// not surfaced in aggregates").
	KindOther Kind = "Other"
)

// Event is a single parsed line from an event-stream file.
//
// Timestamp is the zero time.Time (IsZero() == true) when the source line's
// timestamp field was absent or unparseable (spec §4.2: "yield an event
// with timestamp = None, which is sorted after all timestamped events for
// the same file offset").
type Event struct {
	Kind         Kind
	Timestamp    time.Time
	HasTimestamp bool
	AgentID      string
	TaskID       string
	ToolName     string
	ErrorMessage string
	SessionID    string

	// OtherName holds the raw event_type string when Kind == KindOther.
	OtherName string

	// SourceOffset is the byte offset in the source file this event's line
	// began at, used by the state store to break (timestamp, offset) ties
	// per spec §3 invariant 7.
	SourceOffset int64
}
