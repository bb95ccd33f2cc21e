package eventlog

import (
	"encoding/json"
	"strings"
	"time"

	taskdasherrors "github.com/taskdash/taskdash/internal/errors"
)

// rawEvent is the wire shape of one JSONL line, spec §6. Unknown keys are
// ignored by encoding/json's default decoding (no DisallowUnknownFields).
type rawEvent struct {
	EventType    string `json:"event_type"`
	Timestamp    string `json:"timestamp"`
	AgentID      string `json:"agent_id"`
	TaskID       string `json:"task_id"`
	ToolName     string `json:"tool_name"`
	ErrorMessage string `json:"error_message"`
	SessionID    string `json:"session_id"`
}

var kindByName = map[string]Kind{
	"agent_start": KindAgentStart,
	"agent_end":   KindAgentEnd,
	"tool_start":  KindToolStart,
	"tool_end":    KindToolEnd,
	"error":       KindError,
}

// ParseLine parses one line of the event log into an Event (spec §4.2, C2).
// A line that isn't valid JSON, or has no "event_type" string, is reported
// as a *errors.ParseError and must be dropped and counted by the caller
// (spec: "Unparseable lines are dropped and counted in a malformed_lines
// metric; they never halt ingestion"). offset is the byte offset the line
// began at in its source file, recorded on the returned Event for the
// state store's ordering tie-break (spec §3 invariant 7).
func ParseLine(line []byte, offset int64) (Event, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return Event{}, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindMalformedEvent, "empty line", int(offset), int(offset)+len(line))
	}

	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindMalformedEvent, "invalid JSON: "+err.Error(), int(offset), int(offset)+len(line))
	}
	if raw.EventType == "" {
		return Event{}, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindMalformedEvent, "missing event_type", int(offset), int(offset)+len(line))
	}

	ev := Event{
		AgentID:      raw.AgentID,
		TaskID:       raw.TaskID,
		ToolName:     raw.ToolName,
		ErrorMessage: raw.ErrorMessage,
		SessionID:    raw.SessionID,
		SourceOffset: offset,
	}

	if kind, ok := kindByName[strings.ToLower(raw.EventType)]; ok {
		ev.Kind = kind
	} else {
		ev.Kind = KindOther
		ev.OtherName = raw.EventType
	}

	if raw.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
			ev.Timestamp = ts.UTC()
			ev.HasTimestamp = true
		}
		// An unparseable timestamp is not itself fatal to the line (spec
		// §4.2): HasTimestamp stays false and the event sorts last for its
		// offset (spec §3 invariant 7), handled by dashboard.Store.
	}

	return ev, nil
}
