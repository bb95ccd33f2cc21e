package eventlog

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		offset  int64
		wantErr bool
		want    Event
	}{
		{
			name:   "agent start with timestamp",
			line:   `{"event_type":"agent_start","agent_id":"a1","task_id":"T1","timestamp":"2026-01-02T03:04:05Z"}`,
			offset: 10,
			want: Event{
				Kind: KindAgentStart, AgentID: "a1", TaskID: "T1",
				Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), HasTimestamp: true,
				SourceOffset: 10,
			},
		},
		{
			name:   "tool start",
			line:   `{"event_type":"tool_start","agent_id":"a1","tool_name":"Bash"}`,
			offset: 0,
			want:   Event{Kind: KindToolStart, AgentID: "a1", ToolName: "Bash"},
		},
		{
			name:   "error event",
			line:   `{"event_type":"error","agent_id":"a1","task_id":"T1","error_message":"boom"}`,
			offset: 5,
			want:   Event{Kind: KindError, AgentID: "a1", TaskID: "T1", ErrorMessage: "boom", SourceOffset: 5},
		},
		{
			name:   "unrecognized event type becomes Other",
			line:   `{"event_type":"custom_thing","agent_id":"a1"}`,
			offset: 0,
			want:   Event{Kind: KindOther, OtherName: "custom_thing", AgentID: "a1"},
		},
		{
			name:   "unparseable timestamp keeps HasTimestamp false",
			line:   `{"event_type":"agent_end","agent_id":"a1","timestamp":"not-a-time"}`,
			offset: 0,
			want:   Event{Kind: KindAgentEnd, AgentID: "a1"},
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			line:    "{not json",
			wantErr: true,
		},
		{
			name:    "missing event_type",
			line:    `{"agent_id":"a1"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseLine([]byte(tt.line), tt.offset)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev != tt.want {
				t.Fatalf("got %+v, want %+v", ev, tt.want)
			}
		})
	}
}
