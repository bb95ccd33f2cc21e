// Package dashboard holds the unified, in-memory dashboard model (spec §3)
// and the single-writer Store that reconciles the task plan with the agent
// event stream (spec §4.5, C5).
package dashboard

import "time"

// Status is the lifecycle state of a Task.
type Status string

// Task statuses, spec §3/§4.1.
const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusBlocked    Status = "Blocked"
)

// ShortTag returns the canonical short-form tag literal for the status, used
// by the plan writer (C6) when splicing a new status into the plan text.
func (s Status) ShortTag() string {
	switch s {
	case StatusCompleted:
		return "[x]"
	case StatusInProgress:
		return "[/]"
	case StatusFailed:
		return "[!]"
	case StatusBlocked:
		return "[B]"
	default:
		return "[ ]"
	}
}

// StatusTagRange is a byte range [Start, End) in PlanFile.RawText spanning a
// status tag literal (the opening '[' through the closing ']'), captured by
// the plan parser (C1) so the plan writer (C6) can splice a replacement
// without disturbing any other byte.
type StatusTagRange struct {
	Start int
	End   int
}

// Task is one task heading and its body, spec §3.
type Task struct {
	ID           string
	Name         string
	Status       Status
	Agent        string // optional; "" if unset
	BlockedBy    []string
	BodyText     string
	ErrorExcerpt string

	StatusTag StatusTagRange

	// PhaseID is the id of the owning Phase, used to recompute phase
	// aggregates after a plan re-parse without walking the whole tree.
	PhaseID string
}

// Phase is an ordered group of tasks under one heading, spec §3.
type Phase struct {
	ID        string
	Name      string
	Tasks     []*Task
	Collapsed bool // UI hint, carried across re-parses by id

	Progress float64
	Status   Status
}

// PlanFile is the parsed representation of the task plan, spec §3.
type PlanFile struct {
	Path    string
	RawText []byte
	Phases  []*Phase

	// Warnings accumulated while parsing RawText (spec §4.1); never fatal.
	Warnings []error
}

// TaskByID returns the task with the given id, or nil if absent.
func (p *PlanFile) TaskByID(id string) *Task {
	if p == nil {
		return nil
	}
	for _, ph := range p.Phases {
		for _, t := range ph.Tasks {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// TotalTasks returns the number of tasks across all phases.
func (p *PlanFile) TotalTasks() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Tasks)
	}
	return n
}

// AgentState is the runtime activity state of an agent, spec §3 invariant 5.
type AgentState string

const (
	AgentIdle    AgentState = "Idle"
	AgentRunning AgentState = "Running"
)

// ToolInvocation is one entry in an AgentRuntime's recent-tools ring,
// spec §3 invariant 6.
type ToolInvocation struct {
	Tool string
	At   time.Time
}

// AgentRuntime is the derived state for one agent_id ever seen in the event
// stream, spec §3.
type AgentRuntime struct {
	AgentID       string
	State         AgentState
	CurrentTaskID string // "" if unset
	CurrentTool   string // "" if unset
	RecentTools   *ToolRing
	ToolCounts    map[string]int
	LastError     string
	SessionID     string
	FirstSeen     time.Time
	LastSeen      time.Time

	// lastApplied is the (timestamp, source_offset) stamp of the most
	// recent event applied to this agent, used to enforce the monotonicity
	// invariant (spec §3 invariant 7) across out-of-order arrivals.
	lastApplied eventStamp
}

type eventStamp struct {
	timestamp time.Time
	hasStamp  bool
	offset    int64
}

// newAgentRuntime returns a zero-value AgentRuntime ready for its first event.
func newAgentRuntime(agentID string) *AgentRuntime {
	return &AgentRuntime{
		AgentID:     agentID,
		State:       AgentIdle,
		RecentTools: NewToolRing(10),
		ToolCounts:  make(map[string]int),
	}
}

// SessionMetrics are the derived, plan-wide aggregates, spec §3.
type SessionMetrics struct {
	StartedAt       time.Time
	TotalTasks      int
	Completed       int
	InProgress      int
	Failed          int
	Blocked         int
	Pending         int
	OverallProgress float64
}

// Uptime returns now - StartedAt.
func (m SessionMetrics) Uptime(now time.Time) time.Duration {
	return now.Sub(m.StartedAt)
}
