package dashboard

import (
	"testing"
	"time"

	"github.com/taskdash/taskdash/internal/eventlog"
)

func newTestPlan() *PlanFile {
	t1 := &Task{ID: "T1", Name: "task one", Status: StatusPending, PhaseID: "p0"}
	t2 := &Task{ID: "T2", Name: "task two", Status: StatusInProgress, PhaseID: "p0"}
	return &PlanFile{
		Phases: []*Phase{
			{ID: "p0", Name: "Phase", Tasks: []*Task{t1, t2}},
		},
	}
}

func TestApplyPlanRecomputesMetrics(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())

	snap := s.Snapshot()
	if snap.Metrics.TotalTasks != 2 || snap.Metrics.Pending != 1 || snap.Metrics.InProgress != 1 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}
	if snap.Metrics.OverallProgress != 0 {
		t.Fatalf("overall progress = %v, want 0 (no completed tasks)", snap.Metrics.OverallProgress)
	}
}

func TestApplyEventAgentStartSetsRunningAndAssignsTask(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())

	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindAgentStart, AgentID: "a1", TaskID: "T1"})

	snap := s.Snapshot()
	if len(snap.Agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(snap.Agents))
	}
	agent := snap.Agents[0]
	if agent.State != AgentRunning || agent.CurrentTaskID != "T1" {
		t.Fatalf("agent = %+v", agent)
	}
	if snap.Plan.TaskByID("T1").Agent != "a1" {
		t.Fatalf("task agent overlay not applied: %+v", snap.Plan.TaskByID("T1"))
	}
}

func TestApplyEventToolStartAfterAgentEndResumesRunning(t *testing.T) {
	// Spec §3 invariant 5: Running iff the most recent event is AgentStart or
	// ToolStart with no matching End, even if a prior AgentEnd set Idle.
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindAgentStart, AgentID: "a1", TaskID: "T1", Timestamp: base, HasTimestamp: true})
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindAgentEnd, AgentID: "a1", Timestamp: base.Add(time.Second), HasTimestamp: true})
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindToolStart, AgentID: "a1", ToolName: "Bash", Timestamp: base.Add(2 * time.Second), HasTimestamp: true})

	snap := s.Snapshot()
	if snap.Agents[0].State != AgentRunning {
		t.Fatalf("expected Running after a fresh ToolStart, got %v", snap.Agents[0].State)
	}
}

func TestApplyEventErrorPersistsAcrossReparse(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())

	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindError, AgentID: "a1", TaskID: "T1", ErrorMessage: "boom"})

	if got := s.Snapshot().Plan.TaskByID("T1").ErrorExcerpt; got != "boom" {
		t.Fatalf("error excerpt = %q", got)
	}

	// Re-parsing the plan (e.g. after the user edits TASKS.md) must not lose
	// the event-derived error excerpt (spec §4.5 merge rule).
	s.ApplyPlan(newTestPlan())
	if got := s.Snapshot().Plan.TaskByID("T1").ErrorExcerpt; got != "boom" {
		t.Fatalf("error excerpt lost after re-parse: %q", got)
	}
}

func TestApplyEventMonotonicityDiscardsStaleEvent(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindToolStart, AgentID: "a1", ToolName: "Bash", Timestamp: base.Add(time.Second), HasTimestamp: true, SourceOffset: 100})
	// An older event (earlier timestamp) arrives after a newer one: must be discarded.
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindToolStart, AgentID: "a1", ToolName: "Grep", Timestamp: base, HasTimestamp: true, SourceOffset: 50})

	if got := s.Snapshot().Agents[0].CurrentTool; got != "Bash" {
		t.Fatalf("stale event was applied: current tool = %q", got)
	}
}

func TestApplyEventMissingTimestampSortsLast(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindToolStart, AgentID: "a1", ToolName: "Bash", Timestamp: base, HasTimestamp: true, SourceOffset: 10})
	// Missing timestamp sorts after every timestamped event at the same offset.
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindToolStart, AgentID: "a1", ToolName: "Grep", HasTimestamp: false, SourceOffset: 10})

	if got := s.Snapshot().Agents[0].CurrentTool; got != "Grep" {
		t.Fatalf("current tool = %q, want the no-timestamp event to win", got)
	}
}

func TestApplyPlanClearsDanglingAgentTaskRef(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())
	s.ApplyEvent(eventlog.Event{Kind: eventlog.KindAgentStart, AgentID: "a1", TaskID: "T1"})

	// Re-parse a plan that no longer has T1.
	s.ApplyPlan(&PlanFile{Phases: []*Phase{{ID: "p0", Name: "Phase", Tasks: []*Task{
		{ID: "T2", Name: "task two", Status: StatusPending, PhaseID: "p0"},
	}}}})

	if got := s.Snapshot().Agents[0].CurrentTaskID; got != "" {
		t.Fatalf("expected dangling task ref cleared, got %q", got)
	}
}

func TestApplyPlanCarriesCollapsedHintByPhaseID(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.ApplyPlan(newTestPlan())
	s.SetCollapsed("p0", true)

	s.ApplyPlan(newTestPlan())
	if !s.Snapshot().Plan.Phases[0].Collapsed {
		t.Fatalf("expected collapsed hint carried across re-parse")
	}
}

func TestSessionMarkerSurfacedVerbatim(t *testing.T) {
	s := NewStore(time.Unix(0, 0))
	s.SetSessionMarker("abc-123")
	if got := s.Snapshot().SessionMarker; got != "abc-123" {
		t.Fatalf("session marker = %q", got)
	}
}
