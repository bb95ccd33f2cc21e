package dashboard

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskdash/taskdash/internal/eventlog"
)

// Snapshot is the read-only view handed to the (out-of-scope) renderer,
// spec §6. Phases/Tasks/Agents are shared pointers rather than deep copies
// — cheap, per spec §3's ownership note — on the strength of Store being
// the plan's and the agent map's single writer and the renderer's
// contractual obligation never to mutate what it's given.
type Snapshot struct {
	// Generation is an opaque id minted fresh on every Snapshot call so a
	// renderer (or a test) can tell two snapshots apart without a deep
	// comparison, and so log lines around a reconnect/re-scan cycle can be
	// correlated back to the generation they affected.
	Generation uuid.UUID

	Plan           *PlanFile
	Agents         []*AgentRuntime // sorted by LastSeen descending, spec §6
	Metrics        SessionMetrics
	Warnings       []error
	SelectedTaskID string

	// SessionMarker is the opaque id read from the well-known session marker
	// file (spec §6), displayed verbatim and never interpreted.
	SessionMarker string
}

// Store is the single-writer arbiter of the dashboard model (spec §4.5,
// C5). All mutation goes through ApplyPlan and ApplyEvent; Snapshot is the
// only read path.
type Store struct {
	mu sync.Mutex

	plan   *PlanFile
	agents map[string]*AgentRuntime

	// errorExcerpts persists task_id -> most recent error excerpt
	// independently of the PlanFile's lifetime, since ApplyPlan replaces
	// the PlanFile wholesale on every re-parse (spec §4.5 merge rule:
	// "error_excerpt ... authoritative from events").
	errorExcerpts map[string]string

	// agentForTask mirrors, for overlay purposes, which agent currently
	// claims a given task id (spec §4.5 merge rule: "agent ... authoritative
	// from events").
	agentForTask map[string]string

	collapsed      map[string]bool // phase id -> collapsed, a UI hint
	selectedTaskID string
	sessionMarker  string
	metrics        SessionMetrics

	startedAt time.Time
}

// NewStore creates an empty Store. startedAt seeds SessionMetrics.StartedAt
// (spec §3) and should be the dashboard process's actual start time.
func NewStore(startedAt time.Time) *Store {
	return &Store{
		plan:          &PlanFile{},
		agents:        make(map[string]*AgentRuntime),
		errorExcerpts: make(map[string]string),
		agentForTask:  make(map[string]string),
		collapsed:     make(map[string]bool),
		startedAt:     startedAt,
	}
}

// ApplyPlan replaces the current plan (spec §4.5). UI hints (collapsed per
// phase id, selected task id) are carried across the replacement, derived
// metrics are recomputed, and any agent whose current_task_id now refers to
// a deleted task has that reference cleared (spec §3 merge rules).
func (s *Store) ApplyPlan(p *PlanFile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ph := range p.Phases {
		if collapsed, ok := s.collapsed[ph.ID]; ok {
			ph.Collapsed = collapsed
		}
	}

	s.overlayEventDerivedFieldsLocked(p)

	s.plan = p
	s.recomputeMetricsLocked()
	s.reconcileAgentTaskRefsLocked()
}

// overlayEventDerivedFieldsLocked applies the event-derived Agent and
// ErrorExcerpt overlays onto a freshly parsed plan (spec §4.5: plan is
// authoritative for Status; events are authoritative for Agent,
// ErrorExcerpt, and "most recent activity").
func (s *Store) overlayEventDerivedFieldsLocked(p *PlanFile) {
	for _, ph := range p.Phases {
		for _, t := range ph.Tasks {
			if agent, ok := s.agentForTask[t.ID]; ok {
				t.Agent = agent
			}
			if excerpt, ok := s.errorExcerpts[t.ID]; ok {
				t.ErrorExcerpt = excerpt
			}
		}
	}
}

// reconcileAgentTaskRefsLocked clears CurrentTaskID on any AgentRuntime
// whose referenced task no longer exists in the current plan (spec §4.5).
func (s *Store) reconcileAgentTaskRefsLocked() {
	for _, a := range s.agents {
		if a.CurrentTaskID != "" && s.plan.TaskByID(a.CurrentTaskID) == nil {
			a.CurrentTaskID = ""
		}
	}
}

func (s *Store) recomputeMetricsLocked() {
	m := SessionMetrics{StartedAt: s.startedAt}
	for _, ph := range s.plan.Phases {
		for _, t := range ph.Tasks {
			m.TotalTasks++
			switch t.Status {
			case StatusCompleted:
				m.Completed++
			case StatusInProgress:
				m.InProgress++
			case StatusFailed:
				m.Failed++
			case StatusBlocked:
				m.Blocked++
			default:
				m.Pending++
			}
		}
	}
	if m.TotalTasks > 0 {
		m.OverallProgress = float64(m.Completed) / float64(m.TotalTasks)
	}
	s.metrics = m
}

// eventKey orders events for the monotonicity invariant (spec §3 invariant
// 7): primarily by timestamp, with events lacking a timestamp sorting after
// every timestamped event at the same source offset (spec §4.2), and a
// source-offset tie-break otherwise.
type eventKey struct {
	hasTimestamp bool
	at           time.Time
	offset       int64
}

func keyOf(ev eventlog.Event) eventKey {
	return eventKey{hasTimestamp: ev.HasTimestamp, at: ev.Timestamp, offset: ev.SourceOffset}
}

// less reports whether a happened strictly before b.
func (a eventKey) less(b eventKey) bool {
	if a.hasTimestamp != b.hasTimestamp {
		// The one missing a timestamp sorts after, so it is "not less".
		return a.hasTimestamp
	}
	if a.hasTimestamp {
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
	}
	return a.offset < b.offset
}

// ApplyEvent updates the relevant AgentRuntime for one parsed Event (spec
// §4.5). Events whose (timestamp, source_offset) stamp is strictly less
// than the agent's most recently applied stamp are discarded (spec §3
// invariant 7).
func (s *Store) ApplyEvent(ev eventlog.Event) {
	if ev.AgentID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[ev.AgentID]
	if !ok {
		agent = newAgentRuntime(ev.AgentID)
		s.agents[ev.AgentID] = agent
	}

	key := keyOf(ev)
	last := eventKey{hasTimestamp: agent.lastApplied.hasStamp, at: agent.lastApplied.timestamp, offset: agent.lastApplied.offset}
	if agent.lastApplied.hasStamp || agent.lastApplied.offset != 0 {
		if key.less(last) {
			return // strictly older than what's already applied; discard
		}
	}
	agent.lastApplied = eventStamp{timestamp: ev.Timestamp, hasStamp: ev.HasTimestamp, offset: ev.SourceOffset}

	switch ev.Kind {
	case eventlog.KindAgentStart:
		agent.State = AgentRunning
		agent.CurrentTaskID = ev.TaskID
		if ev.SessionID != "" {
			agent.SessionID = ev.SessionID
		}
		if agent.FirstSeen.IsZero() && ev.HasTimestamp {
			agent.FirstSeen = ev.Timestamp
		}
		if ev.TaskID != "" {
			s.agentForTask[ev.TaskID] = agent.AgentID
			if t := s.plan.TaskByID(ev.TaskID); t != nil {
				t.Agent = agent.AgentID
			}
		}

	case eventlog.KindToolStart:
		agent.State = AgentRunning
		agent.CurrentTool = ev.ToolName
		agent.RecentTools.Push(ToolInvocation{Tool: ev.ToolName, At: ev.Timestamp})
		agent.ToolCounts[ev.ToolName]++

	case eventlog.KindToolEnd:
		agent.CurrentTool = ""

	case eventlog.KindAgentEnd:
		agent.State = AgentIdle
		agent.CurrentTool = ""
		agent.CurrentTaskID = ""

	case eventlog.KindError:
		agent.LastError = ev.ErrorMessage
		if ev.TaskID != "" {
			s.errorExcerpts[ev.TaskID] = ev.ErrorMessage
			if t := s.plan.TaskByID(ev.TaskID); t != nil {
				t.ErrorExcerpt = ev.ErrorMessage
			}
		}
	}

	if ev.HasTimestamp {
		agent.LastSeen = ev.Timestamp
	}
}

// SetCollapsed records a UI collapse hint for a phase id, carried across
// future ApplyPlan calls.
func (s *Store) SetCollapsed(phaseID string, collapsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collapsed[phaseID] = collapsed
}

// SetSelectedTask records the UI's selected task id, carried across future
// ApplyPlan calls.
func (s *Store) SetSelectedTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedTaskID = taskID
}

// SetSessionMarker records the opaque session id surfaced in Snapshot
// (spec §6's session marker file). taskdash never interprets it.
func (s *Store) SetSessionMarker(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionMarker = id
}

// PlanFile returns the live plan for C6's use (it reads RawText and
// StatusTagRange, then mutates Task.Status in place on a successful
// write — the normal C3/C1 cycle re-parses from disk shortly after).
func (s *Store) PlanFile() *PlanFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Snapshot returns a read-only view for the renderer (spec §4.5/§6).
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := make([]*AgentRuntime, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].LastSeen.After(agents[j].LastSeen)
	})

	return Snapshot{
		Generation:     uuid.New(),
		Plan:           s.plan,
		Agents:         agents,
		Metrics:        s.metrics,
		Warnings:       append([]error(nil), s.plan.Warnings...),
		SelectedTaskID: s.selectedTaskID,
		SessionMarker:  s.sessionMarker,
	}
}
