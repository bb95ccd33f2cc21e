package planfile

import (
	"testing"

	"github.com/taskdash/taskdash/internal/dashboard"
)

func TestParseBasicPlan(t *testing.T) {
	raw := []byte(`# Phase One

### [ ] P0-T0.1: write the parser
- **agent**: claude-1

### [x] P0-T0.2: write the writer
body text here

### [/] P0-T0.3: wire the store
- **blocked_by**: P0-T0.1, P0-T0.2
`)

	pf := Parse("TASKS.md", raw)
	if len(pf.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", pf.Warnings)
	}
	if len(pf.Phases) != 1 {
		t.Fatalf("expected 1 phase, got %d", len(pf.Phases))
	}
	ph := pf.Phases[0]
	if ph.Name != "Phase One" {
		t.Fatalf("phase name = %q", ph.Name)
	}
	if len(ph.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(ph.Tasks))
	}

	t1 := ph.Tasks[0]
	if t1.ID != "P0-T0.1" || t1.Status != dashboard.StatusPending || t1.Agent != "claude-1" {
		t.Fatalf("task 1 = %+v", t1)
	}
	t2 := ph.Tasks[1]
	if t2.ID != "P0-T0.2" || t2.Status != dashboard.StatusCompleted {
		t.Fatalf("task 2 = %+v", t2)
	}
	t3 := ph.Tasks[2]
	if t3.ID != "P0-T0.3" || t3.Status != dashboard.StatusInProgress {
		t.Fatalf("task 3 = %+v", t3)
	}
	if len(t3.BlockedBy) != 2 || t3.BlockedBy[0] != "P0-T0.1" || t3.BlockedBy[1] != "P0-T0.2" {
		t.Fatalf("task 3 blocked_by = %v", t3.BlockedBy)
	}

	// Status-tag byte ranges must point back at the literal "[ ]"/"[x]"/"[/]".
	for _, task := range ph.Tasks {
		got := string(pf.RawText[task.StatusTag.Start:task.StatusTag.End])
		if len(got) < 2 || got[0] != '[' || got[len(got)-1] != ']' {
			t.Fatalf("task %s status tag range captured %q", task.ID, got)
		}
	}
}

func TestParseDuplicateTaskID(t *testing.T) {
	raw := []byte(`# Phase

### [ ] T1: first
### [x] T1: second
`)
	pf := Parse("TASKS.md", raw)
	if len(pf.Phases[0].Tasks) != 2 {
		t.Fatalf("expected both tasks kept, got %d", len(pf.Phases[0].Tasks))
	}
	if pf.Phases[0].Tasks[0].ID != "T1" || pf.Phases[0].Tasks[1].ID != "T1#2" {
		t.Fatalf("ids = %q, %q", pf.Phases[0].Tasks[0].ID, pf.Phases[0].Tasks[1].ID)
	}
	if len(pf.Warnings) == 0 {
		t.Fatalf("expected a duplicate-id warning")
	}
}

func TestParseUnknownStatusTagDefaultsPending(t *testing.T) {
	raw := []byte("# Phase\n\n### [?] T1: mystery\n")
	pf := Parse("TASKS.md", raw)
	if pf.Phases[0].Tasks[0].Status != dashboard.StatusPending {
		t.Fatalf("status = %v", pf.Phases[0].Tasks[0].Status)
	}
	if len(pf.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(pf.Warnings))
	}
}

func TestParseTaskBeforeAnyPhaseSynthesizesOne(t *testing.T) {
	raw := []byte("### [ ] T1: orphan task\n")
	pf := Parse("TASKS.md", raw)
	if len(pf.Phases) != 1 || len(pf.Phases[0].Tasks) != 1 {
		t.Fatalf("expected a synthesized phase with 1 task, got %+v", pf.Phases)
	}
}

func TestParseBlockedByNoneVariants(t *testing.T) {
	for _, variant := range []string{"(none)", "-", ""} {
		raw := []byte("# Phase\n\n### [ ] T1: task\n- **blocked_by**: " + variant + "\n")
		pf := Parse("TASKS.md", raw)
		if got := pf.Phases[0].Tasks[0].BlockedBy; len(got) != 0 {
			t.Fatalf("variant %q: blocked_by = %v", variant, got)
		}
	}
}

func TestPhaseAggregates(t *testing.T) {
	raw := []byte(`# Phase

### [x] T1: a
### [x] T2: b
### [!] T3: c
`)
	pf := Parse("TASKS.md", raw)
	ph := pf.Phases[0]
	if ph.Status != dashboard.StatusFailed {
		t.Fatalf("expected Failed to dominate, got %v", ph.Status)
	}
	if want := 2.0 / 3.0; ph.Progress != want {
		t.Fatalf("progress = %v, want %v", ph.Progress, want)
	}
}
