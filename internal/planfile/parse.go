// Package planfile implements the task-plan parser (spec §4.1, C1) and
// writer (spec §4.6, C6).
//
// The parser is grounded on the teacher's internal/plan/ingest.go approach
// to markdown: a single-pass, line-oriented scan driven by a table of
// regexps, tolerant of anything it doesn't recognize (skip to the next
// anchor, emit a warning, never fail the whole parse). Unlike ingest.go's
// GitHub-issue-body grammar, this parser's one unusual requirement is
// byte-exact status-tag capture for write-back (spec §4.1, §9): it never
// round-trips through a pretty-printer, it records the `[start,end)` byte
// range of each status tag literal directly against the original bytes.
package planfile

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/taskdash/taskdash/internal/dashboard"
	taskdasherrors "github.com/taskdash/taskdash/internal/errors"
)

var (
	// phaseHeadingRe matches a single-level heading: "#" not followed by
	// another "#". The phase name is everything after the hashes and
	// surrounding space.
	phaseHeadingRe = regexp.MustCompile(`^#([^#]*)$`)

	// taskHeadingRe matches "### [tag] id: name". The tag capture group
	// includes the brackets, so its byte offsets (relative to the line) from
	// FindStringSubmatchIndex give the '[' through ']' span, not just the
	// tag's inner text.
	taskHeadingRe = regexp.MustCompile(`^###\s*(\[[^\]]*\])\s*([^\s:][^:]*):\s*(.*)$`)

	// anyHeadingRe matches a heading of level 1 to 3, used to recognize
	// "a subsequent heading of equal or higher level" that terminates a
	// task body (spec §4.1). Deeper headings stay part of the body.
	anyHeadingRe = regexp.MustCompile(`^#{1,3}([^#]|$)`)

	blockedByRe = regexp.MustCompile(`(?i)^\s*-\s*\*\*blocked_by\*\*:\s*(.*)$`)
	agentMetaRe = regexp.MustCompile(`(?i)^\s*-\s*\*\*agent\*\*:\s*(.*)$`)
	bulletRe    = regexp.MustCompile(`^\s*-\s`)
	bareAgentRe = regexp.MustCompile(`@([\w.\-]+)`)
)

var statusByTag = map[string]dashboard.Status{
	"x": dashboard.StatusCompleted,
	" ": dashboard.StatusPending,
	"":  dashboard.StatusPending,
	"/": dashboard.StatusInProgress,
	"!": dashboard.StatusFailed,
	"b": dashboard.StatusBlocked,

	"pending":    dashboard.StatusPending,
	"inprogress": dashboard.StatusInProgress,
	"completed":  dashboard.StatusCompleted,
	"failed":     dashboard.StatusFailed,
	"blocked":    dashboard.StatusBlocked,
}

// lineSpan is one line's byte extent in the source, excluding its line
// terminator, plus a 1-based line number for warning messages.
type lineSpan struct {
	start, end int
	number     int
}

func splitLines(raw []byte) []lineSpan {
	var spans []lineSpan
	start := 0
	line := 1
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			end := i
			if end > start && raw[end-1] == '\r' {
				end--
			}
			spans = append(spans, lineSpan{start: start, end: end, number: line})
			start = i + 1
			line++
		}
	}
	if start < len(raw) {
		spans = append(spans, lineSpan{start: start, end: len(raw), number: line})
	}
	return spans
}

// Parse parses the full text of a plan file into a dashboard.PlanFile. It
// never fails wholesale (spec §4.1): unrecognized constructs are recorded
// as warnings on the returned PlanFile and skipped.
func Parse(path string, raw []byte) *dashboard.PlanFile {
	pf := &dashboard.PlanFile{Path: path, RawText: raw}

	if !utf8.Valid(raw) {
		pf.Warnings = append(pf.Warnings, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindInvalidUTF8,
			"plan file contains invalid UTF-8; invalid sequences rendered as U+FFFD",
			0, len(raw)))
	}

	seenIDs := make(map[string]int) // id -> occurrence count so far

	var currentPhase *dashboard.Phase
	var currentTask *dashboard.Task
	var bodyLines []string

	flushTask := func() {
		if currentTask == nil {
			return
		}
		currentTask.BodyText = strings.Join(bodyLines, "\n")
		applyBodyMetadata(currentTask, bodyLines)
		currentTask = nil
		bodyLines = nil
	}

	for _, span := range splitLines(raw) {
		line := string(raw[span.start:span.end])

		if currentTask != nil && anyHeadingRe.MatchString(line) {
			flushTask()
		}

		switch {
		case taskHeadingRe.MatchString(line):
			if currentPhase == nil {
				// A task heading before any phase heading: synthesize an
				// implicit phase so the task isn't dropped.
				currentPhase = &dashboard.Phase{ID: "phase-0", Name: ""}
				pf.Phases = append(pf.Phases, currentPhase)
			}
			task := parseTaskHeading(line, span, seenIDs, pf)
			if task != nil {
				task.PhaseID = currentPhase.ID
				currentPhase.Tasks = append(currentPhase.Tasks, task)
				currentTask = task
				bodyLines = nil
			}

		case phaseHeadingRe.MatchString(line):
			name := strings.TrimSpace(phaseHeadingRe.FindStringSubmatch(line)[1])
			currentPhase = &dashboard.Phase{
				ID:   "phase-" + strconv.Itoa(len(pf.Phases)),
				Name: name,
			}
			pf.Phases = append(pf.Phases, currentPhase)

		case currentTask != nil:
			bodyLines = append(bodyLines, line)

		default:
			// Not inside a task body and not a recognized heading: skip to
			// the next anchor, per spec §4.1's "Output" paragraph. Blank
			// lines and stray prose between headings are the common case
			// and don't warrant a warning.
		}
	}
	flushTask()

	for _, ph := range pf.Phases {
		recomputePhaseAggregates(ph)
	}

	return pf
}

// parseTaskHeading parses one "### [tag] id: name" line, captures the
// status-tag byte range against the full file, and handles duplicate ids
// (spec §4.1: first wins, second gets a synthetic "<id>#2" id and a
// warning).
func parseTaskHeading(line string, span lineSpan, seenIDs map[string]int, pf *dashboard.PlanFile) *dashboard.Task {
	m := taskHeadingRe.FindStringSubmatchIndex(line)
	if m == nil {
		pf.Warnings = append(pf.Warnings, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindMissingTaskID,
			"task heading missing id field: "+strings.TrimSpace(line),
			span.start, span.end,
		).WithLine(span.number))
		return nil
	}

	tagText := line[m[2]:m[3]] // "[...]" including brackets
	tagStart := span.start + m[2]
	tagEnd := span.start + m[3]

	rawID := strings.TrimSpace(line[m[4]:m[5]])
	name := strings.TrimSpace(line[m[6]:m[7]])

	status, known := resolveStatus(tagText)
	if !known {
		pf.Warnings = append(pf.Warnings, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindUnknownStatus,
			"unknown status tag "+tagText+" for task "+rawID+"; treating as Pending",
			tagStart, tagEnd,
		).WithLine(span.number))
	}

	id := rawID
	if rawID == "" {
		pf.Warnings = append(pf.Warnings, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindMissingTaskID,
			"task heading has an empty id",
			span.start, span.end,
		).WithLine(span.number))
		return nil
	}

	seenIDs[rawID]++
	if n := seenIDs[rawID]; n > 1 {
		pf.Warnings = append(pf.Warnings, taskdasherrors.NewParseError(
			taskdasherrors.ParseErrKindDuplicateTaskID,
			"duplicate task id \""+rawID+"\"; first occurrence wins",
			span.start, span.end,
		).WithLine(span.number))
		id = rawID + "#" + strconv.Itoa(n)
	}

	return &dashboard.Task{
		ID:     id,
		Name:   name,
		Status: status,
		StatusTag: dashboard.StatusTagRange{
			Start: tagStart,
			End:   tagEnd,
		},
	}
}

func resolveStatus(tag string) (dashboard.Status, bool) {
	inner := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(tag, "["), "]"))
	if s, ok := statusByTag[inner]; ok {
		return s, true
	}
	return dashboard.StatusPending, false
}

// applyBodyMetadata scans a task's body lines for "- **blocked_by**: …",
// "- **agent**: …", and bare "@agent-name" tokens on bullet lines.
func applyBodyMetadata(task *dashboard.Task, bodyLines []string) {
	for _, line := range bodyLines {
		if m := blockedByRe.FindStringSubmatch(line); m != nil {
			task.BlockedBy = parseBlockedBy(m[1])
			continue
		}
		if m := agentMetaRe.FindStringSubmatch(line); m != nil {
			task.Agent = strings.TrimSpace(m[1])
			continue
		}
		if task.Agent == "" && bulletRe.MatchString(line) {
			if m := bareAgentRe.FindStringSubmatch(line); m != nil {
				task.Agent = m[1]
			}
		}
	}
}

// parseBlockedBy parses the comma-separated ref list after "blocked_by:".
// "(none)", "-", and "" all mean "no dependencies" (spec §4.1).
func parseBlockedBy(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" || strings.EqualFold(raw, "(none)") {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// recomputePhaseAggregates fills in Phase.Progress and Phase.Status from its
// tasks (spec §3 invariant 3).
func recomputePhaseAggregates(ph *dashboard.Phase) {
	if len(ph.Tasks) == 0 {
		ph.Progress = 0
		ph.Status = dashboard.StatusPending
		return
	}

	var completed, failed, inProgress, blocked int
	for _, t := range ph.Tasks {
		switch t.Status {
		case dashboard.StatusCompleted:
			completed++
		case dashboard.StatusFailed:
			failed++
		case dashboard.StatusInProgress:
			inProgress++
		case dashboard.StatusBlocked:
			blocked++
		}
	}
	ph.Progress = float64(completed) / float64(len(ph.Tasks))

	switch {
	case completed == len(ph.Tasks):
		ph.Status = dashboard.StatusCompleted
	case failed > 0:
		ph.Status = dashboard.StatusFailed
	case inProgress > 0:
		ph.Status = dashboard.StatusInProgress
	case blocked > 0:
		ph.Status = dashboard.StatusBlocked
	default:
		ph.Status = dashboard.StatusPending
	}
}
