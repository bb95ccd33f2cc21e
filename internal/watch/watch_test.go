package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Debounce:         20 * time.Millisecond,
		MaxRetries:       1,
		BackoffBase:      10 * time.Millisecond,
		ReconnectCeiling: 200 * time.Millisecond,
	}
}

func TestWatcherEmitsPlanChanged(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "TASKS.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Phase\n"), 0644))

	eventsDir := filepath.Join(dir, "events")
	require.NoError(t, os.MkdirAll(eventsDir, 0755))

	w, err := New(planPath, []string{eventsDir}, fastConfig(), nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(planPath, []byte("# Phase\n\n### [x] T1: a\n"), 0644))

	select {
	case ev := <-w.Events():
		require.Equal(t, PlanChanged, ev.Kind)
		require.Equal(t, planPath, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for PlanChanged")
	}
}

func TestWatcherEmitsEventFileChanged(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "TASKS.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Phase\n"), 0644))

	eventsDir := filepath.Join(dir, "events")
	require.NoError(t, os.MkdirAll(eventsDir, 0755))
	eventFile := filepath.Join(eventsDir, "a.jsonl")
	require.NoError(t, os.WriteFile(eventFile, nil, 0644))

	w, err := New(planPath, []string{eventsDir}, fastConfig(), nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(eventFile, []byte(`{"event_type":"agent_start","agent_id":"a1"}`+"\n"), 0644))

	select {
	case ev := <-w.Events():
		require.Equal(t, EventFileChanged, ev.Kind)
		require.Equal(t, eventFile, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for EventFileChanged")
	}
}

func TestWatcherIgnoresNonJSONLFiles(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "TASKS.md")
	require.NoError(t, os.WriteFile(planPath, []byte("# Phase\n"), 0644))

	eventsDir := filepath.Join(dir, "events")
	require.NoError(t, os.MkdirAll(eventsDir, 0755))

	w, err := New(planPath, []string{eventsDir}, fastConfig(), nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(eventsDir, "notes.txt"), []byte("hello"), 0644))

	select {
	case ev := <-w.Events():
		t.Fatalf("expected no WatchEvent for a non-jsonl file, got %+v", ev)
	case <-time.After(300 * time.Millisecond):
		// expected: nothing arrives
	}
}
