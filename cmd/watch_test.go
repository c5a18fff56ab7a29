//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/signature"
)

type watchEvent struct {
	path string
	res  *model.DriftResult
}

func startWatcher(t *testing.T, dir string, initial bool) <-chan watchEvent {
	t.Helper()
	w, err := newFileWatcher(dir, signature.NewComputer(nil), drift.NewDetector(drift.NewMemoryStore()), watchOptions{
		Prefix:   "feeds/",
		Debounce: 20 * time.Millisecond,
		Initial:  initial,
	})
	require.NoError(t, err)

	events := make(chan watchEvent, 16)
	w.onResult = func(path string, res *model.DriftResult) {
		events <- watchEvent{path, res}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return events
}

func nextEvent(t *testing.T, events <-chan watchEvent) watchEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for drift check")
		return watchEvent{}
	}
}

func TestFileWatcher_InitialAndChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "vendor.csv", "id,amount\n1,100\n")

	events := startWatcher(t, dir, true)

	ev := nextEvent(t, events)
	assert.Equal(t, path, ev.path)
	assert.False(t, ev.res.Drift)
	assert.Equal(t, "feeds/vendor.csv", ev.res.Record.SourceID)

	require.NoError(t, os.WriteFile(path, []byte("id,amount,region\n1,100,west\n"), 0o644))
	for {
		ev = nextEvent(t, events)
		if ev.res.Drift {
			break
		}
	}
	assert.Equal(t, []string{"region"}, ev.res.Alert.Diff.AddedHeaders)
}

func TestFileWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	events := startWatcher(t, dir, false)

	// Give the watcher time to register the root before creating children.
	time.Sleep(50 * time.Millisecond)
	writeTestFile(t, dir, filepath.Join("2024", "jan.csv"), "id\n1\n")

	ev := nextEvent(t, events)
	assert.Equal(t, "feeds/2024/jan.csv", ev.res.Record.SourceID)
}

func TestFileWatcher_SkipsHidden(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, ".partial.csv", "id\n1\n")
	writeTestFile(t, dir, "done.csv", "id\n1\n")

	events := startWatcher(t, dir, true)
	ev := nextEvent(t, events)
	assert.Equal(t, "feeds/done.csv", ev.res.Record.SourceID)

	select {
	case ev := <-events:
		t.Fatalf("unexpected check of %s", ev.path)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewFileWatcher_NotADirectory(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "a.csv", "id\n1\n")
	_, err := newFileWatcher(path, signature.NewComputer(nil), drift.NewDetector(drift.NewMemoryStore()), watchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	_, err = newFileWatcher(filepath.Join(path, "missing"), nil, nil, watchOptions{})
	require.Error(t, err)
}
