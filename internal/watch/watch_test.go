package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type event struct {
	path string
	op   Op
}

// startWatcher spins up a watcher over a fresh temp dir with a short
// debounce so tests settle quickly.
func startWatcher(t *testing.T, opts Options) (string, *Watcher, chan event) {
	t.Helper()

	dir := t.TempDir()
	events := make(chan event, 16)
	w, err := New(dir, opts, zap.NewNop(), func(path string, op Op) {
		events <- event{path, op}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return dir, w, events
}

func awaitEvent(t *testing.T, events chan event) event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event before deadline")
		return event{}
	}
}

func assertQuiet(t *testing.T, events chan event, window time.Duration) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for %s (%s)", ev.path, ev.op)
	case <-time.After(window):
	}
}

func TestWatcher_ReportsNewSheet(t *testing.T) {
	dir, _, events := startWatcher(t, Options{Debounce: 100 * time.Millisecond})

	path := filepath.Join(dir, "run042.csv")
	require.NoError(t, os.WriteFile(path, []byte("[Header]\n"), 0644))

	ev := awaitEvent(t, events)
	assert.Equal(t, path, ev.path)
	assert.Equal(t, OpCreate, ev.op, "creation writes stay a create")
}

func TestWatcher_FiltersByExtension(t *testing.T) {
	dir, w, events := startWatcher(t, Options{Debounce: 100 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sheet.csv"), []byte("[Header]\n"), 0644))

	ev := awaitEvent(t, events)
	assert.Equal(t, filepath.Join(dir, "sheet.csv"), ev.path)

	stats := w.Stats()
	assert.Equal(t, filepath.Join(dir, "sheet.csv"), stats.LastEventPath,
		"filtered files never reach the counters")
	assertQuiet(t, events, 300*time.Millisecond)
}

func TestWatcher_DebounceCollapsesBursts(t *testing.T) {
	dir, w, events := startWatcher(t, Options{Debounce: 250 * time.Millisecond})

	path := filepath.Join(dir, "burst.csv")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("[Header]\n"), 0644))
		time.Sleep(20 * time.Millisecond)
	}

	ev := awaitEvent(t, events)
	assert.Equal(t, path, ev.path)
	assertQuiet(t, events, 500*time.Millisecond)

	stats := w.Stats()
	assert.Equal(t, 1, stats.Triggered, "one callback per burst")
	assert.GreaterOrEqual(t, stats.Created+stats.Modified, 3, "raw events are all counted")
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.csv")
	require.NoError(t, os.WriteFile(path, []byte("[Header]\n"), 0644))

	events := make(chan event, 16)
	w, err := New(dir, Options{Debounce: 100 * time.Millisecond}, nil, func(p string, op Op) {
		events <- event{p, op}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, os.Remove(path))

	ev := awaitEvent(t, events)
	assert.Equal(t, path, ev.path)
	assert.Equal(t, OpRemove, ev.op)
}

func TestWatcher_StartErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		w, err := New(filepath.Join(t.TempDir(), "absent"), Options{}, nil, nil)
		require.NoError(t, err)
		t.Cleanup(w.Stop)

		err = w.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to watch")
	})

	t.Run("start after stop", func(t *testing.T) {
		w, err := New(t.TempDir(), Options{}, nil, nil)
		require.NoError(t, err)
		w.Stop()

		err = w.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stopped")
	})

	t.Run("double start is a no-op", func(t *testing.T) {
		w, err := New(t.TempDir(), Options{}, nil, nil)
		require.NoError(t, err)
		t.Cleanup(w.Stop)

		require.NoError(t, w.Start(context.Background()))
		require.NoError(t, w.Start(context.Background()))
	})
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), Options{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}

func TestWatcher_ContextCancellationHaltsDelivery(t *testing.T) {
	dir := t.TempDir()
	events := make(chan event, 16)
	w, err := New(dir, Options{Debounce: 50 * time.Millisecond}, nil, func(p string, op Op) {
		events <- event{p, op}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.csv"), []byte("x"), 0644))
	assertQuiet(t, events, 300*time.Millisecond)

	w.Stop()
}

func TestMergeOp(t *testing.T) {
	cases := []struct {
		name    string
		prev    Op
		hasPrev bool
		next    Op
		want    Op
	}{
		{"first event passes through", "", false, OpCreate, OpCreate},
		{"create survives follow-up writes", OpCreate, true, OpModify, OpCreate},
		{"remove wins over anything", OpCreate, true, OpRemove, OpRemove},
		{"replace after remove is modify", OpRemove, true, OpCreate, OpModify},
		{"modify stays modify", OpModify, true, OpModify, OpModify},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mergeOp(tc.prev, tc.hasPrev, tc.next))
		})
	}
}
