package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/meshdecomp/internal/config"
	"github.com/turtacn/meshdecomp/internal/testutil"
)

type runRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *runRecorder) run(_ context.Context, reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
}

func (r *runRecorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func TestWatchLoop_DebouncesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	triggers := make(chan string)
	rec := &runRecorder{}
	done := make(chan error, 1)
	go func() { done <- watchLoop(ctx, triggers, 50*time.Millisecond, rec.run) }()

	triggers <- "a"
	triggers <- "b"
	triggers <- "c"
	require.Eventually(t, func() bool { return len(rec.got()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"startup", "c"}, rec.got())

	triggers <- "d"
	require.Eventually(t, func() bool { return len(rec.got()) == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestWatchState_NotifyCoalesces(t *testing.T) {
	w := newWatchState(config.Default(), nil, testutil.NewMockLogger())
	w.notify("first")
	w.notify("second")
	assert.Equal(t, "first", <-w.triggers)
	assert.Empty(t, w.triggers)
}

func TestDictPathOf(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, filepath.Join(".", "system", "myManualDecomposeDict"), dictPathOf(cfg))

	cfg.Input.Case = "/cases/pipe"
	assert.Equal(t, "/cases/pipe/system/myManualDecomposeDict", dictPathOf(cfg))

	cfg.Decomposition.Dict = "/etc/dict"
	assert.Equal(t, "/etc/dict", dictPathOf(cfg))

	cfg.Decomposition.Dict = ""
	cfg.Decomposition.BaseRegionMin = []float64{0, 0, 0}
	assert.Empty(t, dictPathOf(cfg))
}

func TestWatchFile_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dict")
	require.NoError(t, os.WriteFile(target, []byte("a"), 0o644))

	var (
		mu    sync.Mutex
		calls int
	)
	fw, err := watchFile(target, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}, testutil.NewMockLogger())
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("b"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchFile_MissingDirectory(t *testing.T) {
	_, err := watchFile(filepath.Join(t.TempDir(), "nope", "dict"), func() {}, testutil.NewMockLogger())
	assert.Error(t, err)
}

func TestRunWatch_RerunsOnDictionaryChange(t *testing.T) {
	dir := t.TempDir()
	dict := filepath.Join(dir, "system", "myManualDecomposeDict")
	require.NoError(t, os.MkdirAll(filepath.Dir(dict), 0o755))
	require.NoError(t, os.WriteFile(dict, []byte(cubeDict), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "centres.csv"), []byte(sampleCentres), 0o644))
	out := filepath.Join(dir, "parts.csv")

	cfg := config.Default()
	cfg.Input.Case = dir
	cfg.Input.Centers = filepath.Join(dir, "centres.csv")
	cfg.Output.Path = out
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.Mode = "test"
	logger := testutil.NewMockLogger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, &CLIContext{Config: cfg, Logger: logger}, 20*time.Millisecond)
	}()

	readOut := func() string {
		data, _ := os.ReadFile(out)
		return string(data)
	}
	require.Eventually(t, func() bool { return readOut() == "7\n7\n8\n15\n2\n9\n" }, 5*time.Second, 20*time.Millisecond)

	coarse := strings.Replace(cubeDict, "fineRegionDivision (2 2 2)", "fineRegionDivision (1 1 1)", 1)
	require.NoError(t, os.WriteFile(dict, []byte(coarse), 0o644))
	require.Eventually(t, func() bool { return readOut() == "0\n0\n1\n8\n0\n2\n" }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.True(t, logger.HasMessage("info", "watching dictionary"))
	assert.GreaterOrEqual(t, logger.Count("info", "decomposition triggered"), 2)
}
