package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/unicode"

	"github.com/five82/panelwatch/internal/logtail"
	"github.com/five82/panelwatch/internal/panel"
)

const sampleLog = `2025-03-27 22:03:14,456 - INFO - [#status]loaded 120 files
2025-03-27 22:03:15,001 - WARNING - [#status]disk is slow
2025-03-27 22:03:15,500 - ERROR - [#status]broken.zip skipped
Traceback (most recent call last): something unrelated
2025-03-27 22:03:16,000 - INFO - [@progress]导入 (3/10) 30%
2025-03-27 22:03:16,500 - INFO - [@progress]完成 100%
`

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 27, 22, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func writeLog(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func appendLog(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestRegister_RejectsMissingFields(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Register(Registration{LogFile: "/tmp/x.log"}))
	assert.False(t, r.Register(Registration{ID: "worker"}))
	assert.False(t, r.Register(Registration{ID: "  ", LogFile: "/tmp/x.log"}))
	assert.Empty(t, r.IDs())
}

func TestRegister_IdempotentKeepsOffsetAndStart(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, sampleLog)

	r := NewRegistry(WithClock(clock.Now))
	require.True(t, r.Register(Registration{ID: "worker", LogFile: path}))
	_, err := r.Poll("worker")
	require.NoError(t, err)
	first, _ := r.Snapshot("worker")

	clock.Advance(time.Minute)
	require.True(t, r.Register(Registration{
		ID:      "worker",
		LogFile: path,
		Panels: []PanelSpec{
			{Name: "status", Layout: panel.Layout{Title: "Overall", Icon: "✅"}},
			{Name: "extra", Layout: panel.Layout{Title: "Extra"}},
		},
	}))

	again, ok := r.Snapshot("worker")
	require.True(t, ok)
	assert.Equal(t, first.Offset, again.Offset)
	assert.Equal(t, first.Started, again.Started)

	status, ok := again.Panel("status")
	require.True(t, ok)
	assert.Equal(t, "Overall", status.Layout.Title)
	assert.Len(t, status.Logs, 3, "layout refresh keeps entries")

	_, ok = again.Panel("extra")
	assert.True(t, ok)
}

func TestPoll_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, sampleLog)

	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "worker", LogFile: path}))

	res, err := r.Poll("worker")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Lines)
	assert.Equal(t, 5, res.Applied)
	assert.Equal(t, 1, res.Ignored)
	assert.Empty(t, res.Warning)

	snap, ok := r.Snapshot("worker")
	require.True(t, ok)

	status, ok := snap.Panel("status")
	require.True(t, ok)
	require.Len(t, status.Logs, 3)
	assert.Equal(t, panel.Entry{Level: "error", Timestamp: "22:03:15", Content: "broken.zip skipped"}, status.Logs[0])
	assert.Equal(t, "warning", status.Logs[1].Level)
	assert.Equal(t, "info", status.Logs[2].Level)
	assert.Empty(t, status.Bars)

	prog, ok := snap.Panel("progress")
	require.True(t, ok)
	require.Len(t, prog.Bars, 2)
	assert.Equal(t, "导入", prog.Bars[0].ID)
	assert.Equal(t, "导入 (3/10) 30.0%", prog.Bars[0].Text)
	assert.False(t, prog.Bars[0].Complete)
	assert.Equal(t, "完成", prog.Bars[1].ID)
	assert.True(t, prog.Bars[1].Complete)
	assert.Empty(t, prog.Logs)

	// Undeclared panels get the default presentation.
	assert.Equal(t, DefaultPanelLayout("status"), status.Layout)
}

func TestPoll_IncrementalNoRedelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, "2025-03-27 22:03:14,456 - INFO - [#status]one\n")

	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))

	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	res, err = r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Lines)

	appendLog(t, path, "2025-03-27 22:03:15,456 - INFO - [#status]two\n")
	res, err = r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	snap, _ := r.Snapshot("w")
	status, _ := snap.Panel("status")
	require.Len(t, status.Logs, 2)
	assert.Equal(t, "two", status.Logs[0].Content)
	assert.Equal(t, "one", status.Logs[1].Content)
}

func TestPoll_UTF16KeepsEncodingAcrossReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	head, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().
		String("2025-03-27 22:03:14,456 - INFO - [#status]上传 one\n")
	require.NoError(t, err)
	writeLog(t, path, head)

	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))

	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	body := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	for _, line := range []string{
		"2025-03-27 22:03:15,456 - INFO - [#status]上传 two\n",
		"2025-03-27 22:03:16,456 - INFO - [@progress]导入 (5/10) 50%\n",
	} {
		encoded, err := body.String(line)
		require.NoError(t, err)
		appendLog(t, path, encoded)

		res, err = r.Poll("w")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Applied, "line %q", line)
		assert.Zero(t, res.Offset%2, "offset must stay on a code unit boundary")
	}

	snap, _ := r.Snapshot("w")
	status, _ := snap.Panel("status")
	require.Len(t, status.Logs, 2)
	assert.Equal(t, "上传 two", status.Logs[0].Content)
	prog, _ := snap.Panel("progress")
	require.Len(t, prog.Bars, 1)
	assert.Equal(t, 50.0, prog.Bars[0].Percentage)
}

func TestPoll_DropsBadProgressAndSystemPanelEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, `2025-03-27 22:03:14,456 - INFO - [@progress]no percentage here
2025-03-27 22:03:14,457 - INFO - [#system]should not land
2025-03-27 22:03:14,458 - INFO - [@progress]copy 10%
`)

	r := NewRegistry()
	require.True(t, r.Register(Registration{
		ID:      "w",
		LogFile: path,
		Panels:  []PanelSpec{{Name: "system", Kind: panel.KindSystem}},
	}))

	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Dropped)

	snap, _ := r.Snapshot("w")
	sys, ok := snap.Panel("system")
	require.True(t, ok)
	assert.Empty(t, sys.Logs)
	prog, _ := snap.Panel("progress")
	assert.Len(t, prog.Bars, 1)
}

func TestPoll_LastUpdateOnlyMovesWhenApplied(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, "just noise\n")

	r := NewRegistry(WithClock(clock.Now))
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))
	registered := clock.Now()

	clock.Advance(time.Minute)
	_, err := r.Poll("w")
	require.NoError(t, err)
	snap, _ := r.Snapshot("w")
	assert.Equal(t, registered, snap.LastUpdate)

	appendLog(t, path, "2025-03-27 22:03:14,456 - INFO - [#status]hi\n")
	_, err = r.Poll("w")
	require.NoError(t, err)
	snap, _ = r.Snapshot("w")
	assert.Equal(t, clock.Now(), snap.LastUpdate)
	assert.Equal(t, time.Minute, snap.Elapsed)
}

func TestPoll_UnknownScript(t *testing.T) {
	r := NewRegistry()
	_, err := r.Poll("ghost")
	assert.ErrorIs(t, err, ErrUnknownScript)
}

func TestPoll_MissingFileIsQuiet(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "w", LogFile: filepath.Join(t.TempDir(), "absent.log")}))

	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, PollResult{}, res)
}

func TestPoll_UnreadableWarnsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, "\xff\xfe\xfd\n")

	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(
		WithLogger(zap.New(core)),
		WithTailOptions(logtail.WithEncodings("utf-8")),
	)
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))

	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Zero(t, res.Offset)

	res, err = r.Poll("w")
	require.NoError(t, err)
	assert.Empty(t, res.Warning, "reported once")
	assert.Equal(t, 1, logs.FilterMessage("log unreadable").Len())

	writeLog(t, path, "2025-03-27 22:03:14,456 - INFO - [#status]fixed\n")
	res, err = r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	writeLog(t, path, "2025-03-27 22:03:14,456 - INFO - [#status]fixed\n\xff\xfe\n")
	res, err = r.Poll("w")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning, "warns again after recovering")
}

func TestPoll_TruncatedFileRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, sampleLog)

	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))
	_, err := r.Poll("w")
	require.NoError(t, err)

	writeLog(t, path, "2025-03-27 23:00:00,000 - INFO - [#status]rotated\n")
	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.True(t, res.Reset)
	assert.Equal(t, 1, res.Applied)

	snap, _ := r.Snapshot("w")
	status, _ := snap.Panel("status")
	assert.Equal(t, "rotated", status.Logs[0].Content)
}

func TestPoll_PermissionErrorPreservesState(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, sampleLog)

	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))
	_, err := r.Poll("w")
	require.NoError(t, err)

	appendLog(t, path, "2025-03-27 22:03:17,000 - INFO - [#status]later\n")
	require.NoError(t, os.Chmod(path, 0))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.Zero(t, res.Applied)

	snap, _ := r.Snapshot("w")
	status, _ := snap.Panel("status")
	assert.Len(t, status.Logs, 3)
}

func TestIsActive(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, "")

	r := NewRegistry(WithClock(clock.Now))
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))

	touch := func() {
		require.NoError(t, os.Chtimes(path, clock.Now(), clock.Now()))
	}

	tests := []struct {
		name    string
		advance time.Duration
		touch   bool
		want    bool
	}{
		{name: "four minutes idle", advance: 4 * time.Minute, touch: true, want: true},
		{name: "six minutes idle", advance: 2 * time.Minute, touch: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			if tt.touch {
				touch()
			}
			if got := r.IsActive("w", DefaultTimeout); got != tt.want {
				t.Fatalf("IsActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsActive_StaleFileOrMissing(t *testing.T) {
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, "")
	stale := clock.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(path, stale, stale))

	r := NewRegistry(WithClock(clock.Now))
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))

	assert.False(t, r.IsActive("w", DefaultTimeout), "stale mtime")
	assert.True(t, r.IsActive("w", 15*time.Minute))

	require.NoError(t, os.Remove(path))
	assert.False(t, r.IsActive("w", 15*time.Minute), "missing file")
	assert.False(t, r.IsActive("ghost", DefaultTimeout), "unknown id")
}

func TestClear_RestartsFromZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	writeLog(t, path, sampleLog)

	r := NewRegistry()
	reg := Registration{ID: "w", LogFile: path}
	require.True(t, r.Register(reg))
	_, err := r.Poll("w")
	require.NoError(t, err)

	assert.True(t, r.Clear("w"))
	assert.False(t, r.Clear("w"))
	_, ok := r.Snapshot("w")
	assert.False(t, ok)

	require.True(t, r.Register(reg))
	res, err := r.Poll("w")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Applied, "re-read from the start")

	r.ClearAll()
	assert.Empty(t, r.IDs())
}

func TestPollAll(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(WithMaxConcurrentReads(2))
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("w%d.log", i))
		writeLog(t, path, sampleLog)
		require.True(t, r.Register(Registration{ID: fmt.Sprintf("w%d", i), LogFile: path}))
	}

	results := r.PollAll(context.Background())
	require.Len(t, results, 5)
	for id, res := range results {
		assert.Equal(t, 5, res.Applied, id)
	}

	snaps := r.Snapshots()
	require.Len(t, snaps, 5)
	assert.Equal(t, "w0", snaps[0].ID)
	assert.Equal(t, "w4", snaps[4].ID)
}

func TestPollAll_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.log")
	writeLog(t, path, sampleLog)
	r := NewRegistry()
	require.True(t, r.Register(Registration{ID: "w", LogFile: path}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, r.PollAll(ctx))
}
