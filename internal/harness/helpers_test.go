package harness

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/govqa/portalharness/internal/driver"
	"github.com/govqa/portalharness/internal/driver/drivertest"
	"github.com/govqa/portalharness/internal/report"
)

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	driver   *drivertest.Driver
	manager  *Manager
	logs     *syncBuffer
	dir      string
	launches int
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		driver: drivertest.New("Zilla Panchayat Shivamogga"),
		logs:   &syncBuffer{},
		dir:    t.TempDir(),
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.manager = NewManager(func(ctx context.Context) (driver.Driver, error) {
		f.launches++
		return f.driver, nil
	}, Config{
		Scenario:      "test-scenario",
		EvidenceDir:   f.dir,
		LocateTimeout: timeout,
		Logger:        logger,
	})
	return f
}

func (f *fixture) acquire(t *testing.T) *Session {
	t.Helper()
	s, err := f.manager.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() = %v; want nil", err)
	}
	t.Cleanup(func() { _ = f.manager.Release(s) })
	return s
}

// memSink records report calls.
type memSink struct {
	started     []string
	finished    []string
	statuses    []string
	attachments []string
	finishes    int
	status      string
}

func (m *memSink) StartStep(name string) { m.started = append(m.started, name) }

func (m *memSink) FinishStep(name string, status report.Status, err error) {
	m.finished = append(m.finished, name)
	m.statuses = append(m.statuses, string(status))
}

func (m *memSink) Attach(name, contentType string, data []byte) error {
	m.attachments = append(m.attachments, name+"|"+contentType)
	return nil
}

func (m *memSink) Finish(status report.Status, err error) error {
	m.finishes++
	m.status = string(status)
	return nil
}

func (m *memSink) UUID() string { return "mem" }
