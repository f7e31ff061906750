// Package storage keeps the run timeline: every report event as one JSON line.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/govqa/portalharness/internal/report"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("event log is closed")

// ErrBufferFull is returned when the write queue is full; the record is dropped.
var ErrBufferFull = errors.New("event log buffer full")

// Record is one line of the run timeline.
type Record struct {
	RunID string `json:"run_id"`
	report.Event
}

// JSONLWriter writes records asynchronously to
// {baseDir}/{YYYY-MM-DD}/{runID}.jsonl, rotated by lumberjack.
type JSONLWriter struct {
	baseDir   string
	runID     string
	maxSizeMB int

	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	currentDate string
	logger      *lumberjack.Logger
	now         func() time.Time
}

// NewJSONLWriter starts a writer for one run.
func NewJSONLWriter(baseDir, runID string, bufferSize, maxSizeMB int) *JSONLWriter {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	w := &JSONLWriter{
		baseDir:   baseDir,
		runID:     runID,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Observe queues e. It never blocks; a full buffer drops the event.
func (w *JSONLWriter) Observe(e report.Event) {
	if err := w.Write(e); err != nil && !errors.Is(err, ErrClosed) {
		slog.Warn("event log dropped event", "type", e.Type, "case", e.Case, "error", err)
	}
}

// Write queues e for the timeline.
func (w *JSONLWriter) Write(e report.Event) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case w.writeCh <- Record{RunID: w.runID, Event: e}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Path returns the file currently written, or "" before the first record.
func (w *JSONLWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger == nil {
		return ""
	}
	return w.logger.Filename
}

// Close flushes queued records and closes the file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	timeout := time.After(5 * time.Second)
drain:
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-timeout:
			slog.Warn("event log close timeout, some records may be lost", "run_id", w.runID)
			break drain
		default:
			break drain
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		return w.logger.Close()
	}
	return nil
}

func (w *JSONLWriter) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			return
		}
	}
}

func (w *JSONLWriter) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal event", "error", err, "run_id", w.runID)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if date != w.currentDate || w.logger == nil {
		if err := w.openForDate(date); err != nil {
			slog.Error("failed to open event log", "error", err, "run_id", w.runID)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write event", "error", err, "run_id", w.runID)
	}
}

func (w *JSONLWriter) openForDate(date string) error {
	if w.logger != nil {
		_ = w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	filename := filepath.Join(dir, w.runID+".jsonl")
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   false,
		LocalTime:  false,
	}
	w.currentDate = date
	slog.Info("opened event log", "file", filename)
	return nil
}
