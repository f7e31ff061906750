package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a result uuid is unknown.
var ErrNotFound = errors.New("result not found")

// ErrInvalidID is returned by LoadResult for ids that are not canonical uuids.
var ErrInvalidID = errors.New("invalid result id")

// Sink receives the steps and attachments of one case.
type Sink interface {
	StartStep(name string)
	FinishStep(name string, status Status, err error)
	Attach(name, contentType string, data []byte) error
}

// Writer writes results into an Allure results directory.
type Writer struct {
	dir string

	mu        sync.RWMutex
	observers []Observer

	now func() time.Time
}

// NewWriter creates a Writer and ensures the directory exists.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: mkdir %s: %w", dir, err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Dir returns the results directory.
func (w *Writer) Dir() string { return w.dir }

// AddObserver registers o for every later event.
func (w *Writer) AddObserver(o Observer) {
	w.mu.Lock()
	w.observers = append(w.observers, o)
	w.mu.Unlock()
}

func (w *Writer) publish(e Event) {
	w.mu.RLock()
	obs := append([]Observer(nil), w.observers...)
	w.mu.RUnlock()
	for _, o := range obs {
		o.Observe(e)
	}
}

// Tags classify a case for the report's behaviors view.
type Tags struct {
	Feature string
	Story   string
}

func (t Tags) labels() []Label {
	var out []Label
	if t.Feature != "" {
		out = append(out, Label{Name: "feature", Value: t.Feature})
	}
	if t.Story != "" {
		out = append(out, Label{Name: "story", Value: t.Story})
	}
	return out
}

// StartCase opens a result for one case of suite.
func (w *Writer) StartCase(suite, name string, tags Tags) *Case {
	now := w.now()
	c := &Case{
		w: w,
		result: TestResult{
			UUID:      uuid.NewString(),
			HistoryID: suite + "." + name,
			Name:      name,
			FullName:  suite + "." + name,
			Stage:     StageRunning,
			Start:     millis(now),
			Labels: []Label{
				{Name: "suite", Value: suite},
				{Name: "framework", Value: "portalharness"},
				{Name: "language", Value: "go"},
			},
		},
	}
	c.result.Labels = append(c.result.Labels, tags.labels()...)
	w.publish(c.event(EventCaseStarted))
	return c
}

// Case accumulates one TestResult. It is not safe for concurrent use.
type Case struct {
	w      *Writer
	result TestResult
	open   []*StepResult
	done   bool
}

// UUID returns the result id.
func (c *Case) UUID() string { return c.result.UUID }

// Result returns a copy of the result so far.
func (c *Case) Result() TestResult { return c.result }

func (c *Case) event(t EventType) Event {
	return Event{
		Type:       t,
		Time:       c.w.now().UTC(),
		Suite:      c.result.Label("suite"),
		Case:       c.result.Name,
		ResultUUID: c.result.UUID,
	}
}

// StartStep opens a step nested under the currently open step, if any.
func (c *Case) StartStep(name string) {
	c.open = append(c.open, &StepResult{
		Name:  name,
		Stage: StageRunning,
		Start: millis(c.w.now()),
	})
	e := c.event(EventStepStarted)
	e.Step = name
	c.w.publish(e)
}

// FinishStep closes the innermost open step.
func (c *Case) FinishStep(name string, status Status, err error) {
	if len(c.open) == 0 {
		slog.Warn("report: finish without open step", "case", c.result.Name, "step", name)
		return
	}
	step := c.open[len(c.open)-1]
	c.open = c.open[:len(c.open)-1]
	step.Status = status
	step.Stage = StageFinished
	step.Stop = millis(c.w.now())
	if err != nil {
		step.StatusDetails = &StatusDetails{Message: err.Error()}
	}
	if len(c.open) > 0 {
		parent := c.open[len(c.open)-1]
		parent.Steps = append(parent.Steps, *step)
	} else {
		c.result.Steps = append(c.result.Steps, *step)
	}

	e := c.event(EventStepFinished)
	e.Step = name
	e.Status = status
	if err != nil {
		e.Message = err.Error()
	}
	c.w.publish(e)
}

// Attach writes data as <uuid>-attachment.<ext> and links it to the open step, or to the case.
func (c *Case) Attach(name, contentType string, data []byte) error {
	source := uuid.NewString() + "-attachment" + extension(contentType)
	if err := os.WriteFile(filepath.Join(c.w.dir, source), data, 0o644); err != nil {
		return fmt.Errorf("report: write attachment %s: %w", name, err)
	}
	a := Attachment{Name: name, Source: source, Type: contentType}
	if len(c.open) > 0 {
		step := c.open[len(c.open)-1]
		step.Attachments = append(step.Attachments, a)
	} else {
		c.result.Attachments = append(c.result.Attachments, a)
	}

	e := c.event(EventAttachment)
	e.Attachment = name
	c.w.publish(e)
	return nil
}

// Finish closes any open steps as broken, then writes <uuid>-result.json.
func (c *Case) Finish(status Status, err error) error {
	if c.done {
		return nil
	}
	c.done = true
	for len(c.open) > 0 {
		c.FinishStep(c.open[len(c.open)-1].Name, StatusBroken, errors.New("step not finished"))
	}
	c.result.Status = status
	c.result.Stage = StageFinished
	c.result.Stop = millis(c.w.now())
	if err != nil {
		c.result.StatusDetails = &StatusDetails{Message: err.Error()}
	}

	data, mErr := json.MarshalIndent(c.result, "", "  ")
	if mErr != nil {
		return fmt.Errorf("report: marshal result: %w", mErr)
	}
	path := filepath.Join(c.w.dir, c.result.UUID+"-result.json")
	if wErr := os.WriteFile(path, data, 0o644); wErr != nil {
		return fmt.Errorf("report: write result: %w", wErr)
	}

	e := c.event(EventCaseFinished)
	e.Status = status
	if err != nil {
		e.Message = err.Error()
	}
	c.w.publish(e)
	return nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "application/json":
		return ".json"
	case "text/plain":
		return ".txt"
	default:
		return ""
	}
}

// LoadResults reads every <uuid>-result.json in dir, newest first.
func LoadResults(dir string) ([]TestResult, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*-result.json"))
	if err != nil {
		return nil, fmt.Errorf("report: glob: %w", err)
	}
	out := make([]TestResult, 0, len(matches))
	for _, path := range matches {
		r, err := readResult(path)
		if err != nil {
			slog.Debug("report: skipping unreadable result", "path", path, "error", err)
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].UUID < out[j].UUID
		}
		return out[i].Start > out[j].Start
	})
	return out, nil
}

// LoadResult reads the result with the given uuid.
func LoadResult(dir, id string) (TestResult, error) {
	if u, err := uuid.Parse(id); err != nil || u.String() != id {
		return TestResult{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	r, err := readResult(filepath.Join(dir, id+"-result.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TestResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return TestResult{}, err
	}
	return r, nil
}

func readResult(path string) (TestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TestResult{}, err
	}
	var r TestResult
	if err := json.Unmarshal(data, &r); err != nil {
		return TestResult{}, fmt.Errorf("report: unmarshal %s: %w", path, err)
	}
	return r, nil
}
