package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/govqa/portalharness/internal/report"
)

// Phase is a point in a scenario's lifecycle.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseSessionAcquired
	PhaseStepRunning
	PhaseStepPassed
	PhaseStepFailed
	PhaseSessionReleased
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseSessionAcquired:
		return "SessionAcquired"
	case PhaseStepRunning:
		return "StepRunning"
	case PhaseStepPassed:
		return "StepPassed"
	case PhaseStepFailed:
		return "StepFailed"
	case PhaseSessionReleased:
		return "SessionReleased"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Case is one named test case: its steps run in order and the case stops at
// the first failing step.
type Case struct {
	Name    string
	Feature string
	Story   string
	Steps   []Step
}

// StepCase wraps a single step as a case named and classified after the step.
func StepCase(step Step) Case {
	return Case{Name: step.Label, Feature: step.Feature, Story: step.Story, Steps: []Step{step}}
}

// Scenario is an ordered list of cases sharing one session.
type Scenario struct {
	Name  string
	Cases []Case
}

// Validate rejects unnamed, duplicate-named and empty cases.
func (sc Scenario) Validate() error {
	if sc.Name == "" {
		return errors.New("scenario has no name")
	}
	seen := make(map[string]bool, len(sc.Cases))
	for i, c := range sc.Cases {
		if c.Name == "" {
			return fmt.Errorf("scenario %s: case %d has no name", sc.Name, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("scenario %s: duplicate case name %q", sc.Name, c.Name)
		}
		seen[c.Name] = true
		if len(c.Steps) == 0 {
			return fmt.Errorf("scenario %s: case %q has no steps", sc.Name, c.Name)
		}
		for _, st := range c.Steps {
			if st.Body == nil {
				return fmt.Errorf("scenario %s: step %q of case %q has no body", sc.Name, st.Label, c.Name)
			}
		}
	}
	return nil
}

// CaseReport is the per-case report a scenario writes into.
type CaseReport interface {
	report.Sink
	Finish(status report.Status, err error) error
	UUID() string
}

// Reports opens a CaseReport for case c of suite.
type Reports func(suite string, c Case) CaseReport

// WriterReports reports cases through w.
func WriterReports(w *report.Writer) Reports {
	if w == nil {
		return nil
	}
	return func(suite string, c Case) CaseReport {
		return w.StartCase(suite, c.Name, report.Tags{Feature: c.Feature, Story: c.Story})
	}
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name       string
	Status     report.Status
	Err        error
	Steps      []StepResult
	ResultUUID string
}

// RunResult is the outcome of a scenario run.
type RunResult struct {
	Scenario  string
	SessionID string
	// Err is set when the scenario could not start at all.
	Err      error
	Cases    []CaseResult
	Phases   []Phase
	Duration time.Duration
}

// Passed counts passed cases.
func (r RunResult) Passed() int {
	n := 0
	for _, c := range r.Cases {
		if c.Status == report.StatusPassed {
			n++
		}
	}
	return n
}

// Failed counts cases that did not pass.
func (r RunResult) Failed() int {
	return len(r.Cases) - r.Passed()
}

// OK reports whether the scenario started and every case passed.
func (r RunResult) OK() bool {
	return r.Err == nil && r.Failed() == 0
}

// Run acquires a session, runs every case in order and releases the session
// exactly once. A failed case does not stop later cases.
func (sc Scenario) Run(ctx context.Context, m *Manager, reports Reports) RunResult {
	return sc.run(ctx, m, reports, func(_ string, body func() CaseResult) { body() })
}

// RunTest runs the scenario with each case as a subtest of t. Failing cases
// fail their subtest; a scenario that cannot start fails t.
func (sc Scenario) RunTest(t *testing.T, m *Manager, reports Reports) RunResult {
	t.Helper()
	res := sc.run(t.Context(), m, reports, func(name string, body func() CaseResult) {
		t.Run(name, func(t *testing.T) {
			if cr := body(); cr.Err != nil {
				t.Errorf("%s: %v", cr.Status, cr.Err)
			}
		})
	})
	if res.Err != nil {
		t.Fatalf("scenario %s did not start: %v", sc.Name, res.Err)
	}
	return res
}

func (sc Scenario) run(ctx context.Context, m *Manager, reports Reports, each func(name string, body func() CaseResult)) (res RunResult) {
	start := time.Now()
	res = RunResult{Scenario: sc.Name, Phases: []Phase{PhaseNotStarted}}
	logger := m.cfg.Logger.With("scenario", sc.Name)
	defer func() {
		res.Duration = time.Since(start)
		logger.Info("scenario finished",
			"passed", res.Passed(), "failed", res.Failed(), "duration", res.Duration.Round(time.Millisecond))
	}()

	if err := sc.Validate(); err != nil {
		res.Err = err
		logger.Error("invalid scenario", "error", err)
		return res
	}

	s, err := m.Acquire(ctx)
	if err != nil {
		res.Err = err
		logger.Error("session start failed", "kind", string(KindOf(err)), "error", err)
		return res
	}
	res.SessionID = s.ID
	res.Phases = append(res.Phases, PhaseSessionAcquired)
	defer func() {
		_ = m.Release(s)
		res.Phases = append(res.Phases, PhaseSessionReleased)
	}()

	for _, c := range sc.Cases {
		each(c.Name, func() CaseResult {
			cr := sc.runCase(ctx, s, reports, c, &res.Phases)
			res.Cases = append(res.Cases, cr)
			return cr
		})
	}
	return res
}

func (sc Scenario) runCase(ctx context.Context, s *Session, reports Reports, c Case, phases *[]Phase) CaseResult {
	var rep CaseReport
	if reports != nil {
		rep = reports(sc.Name, c)
	}
	runner := Runner{Recorder: Recorder{Sink: rep}}
	cr := CaseResult{Name: c.Name, Status: report.StatusPassed}
	if rep != nil {
		cr.ResultUUID = rep.UUID()
	}

	if err := ctx.Err(); err != nil {
		cr.Status = report.StatusSkipped
		cr.Err = fmt.Errorf("case %s not run: %w", c.Name, err)
	} else {
		for _, st := range c.Steps {
			*phases = append(*phases, PhaseStepRunning)
			r := runner.RunStep(ctx, s, st)
			cr.Steps = append(cr.Steps, r)
			if r.Err != nil {
				*phases = append(*phases, PhaseStepFailed)
				cr.Status = r.Status
				cr.Err = r.Err
				break
			}
			*phases = append(*phases, PhaseStepPassed)
		}
	}

	if rep != nil {
		if err := rep.Finish(cr.Status, cr.Err); err != nil {
			s.logger.Warn("failed to write case result", "case", c.Name, "error", err)
		}
	}
	s.logger.Info("case finished", "case", c.Name, "status", string(cr.Status))
	return cr
}
