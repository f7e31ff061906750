package harness

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/report"
)

// Step is a labeled, reportable unit of scenario action.
type Step struct {
	Label string
	// Feature and Story classify the step in the report.
	Feature string
	Story   string
	// Evidence is captured after the body succeeds. Empty skips the success
	// capture; failures are always captured as <name>_error, where name
	// defaults to EvidenceName(Label).
	Evidence string
	Body     func(ctx context.Context, s *Session) error
}

// StepResult is the outcome of one step.
type StepResult struct {
	Label    string
	Status   report.Status
	Err      error
	Evidence []artifact.Artifact
	Duration time.Duration
}

// Runner executes steps against a session, capturing evidence and reporting
// each step to the recorder's sink.
type Runner struct {
	Recorder Recorder
}

// RunStep runs step once. A failing step is logged with its label, gets an
// error-named screenshot, and is returned in the result; it is never swallowed.
func (r Runner) RunStep(ctx context.Context, s *Session, step Step) StepResult {
	start := time.Now()
	res := StepResult{Label: step.Label}
	logger := s.logger.With("step", step.Label)

	if sink := r.Recorder.Sink; sink != nil {
		sink.StartStep(step.Label)
	}
	logger.Debug("step started")

	err := runBody(withRecorder(ctx, r.Recorder), s, step)
	res.Duration = time.Since(start)
	res.Status = StatusFor(err)

	name := step.Evidence
	if name == "" {
		name = EvidenceName(step.Label)
	}
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", step.Label, err)
		logger.Error("step failed", "kind", string(KindOf(err)), "error", err, "duration", res.Duration)
		if a, ok := r.Recorder.Evidence(ctx, s, ErrorEvidenceName(name)); ok {
			res.Evidence = append(res.Evidence, a)
		}
	} else {
		if step.Evidence != "" {
			if a, ok := r.Recorder.Evidence(ctx, s, name); ok {
				res.Evidence = append(res.Evidence, a)
			}
		}
		logger.Info("step passed", "duration", res.Duration)
	}

	if sink := r.Recorder.Sink; sink != nil {
		sink.FinishStep(step.Label, res.Status, err)
	}
	return res
}

func runBody(ctx context.Context, s *Session, step Step) (err error) {
	if step.Body == nil {
		return newError(KindInteraction, "run step", "step has no body", nil)
	}
	defer func() {
		if p := recover(); p != nil {
			err = newError(KindInteraction, "run step", fmt.Sprintf("panic: %v", p), nil)
			s.logger.Debug("step panic", "step", step.Label, "stack", string(debug.Stack()))
		}
	}()
	return step.Body(ctx, s)
}
