package harness

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/report"
)

const captureTimeout = 10 * time.Second

// Recorder captures screenshots into the session's evidence directory and
// attaches them to a report sink.
type Recorder struct {
	// Sink receives attachments from Evidence. Nil skips attaching.
	Sink report.Sink
}

// Capture writes the current page as {evidence dir}/{name}.png, replacing any
// earlier capture with the same name.
func (r Recorder) Capture(ctx context.Context, s *Session, name string) (artifact.Artifact, error) {
	if err := artifact.ValidateName(name); err != nil {
		return artifact.Artifact{}, err
	}
	png, err := s.driver.Screenshot(ctx)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("capture %s: %w", name, err)
	}
	a, err := s.store.Save(name, png)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("capture %s: %w", name, err)
	}
	return a, nil
}

// Attach adds the artifact's bytes to sink as an image/png attachment.
func (r Recorder) Attach(sink report.Sink, a artifact.Artifact, name string) error {
	if sink == nil {
		return nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return fmt.Errorf("attach %s: %w", name, err)
	}
	return sink.Attach(name, artifact.ContentType, data)
}

// Evidence captures and attaches name without ever failing the caller: any
// error or panic is logged and reported through ok=false. It runs on a fresh
// deadline so it still works after the step's own context expired.
func (r Recorder) Evidence(ctx context.Context, s *Session, name string) (a artifact.Artifact, ok bool) {
	logger := s.logger.With("evidence", name)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("evidence capture failed", "panic", p)
			a, ok = artifact.Artifact{}, false
		}
	}()

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	a, err := r.Capture(cctx, s, name)
	if err != nil {
		logger.Error("evidence capture failed", "error", err)
		return artifact.Artifact{}, false
	}
	if err := r.Attach(r.Sink, a, name); err != nil {
		logger.Warn("evidence attach failed", "path", a.Path, "error", err)
	}
	logger.Info("evidence captured", "path", a.Path)
	return a, true
}

type recorderKey struct{}

func withRecorder(ctx context.Context, r Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// StepEvidence captures name in the middle of a step body. Inside RunStep the
// capture is attached to the running step; elsewhere it is only written to disk.
func StepEvidence(ctx context.Context, s *Session, name string) (artifact.Artifact, bool) {
	r, _ := ctx.Value(recorderKey{}).(Recorder)
	return r.Evidence(ctx, s, name)
}

// EvidenceName turns a step label into a file-safe evidence name,
// e.g. "Click Main Menu" -> "click_main_menu".
func EvidenceName(label string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		return "step"
	}
	if len(name) > 100 {
		name = strings.TrimSuffix(name[:100], "_")
	}
	return name
}

// ErrorEvidenceName is the evidence name captured when a step fails.
func ErrorEvidenceName(name string) string {
	return name + "_error"
}
