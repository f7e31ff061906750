// Package notify pushes a short run summary to an ntfy-style endpoint.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/govqa/portalharness/internal/harness"
)

// Send posts message as plain text to endpoint.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return errors.New("ntfy notification: empty endpoint")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Summary renders one line of totals followed by one line per failed case
// or scenario that could not start.
func Summary(results []harness.RunResult) string {
	var okScenarios, passed, failed int
	var lines []string
	for _, r := range results {
		if r.OK() {
			okScenarios++
		}
		passed += r.Passed()
		failed += r.Failed()
		if r.Err != nil {
			lines = append(lines, fmt.Sprintf("FAIL %s: %v", r.Scenario, r.Err))
		}
		for _, c := range r.Cases {
			if c.Err != nil {
				lines = append(lines, fmt.Sprintf("FAIL %s / %s: %v", r.Scenario, c.Name, c.Err))
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "portal run: %d/%d scenarios passed, %d cases passed, %d failed", okScenarios, len(results), passed, failed)
	for _, l := range lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}
