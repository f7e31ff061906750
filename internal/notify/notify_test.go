package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/govqa/portalharness/internal/harness"
	"github.com/govqa/portalharness/internal/report"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const testMessage = "portal run: 1/1 scenarios passed, 4 cases passed, 0 failed"

func TestSendPostsSummary(t *testing.T) {
	ctx := context.Background()

	var receivedMethod string
	var receivedPath string
	var receivedBody string
	var receivedContentType string

	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			receivedMethod = r.Method
			receivedPath = r.URL.Path
			receivedContentType = r.Header.Get("Content-Type")
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("ok")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if err := Send(ctx, client, "http://example.com/notifications", testMessage); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got, want := receivedMethod, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := receivedPath, "/notifications"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := receivedContentType, "text/plain"; got != want {
		t.Fatalf("content-type = %q; want %q", got, want)
	}
	if got, want := receivedBody, testMessage; got != want {
		t.Fatalf("body = %q; want %q", got, want)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	ctx := context.Background()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(ctx, client, "http://example.com/notifications", testMessage)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "ntfy notification failed")
	}
}

func TestSendDisallowsMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	err := Send(ctx, http.DefaultClient, "", testMessage)
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestSummaryListsFailures(t *testing.T) {
	results := []harness.RunResult{
		{
			Scenario: "creator-menu",
			Cases: []harness.CaseResult{
				{Name: "open application", Status: report.StatusPassed},
				{Name: "click main menu", Status: report.StatusBroken, Err: errors.New("LOCATE_TIMEOUT: Main Menu")},
			},
		},
		{Scenario: "approver-menu", Err: errors.New("SESSION_START: no browser")},
		{
			Scenario: "moderator-menu",
			Cases:    []harness.CaseResult{{Name: "open application", Status: report.StatusPassed}},
		},
	}

	got := Summary(results)
	want := "portal run: 1/3 scenarios passed, 2 cases passed, 1 failed\n" +
		"FAIL creator-menu / click main menu: LOCATE_TIMEOUT: Main Menu\n" +
		"FAIL approver-menu: SESSION_START: no browser"
	if got != want {
		t.Fatalf("Summary() = %q; want %q", got, want)
	}
}
