package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/govqa/portalharness/internal/report"
)

func waitForClients(t *testing.T, b *Broker, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d; want %d", b.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBrokerObservePublishesOnScenarioFeed(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	b.Observe(report.Event{Type: report.EventStepFinished, Suite: "approver-menu", Step: "approve", Status: report.StatusPassed})

	select {
	case evt := <-ch:
		if evt.Feed != "approver-menu" || evt.Type != "step_finished" {
			t.Fatalf("event = %+v", evt)
		}
		var got report.Event
		if err := json.Unmarshal([]byte(evt.Payload), &got); err != nil {
			t.Fatalf("Unmarshal() = %v", err)
		}
		if got.Step != "approve" || got.Status != report.StatusPassed {
			t.Fatalf("payload = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestBrokerDropsForSlowSubscribers(t *testing.T) {
	b := NewBroker()
	id, _ := b.Subscribe()
	defer b.Unsubscribe(id)
	for i := 0; i < subscriberBufSize+5; i++ {
		b.Publish(Event{Feed: "f", Payload: "x"})
	}
	if got := b.Dropped(); got != 5 {
		t.Fatalf("Dropped() = %d; want 5", got)
	}
	b.Unsubscribe(id)
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d; want 0", b.ClientCount())
	}
}

func TestSSEHandlerFiltersFeeds(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?feeds=creator-menu", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	waitForClients(t, b, 1)

	b.Publish(Event{Feed: "approver-menu", Type: "step_started", Payload: `{"skip":true}`})
	b.Publish(Event{Feed: "creator-menu", Type: "step_started", Payload: `{"keep":true}`})

	r := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString() = %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: step_started" || lines[1] != `data: {"keep":true}` {
		t.Fatalf("lines = %q", lines)
	}
}

func TestWSHandlerStreamsTextFrames(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(WSHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?feeds=creator-pages"
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("ws.Dial() = %v", err)
	}
	defer conn.Close()
	waitForClients(t, b, 1)

	b.Publish(Event{Feed: "other", Payload: "no"})
	b.Publish(Event{Feed: "creator-pages", Payload: `{"type":"case_finished"}`})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("ReadServerText() = %v", err)
	}
	if string(data) != `{"type":"case_finished"}` {
		t.Fatalf("frame = %q", data)
	}
}
