package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/tappy/internal/store"
)

type recordingRelay struct {
	name  string
	err   error
	delay time.Duration

	mu   sync.Mutex
	got  []int64
	done bool
}

func (r *recordingRelay) Name() string { return r.name }

func (r *recordingRelay) Deliver(ctx context.Context, n *store.Notification) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.got = append(r.got, n.ID)
	r.mu.Unlock()
	return r.err
}

func (r *recordingRelay) Close() error {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	return nil
}

type failures struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *failures) RelayFailed(relay string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[relay]++
}

func TestDispatchReachesEveryRelay(t *testing.T) {
	obs := &failures{}
	gw := NewGateway(time.Second, obs, zap.NewNop())
	ok := &recordingRelay{name: "ok", delay: 20 * time.Millisecond}
	bad := &recordingRelay{name: "bad", err: errors.New("boom")}
	gw.Register(ok)
	gw.Register(bad)

	start := time.Now()
	gw.Dispatch(&store.Notification{ID: 1})
	if time.Since(start) > 15*time.Millisecond {
		t.Error("Dispatch blocked on a slow relay")
	}

	if err := gw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(ok.got) != 1 || len(bad.got) != 1 {
		t.Fatalf("deliveries ok=%v bad=%v", ok.got, bad.got)
	}
	if !ok.done || !bad.done {
		t.Error("relays not closed")
	}
	if obs.counts["bad"] != 1 || obs.counts["ok"] != 0 {
		t.Errorf("failures = %v", obs.counts)
	}

	gw.Dispatch(&store.Notification{ID: 2})
	if len(ok.got) != 1 {
		t.Error("dispatch after Close was delivered")
	}
}

func TestDispatchTimeout(t *testing.T) {
	obs := &failures{}
	gw := NewGateway(10*time.Millisecond, obs, zap.NewNop())
	gw.Register(&recordingRelay{name: "slow", delay: time.Second})

	gw.Dispatch(&store.Notification{ID: 3})
	gw.Close()

	if obs.counts["slow"] != 1 {
		t.Errorf("failures = %v", obs.counts)
	}
}

func TestSlackRelay(t *testing.T) {
	var channel, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		channel = r.FormValue("channel")
		text = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	relay := NewSlackRelay("xoxb-test", "C123", srv.URL+"/", zap.NewNop())
	n := &store.Notification{
		ID:      4,
		Title:   "📅 Calendar Event Ready",
		Message: "Meeting with Alex",
		Links:   []store.Link{{Label: "Open link", URL: "https://calendar.google.com/x"}},
	}
	if err := relay.Deliver(context.Background(), n); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if channel != "C123" {
		t.Errorf("channel = %q", channel)
	}
	want := "📅 Calendar Event Ready\nMeeting with Alex\nOpen link: https://calendar.google.com/x"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestSlackRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	relay := NewSlackRelay("xoxb-test", "nope", srv.URL+"/", zap.NewNop())
	err := relay.Deliver(context.Background(), &store.Notification{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("err = %v", err)
	}
}

func TestDiscordMessage(t *testing.T) {
	n := &store.Notification{
		Title:     strings.Repeat("t", 300),
		Message:   "body",
		Excerpt:   "journal text",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Links:     []store.Link{{Label: "Watch", URL: "https://youtube.com/watch?v=1"}},
	}
	msg := discordMessage(n)
	if len(msg.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(msg.Embeds))
	}
	e := msg.Embeds[0]
	if len(e.Title) != 256 || e.Description != "body" {
		t.Errorf("title len %d desc %q", len(e.Title), e.Description)
	}
	if e.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}
	if len(e.Fields) != 1 || e.Fields[0].Value != "https://youtube.com/watch?v=1" {
		t.Errorf("fields = %+v", e.Fields)
	}
	if e.Footer == nil || e.Footer.Text != "journal text" {
		t.Errorf("footer = %+v", e.Footer)
	}
}
