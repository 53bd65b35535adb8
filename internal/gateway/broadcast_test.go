package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"energy-dashboard/internal/events"
)

// envelope is the parsed WS message structure.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	TS   string          `json:"ts"`
	Seq  int64           `json:"seq"`
}

func TestBuildEnvelope(t *testing.T) {
	ev := events.Event{
		Type:     events.TypeRefresh,
		Seq:      3,
		TS:       time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC),
		Deals:    1200,
		Products: 14,
	}
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)

	buf := buildEnvelope(ev, now, 42)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Type != "refresh" {
		t.Errorf("type: got %q, want refresh", env.Type)
	}
	if env.Seq != 42 {
		t.Errorf("seq: got %d, want 42", env.Seq)
	}
	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil || !parsed.Equal(now) {
		t.Errorf("ts: got %q (%v), want %v", env.TS, err, now)
	}

	got, err := events.Decode(env.Data)
	if err != nil {
		t.Fatalf("data is not an event: %v", err)
	}
	if got.Seq != 3 || got.Deals != 1200 || got.Products != 14 {
		t.Errorf("data round trip: %+v", got)
	}
}

func TestBroadcast_SequencesAndLatency(t *testing.T) {
	hub := NewHub(nil, nil, 4, nil)
	now := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	hub.Broadcaster.now = func() time.Time { return now }

	c := &Client{send: make(chan []byte, 8), hub: hub}
	hub.clients[c] = true

	for i := 0; i < 3; i++ {
		hub.Broadcaster.Broadcast(events.Event{Type: events.TypeRefresh, TS: now.Add(-250 * time.Millisecond)})
	}

	if hub.Seq() != 3 {
		t.Fatalf("Seq() = %d, want 3", hub.Seq())
	}
	if len(c.send) != 3 {
		t.Fatalf("client queued %d envelopes, want 3", len(c.send))
	}
	for want := int64(1); want <= 3; want++ {
		var env envelope
		if err := json.Unmarshal(<-c.send, &env); err != nil {
			t.Fatal(err)
		}
		if env.Seq != want {
			t.Errorf("seq = %d, want %d", env.Seq, want)
		}
	}

	st := hub.Stats()
	if st.Buffered != 3 || st.Clients != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.LatencyP50 != 250 {
		t.Errorf("p50 latency = %f ms, want 250", st.LatencyP50)
	}
}

func TestBroadcast_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil, 4, nil)
	c := &Client{send: make(chan []byte, 1), hub: hub}
	hub.clients[c] = true

	hub.Broadcaster.Broadcast(events.Event{Type: events.TypeRefresh})
	hub.Broadcaster.Broadcast(events.Event{Type: events.TypeRefreshFailed})

	if len(c.send) != 1 {
		t.Fatalf("queued %d, want 1", len(c.send))
	}
	if hub.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", hub.Seq())
	}
}

func TestSendInitialState(t *testing.T) {
	hub := NewHub(nil, nil, 3, nil)
	for i := 0; i < 5; i++ {
		hub.Broadcaster.Broadcast(events.Event{Type: events.TypeRefresh})
	}

	seqs := func(lastSeq int64) []int64 {
		c := &Client{send: make(chan []byte, 8), hub: hub}
		hub.mu.Lock()
		c.sendInitialState(lastSeq)
		hub.mu.Unlock()
		close(c.send)
		var out []int64
		for msg := range c.send {
			var env envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				t.Fatal(err)
			}
			out = append(out, env.Seq)
		}
		return out
	}

	tests := []struct {
		name    string
		lastSeq int64
		want    []int64
	}{
		{"fresh client gets latest", 0, []int64{5}},
		{"resume within window", 3, []int64{4, 5}},
		{"gap beyond window gets latest", 1, []int64{5}},
		{"up to date", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seqs(tt.lastSeq)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
