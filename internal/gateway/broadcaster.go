package gateway

import (
	"strconv"
	"time"

	"energy-dashboard/internal/events"
)

// Broadcaster constructs envelope JSON and sends it to every client.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast stamps e with the next hub sequence number and sends it to all
// clients. Slow clients whose queue is full miss the envelope and can
// recover it through the replay buffer on reconnect.
func (b *Broadcaster) Broadcast(e events.Event) {
	now := b.now().UTC()
	if !e.TS.IsZero() {
		if d := now.Sub(e.TS); d >= 0 {
			b.hub.Latency.RecordDuration(d)
		}
	}

	h := b.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	buf := buildEnvelope(e, now, h.seq)
	h.latest = buf
	h.replay.Push(h.seq, buf)

	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts {"type":...,"data":...,"ts":"...","seq":N}.
func buildEnvelope(e events.Event, now time.Time, seq int64) []byte {
	data := e.JSON()
	buf := make([]byte, 0, len(data)+len(e.Type)+96)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, string(e.Type)...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}
