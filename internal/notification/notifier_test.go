package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	got []Alert
	err error
}

func (r *recordingNotifier) Send(_ context.Context, a Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("down")}
	last := &recordingNotifier{}

	err := Multi{ok, bad, last}.Send(context.Background(), Alert{Level: AlertWarning, Title: "refresh failing"})

	require.Error(t, err)
	assert.ErrorIs(t, err, bad.err)
	assert.Len(t, ok.got, 1)
	assert.Len(t, last.got, 1, "a failing notifier must not stop the others")
	assert.False(t, ok.got[0].TS.IsZero(), "timestamp filled in")
}

func TestLogNotifier_LevelMapping(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLogNotifier(l)

	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertCritical, Title: "down", Message: "3 failures"}))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "down", rec["msg"])
	assert.Equal(t, "3 failures", rec["message"])
}

func TestWebhookNotifier_Send(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Level: AlertInfo, Title: "recovered", TS: ts})
	require.NoError(t, err)
	assert.Equal(t, "INFO", payload["level"])
	assert.Equal(t, "recovered", payload["title"])
	assert.Equal(t, "2025-03-04T05:06:07Z", payload["ts"])
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestTelegramNotifier_Send(t *testing.T) {
	var path string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiURL = srv.URL
	require.NoError(t, n.Send(context.Background(), Alert{Level: AlertWarning, Title: "refresh_failed", Message: "v1.2"}))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Contains(t, payload["text"], `refresh\_failed`)
	assert.Contains(t, payload["text"], `v1\.2`)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\!`, escapeMarkdown("a_b*c!"))
	assert.Equal(t, "plain", escapeMarkdown("plain"))
}
