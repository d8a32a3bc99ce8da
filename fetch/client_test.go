package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestClientFetchesAndWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.json")
	c := NewClient(WithMaxInFlight(2), WithPerHostCap(2))

	events := drain(c.Run(context.Background(), []Request{{URL: srv.URL, Dest: dest}}))

	var completed int
	for _, e := range events {
		if e.Kind == EventCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestClientSkipsWhenSizeMatches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(dest, []byte("hello"), 0o644))

	c := NewClient()
	events := drain(c.Run(context.Background(), []Request{{URL: srv.URL, Dest: dest, ExpectedSize: 5}}))

	var skipped int
	for _, e := range events {
		if e.Kind == EventSkipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
	assert.EqualValues(t, 0, atomic.LoadInt32(&hits))
}

func TestClientFailsPermanentlyOn404WithoutRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewClient(WithRetry(3, time.Millisecond, 5*time.Millisecond))
	events := drain(c.Run(context.Background(), []Request{{URL: srv.URL, Dest: filepath.Join(dir, "x")}}))

	var failed Event
	for _, e := range events {
		if e.Kind == EventFailed {
			failed = e
		}
	}
	require.NotNil(t, failed.Err)
	assert.Equal(t, 1, failed.Attempts, "4xx other than 429 must be terminal, no retries")
}

func TestBackoffDelayRespectsCap(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(attempt, 100*time.Millisecond, time.Second)
		assert.LessOrEqual(t, d, time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}
