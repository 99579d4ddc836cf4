package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cn3rd/bcsync/internal/session"
)

type stubStore struct{}

func (stubStore) Load() ([]*http.Cookie, error) {
	return []*http.Cookie{{Name: "identity", Value: "secret", Domain: "bandcamp.com", Path: "/"}}, nil
}
func (stubStore) Save([]*http.Cookie) error { return nil }

func newTestFetcher(t *testing.T, policy Policy) *Fetcher {
	t.Helper()
	sess, err := session.New(stubStore{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	return New(sess, policy, 0, zerolog.Nop())
}

func quickPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Cooldown: time.Millisecond, Exponent: 2.0}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{Cooldown: time.Second, Exponent: 2.0}
	if got := p.Backoff(0); got != time.Second {
		t.Errorf("Backoff(0) = %v, want 1s", got)
	}
	if got := p.Backoff(2); got != 4*time.Second {
		t.Errorf("Backoff(2) = %v, want 4s", got)
	}

	p.Jitter = 0.3
	for n := 0; n < 3; n++ {
		for i := 0; i < 50; i++ {
			d := p.Backoff(n)
			lo := time.Duration(float64(time.Second) * pow2(n) * 0.7)
			hi := time.Duration(float64(time.Second) * pow2(n) * 1.3)
			if d < lo || d > hi {
				t.Fatalf("Backoff(%d) = %v, outside [%v, %v]", n, d, lo, hi)
			}
		}
	}
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

func TestFetcher_TextRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "recovered")
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(3))
	got, err := f.Text(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if got != "recovered" {
		t.Errorf("body = %q, want %q", got, "recovered")
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}
}

func TestFetcher_TextGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(3))
	_, err := f.Text(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d requests, want 3", calls.Load())
	}

	var fe *Error
	if !errors.As(err, &fe) || fe.Status != http.StatusInternalServerError {
		t.Errorf("error %v does not wrap the final status failure", err)
	}
}

func TestFetcher_TextNonTransientFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(3))
	_, err := f.Text(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if IsTransient(err) {
		t.Error("404 should not be transient")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", calls.Load())
	}
}

func TestFetcher_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(3))
	_, err := f.Text(context.Background(), server.URL)
	if !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("got %v, want ErrNotAuthenticated", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", calls.Load())
	}
}

func TestFetcher_RetryAfterHonored(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(2))
	start := time.Now()
	_, err := f.Text(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("retried after %v, want at least the Retry-After second", elapsed)
	}
}

func TestFetcher_PostJSON(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(1))
	payload := []byte(`{"fan_id":42}`)
	resp, err := f.PostJSON(context.Background(), server.URL, payload)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if !bytes.Equal(gotBody, payload) {
		t.Errorf("server saw body %q, want %q", gotBody, payload)
	}
	if string(resp) != `{"ok":true}` {
		t.Errorf("response = %q", resp)
	}
}

func TestFetcher_ContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Length", "12345")
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(1))
	n, err := f.ContentLength(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ContentLength failed: %v", err)
	}
	if n != 12345 {
		t.Errorf("ContentLength = %d, want 12345", n)
	}
}

func TestFetcher_Download(t *testing.T) {
	content := bytes.Repeat([]byte("audio"), 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(1))
	var buf bytes.Buffer
	n, err := f.Download(context.Background(), server.URL, &buf)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("wrote %d bytes, want %d", n, len(content))
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Error("downloaded content does not match")
	}
}

func TestFetcher_DownloadStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := newTestFetcher(t, quickPolicy(1))
	var buf bytes.Buffer
	_, err := f.Download(context.Background(), server.URL, &buf)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !IsTransient(err) {
		t.Errorf("503 should be transient, got %v", err)
	}
}

func TestFetcher_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, Policy{MaxAttempts: 5, Cooldown: time.Minute, Exponent: 2.0})
	_, err := f.Text(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
