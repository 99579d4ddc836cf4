package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cn3rd/bcsync/internal/session"
)

// Policy is the shared retry policy: attempt cap, exponential backoff
// and jitter bounds. It is read-only after initialization and shared by
// page fetches and file transfers.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Cooldown is the base delay before the first retry.
	Cooldown time.Duration

	// Exponent grows the delay per retry: Cooldown * Exponent^n.
	Exponent float64

	// Jitter is the random variance fraction applied to each delay,
	// in [0, 1]. A delay d becomes d * (1 ± Jitter).
	Jitter float64
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Cooldown:    time.Second,
		Exponent:    2.0,
		Jitter:      0.3,
	}
}

// Backoff returns the jittered delay to wait before retry n (0-based).
func (p Policy) Backoff(n int) time.Duration {
	d := float64(p.Cooldown) * math.Pow(p.Exponent, float64(n))
	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// Error is a typed fetch failure.
type Error struct {
	// URL is the request URL.
	URL string

	// Status is the HTTP status code, zero for transport errors.
	Status int

	// Transient reports whether the failure is worth retrying.
	Transient bool

	// RetryAfter is the server-requested delay, from a Retry-After
	// header on 429 responses. Zero when absent.
	RetryAfter time.Duration

	// Err is the underlying error, nil for plain status failures.
	Err error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a fetch failure that retrying
// could fix (timeout, connection reset, 5xx, 429).
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Transient
}

// Fetcher issues HTTP requests through an authenticated Session with
// the shared retry policy and a jittered politeness delay between
// successive requests. It is safe for concurrent use.
type Fetcher struct {
	session *session.Session
	policy  Policy
	pause   time.Duration
	log     zerolog.Logger

	mu   sync.Mutex
	next time.Time
}

// New creates a Fetcher. pause is the minimum delay between successive
// requests; zero disables throttling.
func New(sess *session.Session, policy Policy, pause time.Duration, logger zerolog.Logger) *Fetcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Fetcher{
		session: sess,
		policy:  policy,
		pause:   pause,
		log:     logger,
	}
}

// Policy returns the fetcher's retry policy, for callers that run their
// own retry loops around streaming transfers.
func (f *Fetcher) Policy() Policy { return f.policy }

// Text fetches url and returns the response body as a string, retrying
// transient failures per the policy.
func (f *Fetcher) Text(ctx context.Context, url string) (string, error) {
	body, err := f.retrieve(ctx, http.MethodGet, url, nil)
	return string(body), err
}

// Bytes fetches url and returns the raw response body, retrying
// transient failures per the policy.
func (f *Fetcher) Bytes(ctx context.Context, url string) ([]byte, error) {
	return f.retrieve(ctx, http.MethodGet, url, nil)
}

// PostJSON posts a JSON payload to url and returns the response body,
// retrying transient failures per the policy.
func (f *Fetcher) PostJSON(ctx context.Context, url string, payload []byte) ([]byte, error) {
	return f.retrieve(ctx, http.MethodPost, url, payload)
}

// ContentLength returns the size of the resource at url via a HEAD
// request. Returns zero with no error when the server does not report
// a length.
func (f *Fetcher) ContentLength(ctx context.Context, url string) (int64, error) {
	f.throttle(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, &Error{URL: url, Err: err}
	}

	resp, err := f.session.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return 0, nil
	}
	return resp.ContentLength, nil
}

// Download streams the resource at url into w and returns the bytes
// written. It performs a single attempt: callers that stage partial
// files run their own retry loop using Policy.
func (f *Fetcher) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	f.throttle(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &Error{URL: url, Err: err}
	}

	resp, err := f.session.Do(req)
	if err != nil {
		return 0, wrapTransport(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(url, resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &Error{URL: url, Transient: true, Err: err}
	}
	return n, nil
}

// retrieve is the shared retry loop for buffered page fetches.
func (f *Fetcher) retrieve(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < f.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := f.policy.Backoff(attempt - 1)
			var fe *Error
			if errors.As(lastErr, &fe) && fe.RetryAfter > delay {
				delay = fe.RetryAfter
			}
			f.log.Warn().
				Str("url", url).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying request")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		f.throttle(ctx)

		body, err := f.once(ctx, method, url, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Auth failures and non-transient statuses are final.
		if errors.Is(err, session.ErrNotAuthenticated) || !IsTransient(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", f.policy.MaxAttempts, lastErr)
}

func (f *Fetcher) once(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.session.Do(req)
	if err != nil {
		return nil, wrapTransport(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(url, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, Transient: true, Err: err}
	}
	return data, nil
}

// throttle blocks until this request's politeness slot, spacing
// successive requests by at least the configured pause plus jitter.
func (f *Fetcher) throttle(ctx context.Context) {
	if f.pause <= 0 {
		return
	}

	pause := f.pause
	if f.policy.Jitter > 0 {
		pause += time.Duration(rand.Float64() * f.policy.Jitter * float64(pause))
	}

	f.mu.Lock()
	now := time.Now()
	slot := f.next
	if slot.Before(now) {
		slot = now
	}
	f.next = slot.Add(pause)
	f.mu.Unlock()

	if wait := time.Until(slot); wait > 0 {
		_ = sleep(ctx, wait)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func wrapTransport(url string, err error) error {
	if errors.Is(err, session.ErrNotAuthenticated) {
		return err
	}
	return &Error{URL: url, Transient: true, Err: err}
}

func statusError(url string, resp *http.Response) error {
	e := &Error{URL: url, Status: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Transient = true
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	case resp.StatusCode >= 500:
		e.Transient = true
	}
	return e
}
