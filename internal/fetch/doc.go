// Package fetch wraps the authenticated session with the shared
// retry/backoff policy and politeness throttling.
//
// Transient failures (timeouts, connection resets, 5xx, 429) are
// retried with exponential backoff plus jitter; other failures return
// immediately as typed *Error values. Authentication errors from the
// session pass through untouched so the pipeline can abort the run.
//
//	fetcher := fetch.New(sess, fetch.DefaultPolicy(), 500*time.Millisecond, logger)
//	html, err := fetcher.Text(ctx, pageURL)
//
// The fetcher returns raw bodies and never interprets content.
package fetch
