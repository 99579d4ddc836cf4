package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cn3rd/bcsync/internal/fetch"
	"github.com/cn3rd/bcsync/internal/model"
	"github.com/cn3rd/bcsync/internal/session"
)

// ReasonAlreadyExists is the skip reason for files already present at
// the destination with a plausible size.
const ReasonAlreadyExists = "already exists"

// Config holds the engine's transfer settings, read-only after
// initialization.
type Config struct {
	// OutputDir is the destination directory, created if absent.
	OutputDir string

	// Concurrency bounds the number of simultaneous transfers.
	Concurrency int

	// SizeTolerance is the allowed relative difference between an
	// existing file's size and the expected size for a skip, e.g. 0.05
	// for 5%.
	SizeTolerance float64
}

// Engine schedules concurrent file transfers with failure isolation
// per item: one item exhausting its retries never aborts its siblings.
type Engine struct {
	fetcher *fetch.Fetcher
	cfg     Config
	log     zerolog.Logger
}

// NewEngine creates a download engine.
func NewEngine(fetcher *fetch.Fetcher, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Engine{fetcher: fetcher, cfg: cfg, log: logger}
}

// DownloadAll transfers every resolved download with a bounded worker
// pool and returns one Result per input, in input order.
//
// Cancelling ctx stops in-flight transfers promptly; their partial
// files are removed and items not yet started are reported as failed
// with the context error, while completed results are preserved.
func (e *Engine) DownloadAll(ctx context.Context, downloads []*model.ResolvedDownload) []model.Result {
	results := make([]model.Result, len(downloads))

	if err := os.MkdirAll(e.cfg.OutputDir, 0755); err != nil {
		for i, d := range downloads {
			results[i] = failure(d, fmt.Errorf("create output directory: %w", err))
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, d := range downloads {
		g.Go(func() error {
			results[i] = e.downloadOne(gctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// downloadOne performs one item's transfer with retries. Data is
// staged in a ".part" file and renamed into place only on success, so
// an interrupted transfer is never mistaken for a finished download.
func (e *Engine) downloadOne(ctx context.Context, d *model.ResolvedDownload) model.Result {
	dest := filepath.Join(e.cfg.OutputDir, d.FileName)

	if ctx.Err() != nil {
		return failure(d, ctx.Err())
	}

	skip, reason, err := e.shouldSkip(ctx, d, dest)
	if err != nil {
		return failure(d, err)
	}
	if skip {
		e.log.Info().Str("file", d.FileName).Str("reason", reason).Msg("skipping download")
		return model.Result{
			ItemID:  d.Item.ID,
			Title:   d.Item.Title,
			Artist:  d.Item.Artist,
			Outcome: model.OutcomeSkipped,
			Path:    dest,
			Reason:  reason,
		}
	}

	policy := e.fetcher.Policy()
	part := dest + ".part"

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			e.log.Warn().
				Str("file", d.FileName).
				Int("attempt", attempt+1).
				Err(lastErr).
				Msg("retrying transfer")
			if err := sleepCtx(ctx, policy.Backoff(attempt-1)); err != nil {
				return failure(d, err)
			}
		}

		written, err := e.transfer(ctx, d.FileURL, part)
		if err == nil {
			if err := os.Rename(part, dest); err != nil {
				return failure(d, err)
			}
			e.log.Info().Str("file", d.FileName).Int64("bytes", written).Msg("downloaded")
			return model.Result{
				ItemID:  d.Item.ID,
				Title:   d.Item.Title,
				Artist:  d.Item.Artist,
				Outcome: model.OutcomeSuccess,
				Path:    dest,
			}
		}
		lastErr = err

		if ctx.Err() != nil || !fetch.IsTransient(err) {
			break
		}
	}

	return failure(d, lastErr)
}

// transfer streams one attempt into the staging path. The partial file
// is removed on any failure before returning.
func (e *Engine) transfer(ctx context.Context, url, part string) (int64, error) {
	f, err := os.Create(part)
	if err != nil {
		return 0, err
	}

	written, err := e.fetcher.Download(ctx, url, f)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(part); rmErr != nil && !os.IsNotExist(rmErr) {
			e.log.Warn().Str("file", part).Err(rmErr).Msg("could not remove partial file")
		}
		return 0, err
	}
	return written, nil
}

// shouldSkip reports whether dest already holds a plausible copy of the
// download. When the server reports an expected size, the existing file
// must match it within the configured tolerance; when the size check
// fails or the size is unreported, an existing file is trusted as-is so
// repeated runs stay idempotent. Authentication failures are returned,
// not trusted: a dead credential must not look like a clean skip.
func (e *Engine) shouldSkip(ctx context.Context, d *model.ResolvedDownload, dest string) (bool, string, error) {
	info, err := os.Stat(dest)
	if err != nil || info.IsDir() {
		return false, "", nil
	}

	expected, err := e.fetcher.ContentLength(ctx, d.FileURL)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return false, "", err
	}
	if err != nil || expected <= 0 {
		return true, ReasonAlreadyExists, nil
	}

	diff := math.Abs(float64(info.Size()-expected)) / float64(expected)
	if diff <= e.cfg.SizeTolerance {
		return true, ReasonAlreadyExists, nil
	}

	e.log.Warn().
		Str("file", d.FileName).
		Int64("have", info.Size()).
		Int64("want", expected).
		Msg("existing file size mismatch, re-downloading")
	return false, "", nil
}

func failure(d *model.ResolvedDownload, err error) model.Result {
	if err == nil {
		err = errors.New("download failed")
	}
	return model.Result{
		ItemID:  d.Item.ID,
		Title:   d.Item.Title,
		Artist:  d.Item.Artist,
		Outcome: model.OutcomeFailed,
		Err:     err,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
