package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cn3rd/bcsync/internal/audio"
	"github.com/cn3rd/bcsync/internal/bandcamp"
	"github.com/cn3rd/bcsync/internal/cache"
	"github.com/cn3rd/bcsync/internal/config"
	"github.com/cn3rd/bcsync/internal/download"
	"github.com/cn3rd/bcsync/internal/fetch"
	ioutils "github.com/cn3rd/bcsync/internal/io"
	"github.com/cn3rd/bcsync/internal/model"
	"github.com/cn3rd/bcsync/internal/session"
)

// ReasonCached is the skip reason for items found in the download
// cache.
const ReasonCached = "in download cache"

// ReasonDryRun is the skip reason reported for every item in a dry
// run.
const ReasonDryRun = "dry run"

// Summary aggregates the terminal result of one run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Results   []model.Result
}

// Failures returns only the failed results, for reporting.
func (s *Summary) Failures() []model.Result {
	var failed []model.Result
	for _, r := range s.Results {
		if r.Outcome == model.OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

func (s *Summary) add(r model.Result) {
	s.Results = append(s.Results, r)
	s.Total++
	switch r.Outcome {
	case model.OutcomeSuccess:
		s.Succeeded++
	case model.OutcomeSkipped:
		s.Skipped++
	case model.OutcomeFailed:
		s.Failed++
	}
}

// Runner wires session, fetcher, parser, resolver and engine into a
// single run: authenticate, enumerate, resolve, download, summarize.
type Runner struct {
	settings *config.Settings
	store    session.JarStore
	log      zerolog.Logger

	// DryRun enumerates and resolves but transfers nothing.
	DryRun bool
}

// New creates a Runner. The jar store supplies the session credential.
func New(settings *config.Settings, store session.JarStore, logger zerolog.Logger) *Runner {
	return &Runner{settings: settings, store: store, log: logger}
}

// Run executes the whole pipeline and returns the run summary.
//
// Item-scoped failures (resolve, download) are recorded in the summary
// and never abort the run. Only authentication and configuration
// failures return an error.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.settings.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()
	summary := &Summary{RunID: runID}

	sess, err := session.New(r.store, log)
	if err != nil {
		return nil, err
	}

	policy := fetch.Policy{
		MaxAttempts: r.settings.DownloadMaxAttempts,
		Cooldown:    r.settings.RetryCooldown(),
		Exponent:    r.settings.RetryExponent,
		Jitter:      r.settings.RetryJitter,
	}
	fetcher := fetch.New(sess, policy, r.settings.RequestPause(), log)
	client := bandcamp.NewClient(fetcher, log)

	var dlCache *cache.Cache
	if r.settings.CachePath != "" {
		dlCache, err = cache.Open(r.settings.CachePath, log)
		if err != nil {
			return nil, err
		}
		defer dlCache.Close()
		log.Debug().Int("cached", dlCache.Len()).Msg("download cache loaded")
	}

	log.Info().Str("fan", r.settings.Username).Msg("enumerating collection")
	items, err := client.Releases(ctx, r.settings.Username, r.settings.IncludeHidden)
	if err != nil {
		return nil, err
	}

	pending := make([]model.Item, 0, len(items))
	for _, item := range items {
		if dlCache != nil && dlCache.Contains(item.ID) {
			summary.add(model.Result{
				ItemID:  item.ID,
				Title:   item.Title,
				Artist:  item.Artist,
				Outcome: model.OutcomeSkipped,
				Reason:  ReasonCached,
			})
			continue
		}
		pending = append(pending, item)
	}
	log.Info().Int("pending", len(pending)).Int("cached", len(items)-len(pending)).Msg("items to resolve")

	resolved, err := r.resolveAll(ctx, client, pending, summary)
	if err != nil {
		return nil, err
	}

	nameCfg := r.settings.ToNameConfig()
	model.AssignFileNames(resolved, nameCfg)

	if r.DryRun {
		for _, d := range resolved {
			log.Info().Str("file", d.FileName).Str("url", d.FileURL).Msg("would download")
			summary.add(model.Result{
				ItemID:  d.Item.ID,
				Title:   d.Item.Title,
				Artist:  d.Item.Artist,
				Outcome: model.OutcomeSkipped,
				Reason:  ReasonDryRun,
			})
		}
		return summary, nil
	}

	engine := download.NewEngine(fetcher, download.Config{
		OutputDir:     r.settings.OutputDir,
		Concurrency:   r.settings.MaxConcurrentDownloads,
		SizeTolerance: r.settings.AllowedFileSizeDifference,
	}, log)

	results := engine.DownloadAll(ctx, resolved)
	for i, result := range results {
		if result.Outcome == model.OutcomeSuccess {
			r.postProcess(ctx, fetcher, resolved[i], result.Path, log)
			if dlCache != nil {
				entry := cache.Release{
					ID:     resolved[i].Item.ID,
					Title:  resolved[i].Item.Title,
					Artist: resolved[i].Item.Artist,
					Year:   resolved[i].ReleaseYear,
				}
				if err := dlCache.Add(entry); err != nil {
					log.Warn().Str("item", entry.ID).Err(err).Msg("could not record item in download cache")
				}
			}
		}
		summary.add(result)
	}

	if err := sess.SaveJar(); err != nil {
		log.Warn().Err(err).Msg("could not persist cookie jar")
	}

	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("run finished")

	return summary, nil
}

// resolveAll resolves pending items concurrently, bounded by the
// transfer concurrency limit. Item-scoped resolve failures land in the
// summary; an authentication failure aborts the run.
func (r *Runner) resolveAll(ctx context.Context, client *bandcamp.Client, pending []model.Item, summary *Summary) ([]*model.ResolvedDownload, error) {
	preferred, fallback := r.settings.FormatPreference()
	prefs := bandcamp.FormatPrefs{Preferred: preferred, Fallback: fallback}

	resolved := make([]*model.ResolvedDownload, len(pending))
	errs := make([]error, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.MaxConcurrentDownloads)
	for i, item := range pending {
		g.Go(func() error {
			d, err := client.ResolveItem(gctx, item, prefs)
			if err != nil {
				if errors.Is(err, session.ErrNotAuthenticated) {
					return err // cancels the group
				}
				errs[i] = err
				return nil
			}
			resolved[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*model.ResolvedDownload, 0, len(pending))
	for i, item := range pending {
		switch {
		case resolved[i] != nil:
			out = append(out, resolved[i])
		case errs[i] != nil:
			r.log.Warn().Str("item", item.ID).Err(errs[i]).Msg("resolve failed")
			summary.add(model.Result{
				ItemID:  item.ID,
				Title:   item.Title,
				Artist:  item.Artist,
				Outcome: model.OutcomeFailed,
				Err:     errs[i],
			})
		default:
			// Cancelled before this item was attempted.
			summary.add(model.Result{
				ItemID:  item.ID,
				Title:   item.Title,
				Artist:  item.Artist,
				Outcome: model.OutcomeFailed,
				Err:     ctx.Err(),
			})
		}
	}
	return out, nil
}

// postProcess saves cover art and tags single-track mp3 files. Items
// without art still get their text frames written. Failures here are
// warnings only; the download itself succeeded.
func (r *Runner) postProcess(ctx context.Context, fetcher *fetch.Fetcher, d *model.ResolvedDownload, path string, log zerolog.Logger) {
	if !r.settings.SaveCoverArt && !r.settings.WriteTags {
		return
	}

	var art []byte
	if d.ArtID != 0 {
		var err error
		art, err = fetcher.Bytes(ctx, bandcamp.ArtworkURL(d.ArtID))
		if err != nil {
			log.Warn().Str("item", d.Item.ID).Err(err).Msg("cover art download failed")
			art = nil
		}
	}

	if art != nil {
		images := ioutils.NewImageService()
		if r.settings.CoverArtMaxSize > 0 {
			if resized, err := images.Resize(art, r.settings.CoverArtMaxSize); err == nil {
				art = resized
			}
		} else if r.settings.ConvertCoverArtToJPG {
			if converted, err := images.ToJPEG(art); err == nil {
				art = converted
			}
		}

		if r.settings.SaveCoverArt {
			artPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpg"
			if err := ioutils.WriteFile(artPath, art); err != nil {
				log.Warn().Str("item", d.Item.ID).Err(err).Msg("could not save cover art")
			}
		}
	}

	if r.settings.WriteTags {
		tagger := audio.NewTagger()
		if tagger.Eligible(path) {
			if err := tagger.Tag(path, d, art); err != nil {
				log.Warn().Str("item", d.Item.ID).Err(err).Msg("could not tag file")
			}
		}
	}
}
