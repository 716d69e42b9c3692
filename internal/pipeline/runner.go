// Package pipeline runs the daily edition workflow end to end: fetch,
// archive, thumbnail, deliver, record.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
	"github.com/paperboydev/paperboy/internal/fetch"
	"github.com/paperboydev/paperboy/internal/history"
	"github.com/paperboydev/paperboy/internal/mail"
	"github.com/paperboydev/paperboy/internal/publish"
	"github.com/paperboydev/paperboy/internal/storage"
)

var runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paperboy_runs_total",
	Help: "The total number of pipeline runs by terminal status.",
}, []string{"status"})

// Fetcher acquires the edition artifact for a target.
type Fetcher interface {
	Fetch(ctx context.Context, target fetch.Target) (fetch.Result, error)
}

// Thumbnailer produces a best-effort preview image.
type Thumbnailer interface {
	Generate(ctx context.Context, artifactPath, contentType, outDir, baseName string) *edition.ThumbnailResult
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// FileHasher digests artifacts for integrity records.
type FileHasher interface {
	HashFile(path string) (string, error)
}

// Config holds the static pipeline parameters.
type Config struct {
	BaseURL       string
	EditionPath   string
	DownloadDir   string
	StoragePrefix string
	LinkTTL       time.Duration
	RetentionDays int
	LinkDays      int
	Topic         string
}

// Runner executes one edition run per invocation.
type Runner struct {
	cfg       Config
	fetcher   Fetcher
	thumbs    Thumbnailer
	store     storage.Provider
	sweeper   *storage.Sweeper
	mailer    mail.Sender
	histStore history.Store
	publisher publish.Publisher
	hasher    FileHasher
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// NewRunner wires the pipeline.
func NewRunner(
	cfg Config,
	fetcher Fetcher,
	thumbs Thumbnailer,
	store storage.Provider,
	sweeper *storage.Sweeper,
	mailer mail.Sender,
	histStore history.Store,
	publisher publish.Publisher,
	hasher FileHasher,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		fetcher:   fetcher,
		thumbs:    thumbs,
		store:     store,
		sweeper:   sweeper,
		mailer:    mailer,
		histStore: histStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}
}

// Run executes the workflow for one edition date.
func (r *Runner) Run(ctx context.Context, date time.Time, force, dryRun bool) (edition.RunRecord, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return edition.RunRecord{}, fmt.Errorf("mint run id: %w", err)
	}

	run := edition.RunContext{
		RunID:   runID,
		Date:    date,
		Force:   force,
		DryRun:  dryRun,
		Started: r.clock.Now(),
	}
	logger := r.logger.With(zap.String("run_id", runID), zap.String("date", run.DateString()))
	logger.Info("starting edition run", zap.Bool("force", force), zap.Bool("dry_run", dryRun))

	pageURL, err := fetch.BuildPageURL(r.cfg.BaseURL, r.cfg.EditionPath, run)
	if err != nil {
		return r.finishFailure(ctx, run, nil, err, logger)
	}
	target := fetch.Target{Run: run, PageURL: pageURL, DownloadDir: r.cfg.DownloadDir}

	result, err := r.fetcher.Fetch(ctx, target)
	if err != nil {
		return r.finishFailure(ctx, run, result.Attempts, err, logger)
	}
	download := result.Download

	contentHash, err := r.hasher.HashFile(download.LocalPath)
	if err != nil {
		logger.Warn("could not hash artifact", zap.Error(err))
	}

	thumb := r.thumbs.Generate(ctx, download.LocalPath, download.ContentType, r.cfg.DownloadDir, target.BaseName())

	record := edition.RunRecord{
		RunID:       run.RunID,
		Date:        run.DateString(),
		Status:      edition.RunStatusSuccess,
		Strategy:    download.Strategy,
		ContentType: download.ContentType,
		ByteSize:    download.ByteSize,
		ContentHash: contentHash,
	}

	if dryRun {
		record.ArtifactURI = download.LocalPath
		if thumb != nil {
			record.ThumbnailURI = thumb.LocalPath
		}
		logger.Info("dry run, skipping archive and delivery")
		return r.finish(ctx, run, record, logger)
	}

	artifactKey := storage.Key(r.cfg.StoragePrefix, path.Base(download.LocalPath))
	artifactURI, err := r.store.Upload(ctx, artifactKey, download.LocalPath, download.ContentType)
	if err != nil {
		return r.finishFailure(ctx, run, result.Attempts, fmt.Errorf("archive artifact: %w", err), logger)
	}
	record.ArtifactURI = artifactURI

	var thumbPath string
	if thumb != nil {
		thumbPath = thumb.LocalPath
		thumbKey := storage.Key(r.cfg.StoragePrefix, path.Base(thumb.LocalPath))
		if uri, err := r.store.Upload(ctx, thumbKey, thumb.LocalPath, "image/jpeg"); err != nil {
			logger.Warn("could not archive thumbnail", zap.Error(err))
		} else {
			record.ThumbnailURI = uri
		}
	}

	link, err := r.store.SignedURL(ctx, artifactKey, r.cfg.LinkTTL)
	if err != nil {
		logger.Warn("could not sign artifact link, using storage uri", zap.Error(err))
		link = artifactURI
	}

	past, err := r.sweeper.PastEditions(ctx, r.cfg.LinkDays, r.cfg.LinkTTL, r.clock.Now())
	if err != nil {
		logger.Warn("could not list past editions", zap.Error(err))
	}

	if err := r.mailer.SendDaily(ctx, mail.DailyMessage{
		Date:          run.DateString(),
		ArtifactURL:   link,
		Strategy:      string(download.Strategy),
		ThumbnailPath: thumbPath,
		PastEditions:  past,
	}); err != nil {
		// The edition is archived but the subscriber never saw it; that is
		// a failed run.
		return r.finishFailure(ctx, run, result.Attempts, fmt.Errorf("deliver email: %w", err), logger)
	}

	if deleted, err := r.sweeper.Sweep(ctx, r.cfg.RetentionDays, r.clock.Now()); err != nil {
		logger.Warn("retention sweep failed", zap.Error(err))
	} else if deleted > 0 {
		logger.Info("retention sweep removed expired editions", zap.Int("deleted", deleted))
	}

	return r.finish(ctx, run, record, logger)
}

func (r *Runner) finish(ctx context.Context, run edition.RunContext, record edition.RunRecord, logger *zap.Logger) (edition.RunRecord, error) {
	record.FinishedAt = r.clock.Now()
	record.Elapsed = record.FinishedAt.Sub(run.Started)
	runsTotal.WithLabelValues(string(record.Status)).Inc()

	if !run.DryRun {
		if err := r.histStore.Record(ctx, record); err != nil {
			logger.Warn("could not record run history", zap.Error(err))
		}
		if _, err := r.publisher.Publish(ctx, r.cfg.Topic, record); err != nil {
			logger.Warn("could not publish run outcome", zap.Error(err))
		}
	}

	logger.Info("edition run finished",
		zap.String("status", string(record.Status)),
		zap.String("artifact_uri", record.ArtifactURI),
		zap.Duration("elapsed", record.Elapsed))
	return record, nil
}

func (r *Runner) finishFailure(ctx context.Context, run edition.RunContext, attempts []edition.FetchAttempt, cause error, logger *zap.Logger) (edition.RunRecord, error) {
	record := edition.RunRecord{
		RunID:      run.RunID,
		Date:       run.DateString(),
		Status:     edition.RunStatusFailed,
		ErrorKind:  string(edition.KindOf(cause)),
		FinishedAt: r.clock.Now(),
	}
	record.Elapsed = record.FinishedAt.Sub(run.Started)
	runsTotal.WithLabelValues(string(record.Status)).Inc()
	logger.Error("edition run failed", zap.Error(cause))

	var attemptLines []string
	for _, a := range attempts {
		attemptLines = append(attemptLines,
			fmt.Sprintf("%s: %s (%s)", a.Strategy, a.Outcome, a.Elapsed.Round(time.Millisecond)))
	}
	if err := r.mailer.SendAlert(ctx, mail.AlertMessage{
		Date:      run.DateString(),
		ErrorKind: record.ErrorKind,
		Reason:    cause.Error(),
		Attempts:  attemptLines,
	}); err != nil {
		logger.Warn("could not send failure alert", zap.Error(err))
	}

	if !run.DryRun {
		if err := r.histStore.Record(ctx, record); err != nil {
			logger.Warn("could not record run history", zap.Error(err))
		}
		if _, err := r.publisher.Publish(ctx, r.cfg.Topic, record); err != nil {
			logger.Warn("could not publish run outcome", zap.Error(err))
		}
	}
	return record, cause
}
