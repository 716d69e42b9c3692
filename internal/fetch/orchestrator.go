package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
)

// Strategy is one way of acquiring the edition artifact. Implementations must
// leave no partial artifact behind on failure.
type Strategy interface {
	Name() edition.Strategy
	Fetch(ctx context.Context, target Target) (edition.DownloadResult, error)
}

// Orchestrator walks the strategy chain cheapest-first until one produces a
// validated artifact. An artifact already on disk short-circuits the chain
// unless the run forces a re-download.
type Orchestrator struct {
	strategies []Strategy
	minBytes   int64
	logger     *zap.Logger
}

// NewOrchestrator builds an Orchestrator over an ordered strategy chain.
func NewOrchestrator(strategies []Strategy, minBytes int64, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{strategies: strategies, minBytes: minBytes, logger: logger}
}

// Result is the orchestrator's outcome: the artifact plus the per-strategy
// attempt trail for diagnostics.
type Result struct {
	Download edition.DownloadResult
	Attempts []edition.FetchAttempt
}

// Fetch acquires the edition for the target, escalating through the chain.
func (o *Orchestrator) Fetch(ctx context.Context, target Target) (Result, error) {
	runStart := time.Now()
	defer func() {
		FetchDuration.Observe(time.Since(runStart).Seconds())
	}()

	if !target.Run.Force {
		if path, ok := target.ExistingArtifact(); ok {
			contentType, size, err := Validate(path, o.minBytes, edition.StrategyLocal)
			if err == nil {
				o.logger.Info("artifact already present, skipping download",
					zap.String("path", path),
					zap.String("date", target.Run.DateString()))
				AttemptsTotal.WithLabelValues(string(edition.StrategyLocal), string(edition.OutcomeSuccess)).Inc()
				return Result{
					Download: edition.DownloadResult{
						LocalPath:   path,
						ContentType: contentType,
						ByteSize:    size,
						Strategy:    edition.StrategyLocal,
					},
					Attempts: []edition.FetchAttempt{{Strategy: edition.StrategyLocal, Outcome: edition.OutcomeSuccess}},
				}, nil
			}
			o.logger.Warn("existing artifact failed validation, re-downloading",
				zap.String("path", path), zap.Error(err))
		}
	}

	var (
		attempts []edition.FetchAttempt
		lastErr  error
	)
	for i, strategy := range o.strategies {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempts}, fmt.Errorf("fetch canceled: %w", err)
		}
		if i > 0 {
			EscalationsTotal.Inc()
			o.logger.Warn("escalating to next strategy",
				zap.String("strategy", string(strategy.Name())),
				zap.Error(lastErr))
		}

		start := time.Now()
		result, err := strategy.Fetch(ctx, target)
		outcome := edition.OutcomeOf(err)
		attempts = append(attempts, edition.FetchAttempt{
			Strategy: strategy.Name(),
			Outcome:  outcome,
			Elapsed:  time.Since(start),
		})
		AttemptsTotal.WithLabelValues(string(strategy.Name()), string(outcome)).Inc()

		if err == nil {
			DownloadBytesTotal.Add(float64(result.ByteSize))
			o.logger.Info("edition acquired",
				zap.String("strategy", string(strategy.Name())),
				zap.String("path", result.LocalPath),
				zap.Int64("bytes", result.ByteSize),
				zap.String("content_type", result.ContentType))
			return Result{Download: result, Attempts: attempts}, nil
		}

		lastErr = err
		o.logger.Warn("strategy failed",
			zap.String("strategy", string(strategy.Name())),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no fetch strategies configured")
	}
	last := edition.Strategy("")
	if n := len(o.strategies); n > 0 {
		last = o.strategies[n-1].Name()
	}
	return Result{Attempts: attempts}, edition.E(edition.KindStrategyExhausted, last,
		fmt.Errorf("all strategies failed: %w", lastErr))
}
