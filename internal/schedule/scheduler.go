// Package schedule fires the daily edition run at a configured local time.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// timeLayout is the clock format accepted for the daily fire time.
const timeLayout = "15:04"

// RunFunc executes one edition run for the given date.
type RunFunc func(ctx context.Context, date time.Time) error

// Scheduler triggers a RunFunc once a day at a fixed wall-clock time.
type Scheduler struct {
	hour   int
	minute int
	loc    *time.Location
	run    RunFunc
	logger *zap.Logger
}

// New parses the fire time ("15:04") and timezone name and builds a
// Scheduler. An empty timezone means the host's local time.
func New(at, timezone string, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	parsed, err := time.Parse(timeLayout, at)
	if err != nil {
		return nil, fmt.Errorf("parse schedule time %q: %w", at, err)
	}
	loc := time.Local
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		hour:   parsed.Hour(),
		minute: parsed.Minute(),
		loc:    loc,
		run:    run,
		logger: logger,
	}, nil
}

// Next returns the first fire time strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	local := now.In(s.loc)
	fire := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !fire.After(local) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Start blocks, running the workflow every day at the configured time until
// the context is canceled. A failed run is logged and does not stop the
// schedule; the next day fires regardless.
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		next := s.Next(time.Now())
		s.logger.Info("next scheduled run", zap.Time("at", next))
		timer.Reset(time.Until(next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case fired := <-timer.C:
			date := fired.In(s.loc)
			if err := s.run(ctx, date); err != nil {
				s.logger.Error("scheduled run failed",
					zap.String("date", date.Format("2006-01-02")), zap.Error(err))
			}
		}
	}
}
