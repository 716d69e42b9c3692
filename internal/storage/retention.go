package storage

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
)

// Sweeper enforces the archive retention window and produces the recent
// edition list for the daily email.
type Sweeper struct {
	provider Provider
	prefix   string
	logger   *zap.Logger
}

// NewSweeper builds a Sweeper over the archive prefix.
func NewSweeper(provider Provider, prefix string, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{provider: provider, prefix: prefix, logger: logger}
}

// objectDate extracts the edition date from an object key. Keys are named
// <date>_edition.<ext>; objects that do not follow the convention fall back
// to their modification time.
func objectDate(obj Object) time.Time {
	base := path.Base(obj.Key)
	if len(base) >= len(edition.DateLayout) {
		if d, err := time.Parse(edition.DateLayout, base[:len(edition.DateLayout)]); err == nil {
			return d
		}
	}
	return obj.LastModified.UTC().Truncate(24 * time.Hour)
}

// Sweep deletes archived objects older than retainDays. It returns the number
// of objects removed.
func (s *Sweeper) Sweep(ctx context.Context, retainDays int, now time.Time) (int, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	cutoff := now.UTC().AddDate(0, 0, -retainDays)

	objects, err := s.provider.List(ctx, s.prefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, obj := range objects {
		if !objectDate(obj).Before(cutoff) {
			continue
		}
		if err := s.provider.Delete(ctx, obj.Key); err != nil {
			return deleted, err
		}
		deleted++
		s.logger.Info("expired archived edition removed", zap.String("key", obj.Key))
	}
	return deleted, nil
}

// PastEdition is one recent archived edition with a download link.
type PastEdition struct {
	Date string
	Key  string
	URL  string
	Size int64
}

// PastEditions returns signed links for the editions of the last `days` days,
// newest first. Thumbnails are excluded; only the artifacts themselves link.
func (s *Sweeper) PastEditions(ctx context.Context, days int, linkTTL time.Duration, now time.Time) ([]PastEdition, error) {
	objects, err := s.provider.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	cutoff := now.UTC().AddDate(0, 0, -days)

	var out []PastEdition
	for _, obj := range objects {
		if strings.Contains(path.Base(obj.Key), "_thumb") {
			continue
		}
		d := objectDate(obj)
		if d.Before(cutoff) {
			continue
		}
		url, err := s.provider.SignedURL(ctx, obj.Key, linkTTL)
		if err != nil {
			s.logger.Warn("could not sign link for past edition",
				zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		out = append(out, PastEdition{
			Date: d.Format(edition.DateLayout),
			Key:  obj.Key,
			URL:  url,
			Size: obj.Size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}
