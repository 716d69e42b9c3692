// Package history persists run outcomes so operators can answer "did my
// paper arrive this week" without grepping logs.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paperboydev/paperboy/internal/edition"
)

// Store records run outcomes and serves the recent-run queries behind the
// dashboard API.
type Store interface {
	// Record persists one finished run.
	Record(ctx context.Context, rec edition.RunRecord) error
	// Recent returns runs whose edition date falls within the last `days`
	// days, newest first.
	Recent(ctx context.Context, days int, now time.Time) ([]edition.RunRecord, error)
	// Close releases store resources.
	Close()
}

// MemoryStore keeps run records in memory. It is the default when no
// database is configured; history then lasts as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []edition.RunRecord
}

// NewMemory builds an empty MemoryStore.
func NewMemory() *MemoryStore { return &MemoryStore{} }

// Record appends the run.
func (s *MemoryStore) Record(_ context.Context, rec edition.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Recent filters and sorts in memory.
func (s *MemoryStore) Recent(_ context.Context, days int, now time.Time) ([]edition.RunRecord, error) {
	cutoff := now.UTC().AddDate(0, 0, -days).Format(edition.DateLayout)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []edition.RunRecord
	for _, rec := range s.records {
		if rec.Date >= cutoff {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	return out, nil
}

// Close is a no-op.
func (*MemoryStore) Close() {}
