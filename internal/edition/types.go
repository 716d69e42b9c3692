// Package edition defines core types shared across the fetch, thumbnail,
// and delivery subsystems.
package edition

import (
	"time"
)

// Strategy identifies the fetch mechanism used for an attempt.
type Strategy string

// Fetch strategies, ordered cheapest first.
const (
	StrategyHTTP    Strategy = "http"
	StrategyBrowser Strategy = "browser"
	// StrategyLocal marks a run satisfied by an artifact already on disk.
	StrategyLocal Strategy = "local"
)

// AttemptOutcome classifies how a single strategy attempt ended.
type AttemptOutcome string

// Attempt outcomes recorded in FetchAttempt.
const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeAuthFailed       AttemptOutcome = "auth_failed"
	OutcomeLinkNotFound     AttemptOutcome = "link_not_found"
	OutcomeDownloadFailed   AttemptOutcome = "download_failed"
	OutcomeValidationFailed AttemptOutcome = "validation_failed"
)

// Credentials holds the login identity for the edition source. The values are
// opaque to this package and must never appear in logs.
type Credentials struct {
	Identity string
	Secret   string
}

// String implements fmt.Stringer so accidental formatting never leaks the secret.
func (Credentials) String() string { return "edition.Credentials{redacted}" }

// Empty reports whether no credentials were configured.
func (c Credentials) Empty() bool { return c.Identity == "" && c.Secret == "" }

// FetchAttempt records one strategy attempt for diagnostics and retry
// accounting. It is never persisted outside the run.
type FetchAttempt struct {
	Strategy Strategy
	Outcome  AttemptOutcome
	Elapsed  time.Duration
}

// DownloadResult is produced by a successful fetch and handed to the
// storage collaborator.
type DownloadResult struct {
	LocalPath   string
	ContentType string
	ByteSize    int64
	Strategy    Strategy
}

// ThumbnailResult describes a generated preview image. A nil *ThumbnailResult
// is a normal outcome, never an error.
type ThumbnailResult struct {
	LocalPath string
	Renderer  string
	Width     int
	Height    int
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

// Run statuses persisted in the run history.
const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunContext carries the immutable per-run inputs through the pipeline.
// It is a value type; nothing downstream mutates it.
type RunContext struct {
	RunID   string
	Date    time.Time
	Force   bool
	DryRun  bool
	Started time.Time
}

// DateString formats the target date in the canonical layout used for file
// and object names.
func (rc RunContext) DateString() string { return rc.Date.Format(DateLayout) }

// DateLayout is the canonical date layout for filenames, object keys, and the
// history table.
const DateLayout = "2006-01-02"

// RunRecord is the structured outcome handed to the history and publishing
// collaborators after a run completes.
type RunRecord struct {
	RunID        string        `json:"run_id"`
	Date         string        `json:"date"`
	Status       RunStatus     `json:"status"`
	Strategy     Strategy      `json:"strategy_used,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ArtifactURI  string        `json:"artifact_uri,omitempty"`
	ThumbnailURI string        `json:"thumbnail_uri,omitempty"`
	ContentType  string        `json:"content_type,omitempty"`
	ByteSize     int64         `json:"byte_size,omitempty"`
	ContentHash  string        `json:"content_hash,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ms"`
	FinishedAt   time.Time     `json:"finished_at"`
}
