package edition

import (
	"errors"
	"fmt"
)

// Kind classifies an error for escalation and reporting decisions.
type Kind string

// Error kinds. Everything below KindStrategyExhausted is handled internally:
// it either drives strategy escalation or is tolerated.
const (
	KindAuthenticationFailed Kind = "authentication_failed"
	KindLinkNotFound         Kind = "link_not_found"
	KindDownloadFailed       Kind = "download_failed"
	KindValidationFailed     Kind = "validation_failed"
	KindThumbnailUnavailable Kind = "thumbnail_unavailable"
	KindStrategyExhausted    Kind = "strategy_exhausted"
)

// Error is a classified error carrying the failing strategy for diagnostics.
type Error struct {
	Kind     Kind
	Strategy Strategy
	Err      error
}

// E wraps err with a kind and the strategy it occurred under.
func E(kind Kind, strategy Strategy, err error) *Error {
	return &Error{Kind: kind, Strategy: strategy, Err: err}
}

func (e *Error) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Strategy, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or the empty Kind for
// unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

// OutcomeOf maps a classified fetch error to the attempt outcome recorded in
// FetchAttempt. Unclassified errors count as download failures.
func OutcomeOf(err error) AttemptOutcome {
	switch KindOf(err) {
	case "":
		if err == nil {
			return OutcomeSuccess
		}
		return OutcomeDownloadFailed
	case KindAuthenticationFailed:
		return OutcomeAuthFailed
	case KindLinkNotFound:
		return OutcomeLinkNotFound
	case KindValidationFailed:
		return OutcomeValidationFailed
	default:
		return OutcomeDownloadFailed
	}
}
