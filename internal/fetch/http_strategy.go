package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
)

// HTTPStrategy acquires the edition with plain HTTP: cookie-jar login, static
// page fetch, link resolution, streamed download. It is the cheap first rung
// of the strategy chain.
type HTTPStrategy struct {
	client    *Client
	auth      *Authenticator
	resolver  *edition.Resolver
	selectors edition.SelectorSet
	retry     *RetryPolicy
	minBytes  int64
	logger    *zap.Logger
}

// NewHTTPStrategy wires the HTTP strategy.
func NewHTTPStrategy(
	client *Client,
	auth *Authenticator,
	resolver *edition.Resolver,
	selectors edition.SelectorSet,
	retry *RetryPolicy,
	minBytes int64,
	logger *zap.Logger,
) *HTTPStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPStrategy{
		client:    client,
		auth:      auth,
		resolver:  resolver,
		selectors: selectors,
		retry:     retry,
		minBytes:  minBytes,
		logger:    logger,
	}
}

// Name identifies the strategy in attempt records.
func (s *HTTPStrategy) Name() edition.Strategy { return edition.StrategyHTTP }

// Fetch runs the full HTTP acquisition for the target date.
func (s *HTTPStrategy) Fetch(ctx context.Context, target Target) (edition.DownloadResult, error) {
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.auth.Login(ctx, s.client)
	})
	if err != nil {
		return edition.DownloadResult{}, err
	}

	var page Response
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.client.Get(ctx, target.PageURL)
		if err != nil {
			return fmt.Errorf("load edition page: %w", err)
		}
		if page.StatusCode < 200 || page.StatusCode > 299 {
			return fmt.Errorf("edition page returned status %d", page.StatusCode)
		}
		return nil
	})
	if err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, edition.StrategyHTTP, err)
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindLinkNotFound, edition.StrategyHTTP,
			fmt.Errorf("parse edition page url: %w", err))
	}

	link, err := s.resolver.Resolve(string(page.Body), base, s.selectors.DownloadCandidates())
	if err != nil {
		return edition.DownloadResult{}, err
	}

	s.logger.Info("resolved download link",
		zap.String("strategy", string(edition.StrategyHTTP)),
		zap.String("url", link))

	return downloadAndValidate(ctx, s.client, link, target, edition.StrategyHTTP, s.retry, s.minBytes)
}

// downloadAndValidate streams the artifact to the staging path, validates it,
// and moves it to its canonical name. Shared by both network strategies.
func downloadAndValidate(
	ctx context.Context,
	client *Client,
	link string,
	target Target,
	strategy edition.Strategy,
	retry *RetryPolicy,
	minBytes int64,
) (edition.DownloadResult, error) {
	staging := target.StagingPath()

	var size int64
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		size, err = client.Download(ctx, link, staging)
		return err
	})
	if err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, strategy, err)
	}

	contentType, size, err := Validate(staging, minBytes, strategy)
	if err != nil {
		os.Remove(staging)
		return edition.DownloadResult{}, err
	}

	final := target.PathFor(contentType)
	if err := os.Rename(staging, final); err != nil {
		os.Remove(staging)
		return edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, strategy,
			fmt.Errorf("finalize artifact: %w", err))
	}

	return edition.DownloadResult{
		LocalPath:   final,
		ContentType: contentType,
		ByteSize:    size,
		Strategy:    strategy,
	}, nil
}
