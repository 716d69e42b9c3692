package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paperboydev/paperboy/internal/edition"
)

type mockStrategy struct {
	mock.Mock
	name edition.Strategy
}

func (m *mockStrategy) Name() edition.Strategy { return m.name }

func (m *mockStrategy) Fetch(ctx context.Context, target Target) (edition.DownloadResult, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(edition.DownloadResult), args.Error(1)
}

func testTarget(t *testing.T) Target {
	t.Helper()
	return Target{
		Run: edition.RunContext{
			RunID: "run-1",
			Date:  time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
		},
		PageURL:     "https://paper.example.com/editions/2024-05-04",
		DownloadDir: t.TempDir(),
	}
}

func validPDFBytes() []byte {
	body := make([]byte, 64)
	copy(body, "%PDF-1.7\n")
	return body
}

func TestOrchestratorStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	target := testTarget(t)
	want := edition.DownloadResult{LocalPath: "x.pdf", Strategy: edition.StrategyHTTP, ByteSize: 64}

	httpStrat := &mockStrategy{name: edition.StrategyHTTP}
	httpStrat.On("Fetch", mock.Anything, target).Return(want, nil).Once()
	browserStrat := &mockStrategy{name: edition.StrategyBrowser}

	o := NewOrchestrator([]Strategy{httpStrat, browserStrat}, 10, nil)
	result, err := o.Fetch(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, want, result.Download)
	require.Len(t, result.Attempts, 1)
	require.Equal(t, edition.OutcomeSuccess, result.Attempts[0].Outcome)

	httpStrat.AssertExpectations(t)
	browserStrat.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestOrchestratorEscalatesOnFailure(t *testing.T) {
	t.Parallel()

	target := testTarget(t)
	want := edition.DownloadResult{LocalPath: "x.pdf", Strategy: edition.StrategyBrowser, ByteSize: 64}

	httpStrat := &mockStrategy{name: edition.StrategyHTTP}
	httpStrat.On("Fetch", mock.Anything, target).
		Return(edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, edition.StrategyHTTP, errors.New("403"))).
		Once()
	browserStrat := &mockStrategy{name: edition.StrategyBrowser}
	browserStrat.On("Fetch", mock.Anything, target).Return(want, nil).Once()

	o := NewOrchestrator([]Strategy{httpStrat, browserStrat}, 10, nil)
	result, err := o.Fetch(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, want, result.Download)
	require.Len(t, result.Attempts, 2)
	require.Equal(t, edition.OutcomeDownloadFailed, result.Attempts[0].Outcome)
	require.Equal(t, edition.OutcomeSuccess, result.Attempts[1].Outcome)

	httpStrat.AssertExpectations(t)
	browserStrat.AssertExpectations(t)
	browserStrat.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestOrchestratorExhaustsChain(t *testing.T) {
	t.Parallel()

	target := testTarget(t)

	httpStrat := &mockStrategy{name: edition.StrategyHTTP}
	httpStrat.On("Fetch", mock.Anything, target).
		Return(edition.DownloadResult{}, edition.E(edition.KindAuthenticationFailed, edition.StrategyHTTP, errors.New("rejected"))).
		Once()
	browserStrat := &mockStrategy{name: edition.StrategyBrowser}
	browserStrat.On("Fetch", mock.Anything, target).
		Return(edition.DownloadResult{}, edition.E(edition.KindLinkNotFound, edition.StrategyBrowser, errors.New("no link"))).
		Once()

	o := NewOrchestrator([]Strategy{httpStrat, browserStrat}, 10, nil)
	result, err := o.Fetch(context.Background(), target)
	require.Error(t, err)
	require.True(t, edition.IsKind(err, edition.KindStrategyExhausted))
	require.Len(t, result.Attempts, 2)
}

func TestOrchestratorSkipsDownloadWhenArtifactExists(t *testing.T) {
	t.Parallel()

	target := testTarget(t)
	path := filepath.Join(target.DownloadDir, target.BaseName()+".pdf")
	require.NoError(t, os.WriteFile(path, validPDFBytes(), 0o644))

	httpStrat := &mockStrategy{name: edition.StrategyHTTP}
	browserStrat := &mockStrategy{name: edition.StrategyBrowser}

	o := NewOrchestrator([]Strategy{httpStrat, browserStrat}, 10, nil)
	result, err := o.Fetch(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, edition.StrategyLocal, result.Download.Strategy)
	require.Equal(t, path, result.Download.LocalPath)
	require.Equal(t, "application/pdf", result.Download.ContentType)

	httpStrat.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	browserStrat.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestOrchestratorForceBypassesExistingArtifact(t *testing.T) {
	t.Parallel()

	target := testTarget(t)
	target.Run.Force = true
	path := filepath.Join(target.DownloadDir, target.BaseName()+".pdf")
	require.NoError(t, os.WriteFile(path, validPDFBytes(), 0o644))

	want := edition.DownloadResult{LocalPath: path, Strategy: edition.StrategyHTTP, ByteSize: 64}
	httpStrat := &mockStrategy{name: edition.StrategyHTTP}
	httpStrat.On("Fetch", mock.Anything, target).Return(want, nil).Once()

	o := NewOrchestrator([]Strategy{httpStrat}, 10, nil)
	result, err := o.Fetch(context.Background(), target)
	require.NoError(t, err)
	require.Equal(t, edition.StrategyHTTP, result.Download.Strategy)
	httpStrat.AssertExpectations(t)
}
