package mail

import (
	"context"

	"go.uber.org/zap"
)

// NoopSender logs instead of sending. Used for dry runs and deployments
// without email configured.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoop builds a NoopSender.
func NewNoop(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// SendDaily logs the would-be delivery.
func (s *NoopSender) SendDaily(_ context.Context, msg DailyMessage) error {
	s.logger.Info("email disabled, skipping daily delivery",
		zap.String("date", msg.Date),
		zap.String("artifact_url", msg.ArtifactURL))
	return nil
}

// SendAlert logs the would-be alert.
func (s *NoopSender) SendAlert(_ context.Context, msg AlertMessage) error {
	s.logger.Warn("email disabled, skipping failure alert",
		zap.String("date", msg.Date),
		zap.String("error_kind", msg.ErrorKind),
		zap.String("reason", msg.Reason))
	return nil
}
