// Package mail delivers the daily edition email and failure alerts over SMTP.
package mail

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/paperboydev/paperboy/internal/storage"
)

// DailyMessage is the input for the subscriber email.
type DailyMessage struct {
	Date          string
	ArtifactURL   string
	Strategy      string
	ThumbnailPath string // local path embedded inline; empty skips the image
	PastEditions  []storage.PastEdition
}

// AlertMessage is the input for the operator alert.
type AlertMessage struct {
	Date      string
	ErrorKind string
	Reason    string
	Attempts  []string
}

// Sender delivers run notifications.
type Sender interface {
	SendDaily(ctx context.Context, msg DailyMessage) error
	SendAlert(ctx context.Context, msg AlertMessage) error
}

// SMTPConfig parameterizes the SMTP mailer.
type SMTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Sender         string
	Recipients     []string
	AlertRecipient string
}

// SMTPMailer sends through a standard SMTP submission endpoint.
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSMTP builds an SMTPMailer.
func NewSMTP(cfg SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Sender == "" || len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("smtp host, sender, and recipients are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}, nil
}

// SendDaily delivers the edition email with the thumbnail embedded inline.
// gomail has no context support; cancellation is checked before dialing.
func (m *SMTPMailer) SendDaily(ctx context.Context, msg DailyMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := DailyData{
		Date:         msg.Date,
		ArtifactURL:  msg.ArtifactURL,
		Strategy:     msg.Strategy,
		PastEditions: msg.PastEditions,
	}
	if msg.ThumbnailPath != "" {
		data.ThumbnailCID = filepath.Base(msg.ThumbnailPath)
	}

	body, err := RenderDaily(data)
	if err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.cfg.Sender)
	message.SetHeader("To", m.cfg.Recipients...)
	message.SetHeader("Subject", fmt.Sprintf("Your paper for %s", msg.Date))
	message.SetBody("text/html", body)
	if msg.ThumbnailPath != "" {
		message.Embed(msg.ThumbnailPath)
	}

	if err := m.dialer.DialAndSend(message); err != nil {
		emailsTotal.WithLabelValues("daily", "error").Inc()
		return fmt.Errorf("send daily email: %w", err)
	}
	emailsTotal.WithLabelValues("daily", "sent").Inc()
	m.logger.Info("daily email sent",
		zap.String("date", msg.Date),
		zap.Int("recipients", len(m.cfg.Recipients)))
	return nil
}

// SendAlert notifies the operator of a failed run. Without an alert recipient
// configured it is silently skipped.
func (m *SMTPMailer) SendAlert(ctx context.Context, msg AlertMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.AlertRecipient == "" {
		m.logger.Debug("no alert recipient configured, skipping alert")
		return nil
	}

	body, err := RenderAlert(AlertData{
		Date:      msg.Date,
		ErrorKind: msg.ErrorKind,
		Reason:    msg.Reason,
		Attempts:  msg.Attempts,
	})
	if err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.cfg.Sender)
	message.SetHeader("To", m.cfg.AlertRecipient)
	message.SetHeader("Subject", fmt.Sprintf("Edition fetch FAILED for %s", msg.Date))
	message.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(message); err != nil {
		emailsTotal.WithLabelValues("alert", "error").Inc()
		return fmt.Errorf("send alert email: %w", err)
	}
	emailsTotal.WithLabelValues("alert", "sent").Inc()
	m.logger.Info("alert email sent", zap.String("date", msg.Date))
	return nil
}
