package service

import (
	"context"

	"go.uber.org/zap"
)

// LogEmailSender writes outbound email to the log. Used until a real
// provider is wired in deployment.
type LogEmailSender struct {
	Logger *zap.Logger
}

// SendEmail implements EmailSender.
func (s *LogEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.Logger.Info("email dispatched",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// LogSMSSender writes outbound SMS to the log.
type LogSMSSender struct {
	Logger *zap.Logger
}

// SendSMS implements SMSSender.
func (s *LogSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.Logger.Info("sms dispatched", zap.String("to", to))
	return nil
}
