package email

import (
	"context"

	"go.uber.org/zap"
)

// noopProvider logs instead of sending, for environments without SMTP.
type noopProvider struct {
	log *zap.Logger
}

func NewNoopProvider(log *zap.Logger) Provider {
	return &noopProvider{log: log.Named("email.noop")}
}

func (p *noopProvider) Send(_ context.Context, msg Message) error {
	p.log.Info("email suppressed",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
