package notification

import (
	"context"

	"github.com/facturacion/backend/internal/domain/billing"
	"go.uber.org/zap"
)

// NoopSender satisfies billing.NotificationSender when the broker is
// disabled in configuration. It only logs the event.
type NoopSender struct {
	logger *zap.Logger
}

var _ billing.NotificationSender = (*NoopSender)(nil)

func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

func (s *NoopSender) NotifyAuthorized(_ context.Context, invoice *billing.Invoice) error {
	s.logger.Debug("notification disabled, skipping authorized event",
		zap.String("invoice_id", invoice.ID.String()))
	return nil
}
