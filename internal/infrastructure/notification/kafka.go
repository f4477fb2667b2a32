package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AuthorizedEvent is the message published when an invoice reaches the
// authorized state. Consumers use it to trigger delivery of the legal
// document to the customer.
type AuthorizedEvent struct {
	InvoiceID           string    `json:"invoice_id"`
	InvoiceNumber       string    `json:"invoice_number"`
	AccessKey           string    `json:"access_key"`
	AuthorizationNumber string    `json:"authorization_number"`
	AuthorizationDate   time.Time `json:"authorization_date"`
	CustomerID          string    `json:"customer_id"`
	CustomerEmail       string    `json:"customer_email,omitempty"`
	Total               string    `json:"total"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// KafkaSender publishes authorized-invoice events to a Kafka topic. It
// implements billing.NotificationSender.
type KafkaSender struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

var _ billing.NotificationSender = (*KafkaSender)(nil)

func NewKafkaSender(cfg config.NotificationConfig, logger *zap.Logger) *KafkaSender {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           100 * time.Millisecond,
	}
	return &KafkaSender{writer: writer, topic: cfg.Topic, logger: logger}
}

func newAuthorizedEvent(invoice *billing.Invoice) AuthorizedEvent {
	event := AuthorizedEvent{
		InvoiceID:           invoice.ID.String(),
		InvoiceNumber:       invoice.Number,
		AccessKey:           string(invoice.AccessKey),
		AuthorizationNumber: invoice.AuthorizationNumber,
		CustomerID:          invoice.CustomerTaxID,
		CustomerEmail:       invoice.CustomerEmail,
		Total:               invoice.Total.StringFixed(),
		OccurredAt:          time.Now().UTC(),
	}
	if invoice.AuthorizationDate != nil {
		event.AuthorizationDate = *invoice.AuthorizationDate
	}
	return event
}

func (s *KafkaSender) NotifyAuthorized(ctx context.Context, invoice *billing.Invoice) error {
	event := newAuthorizedEvent(invoice)

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(event.AccessKey),
		Value: payload,
	})
	if err != nil {
		return err
	}

	s.logger.Info("authorized event published",
		zap.String("invoice_id", event.InvoiceID),
		zap.String("topic", s.topic))
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
