package billing

import (
	"context"
	"time"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/infrastructure/authority"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/facturacion/backend/internal/infrastructure/taxdoc"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("facturacion/billing")

// DocumentSerializer produces the canonical invoice XML.
type DocumentSerializer interface {
	Serialize(inv *billing.Invoice) (string, error)
}

// DocumentSigner wraps a serialized document in an enveloped signature.
type DocumentSigner interface {
	Sign(ctx context.Context, document string) (string, error)
}

// AuthorityClient talks to the external tax authority.
type AuthorityClient interface {
	SubmitReception(ctx context.Context, signedDocument string) (*authority.ReceptionResult, error)
	QueryAuthorization(ctx context.Context, accessKey string) (*authority.AuthorizationResult, error)
}

// AuthorizationService drives an invoice through the authorization pipeline:
// access key and XML generation, signing, reception submission and
// authorization polling. Every transition is persisted before the next step
// runs, so a crashed run resumes from the last confirmed state instead of
// restarting the pipeline. The access key and generated XML are never
// recomputed on resume.
type AuthorizationService struct {
	invoices   billing.InvoiceRepository
	serializer DocumentSerializer
	signer     DocumentSigner
	authority  AuthorityClient
	notifier   billing.NotificationSender
	issuer     config.IssuerConfig

	pollInterval    time.Duration
	pollMaxAttempts int

	logger *zap.Logger
}

// NewAuthorizationService creates a new AuthorizationService.
func NewAuthorizationService(
	invoices billing.InvoiceRepository,
	serializer DocumentSerializer,
	signer DocumentSigner,
	authorityClient AuthorityClient,
	notifier billing.NotificationSender,
	issuer config.IssuerConfig,
	authorityCfg config.AuthorityConfig,
	logger *zap.Logger,
) *AuthorizationService {
	attempts := authorityCfg.PollMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &AuthorizationService{
		invoices:        invoices,
		serializer:      serializer,
		signer:          signer,
		authority:       authorityClient,
		notifier:        notifier,
		issuer:          issuer,
		pollInterval:    authorityCfg.PollInterval,
		pollMaxAttempts: attempts,
		logger:          logger,
	}
}

// Authorize runs the pipeline for one invoice, starting from whatever state
// the invoice is currently in. Calling it on an already authorized invoice is
// a no-op; calling it on a rejected or pending invoice resumes or resubmits.
func (s *AuthorizationService) Authorize(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	ctx, span := tracer.Start(ctx, "billing.Authorize")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", invoiceID.String()))

	invoice, err := s.authorize(ctx, invoiceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization pipeline failed")
		return invoice, err
	}
	if invoice != nil {
		span.SetAttributes(attribute.String("invoice.status", invoice.Status.String()))
	}
	return invoice, nil
}

func (s *AuthorizationService) authorize(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number))

	if invoice.Status == billing.InvoiceStatusAuthorized {
		log.Info("invoice already authorized")
		return invoice, nil
	}

	if invoice.Status == billing.InvoiceStatusRejected {
		if err := invoice.RevertToGenerated(invoice.RejectionReason); err != nil {
			return nil, err
		}
		if err := s.invoices.Save(ctx, invoice); err != nil {
			return nil, err
		}
		log.Info("rejected invoice reverted for resubmission")
	}

	if invoice.Status == billing.InvoiceStatusDraft {
		if err := s.generate(ctx, invoice); err != nil {
			return nil, err
		}
		log.Info("invoice generated", zap.String("access_key", string(invoice.AccessKey)))
	}

	if invoice.Status == billing.InvoiceStatusGenerated {
		if err := s.sign(ctx, invoice); err != nil {
			return nil, err
		}
		log.Info("invoice signed")
	}

	if invoice.Status == billing.InvoiceStatusSigned {
		if err := s.submitReception(ctx, invoice); err != nil {
			return invoice, err
		}
		log.Info("reception accepted")
	}

	if invoice.Status == billing.InvoiceStatusReceptionSubmitted ||
		invoice.Status == billing.InvoiceStatusPendingAuthorization {
		return s.pollAuthorization(ctx, invoice, log)
	}

	return invoice, nil
}

// generate assigns the access key (reusing one already on the invoice) and
// serializes the canonical XML.
func (s *AuthorizationService) generate(ctx context.Context, invoice *billing.Invoice) error {
	ctx, span := tracer.Start(ctx, "billing.Generate")
	defer span.End()

	if invoice.AccessKey.IsZero() {
		code, err := billing.NewNumericCode()
		if err != nil {
			return err
		}
		key, err := billing.GenerateAccessKey(billing.AccessKeyInput{
			EmissionDate: invoice.EmissionDate,
			DocumentType: taxdoc.DocTypeInvoice,
			IssuerTaxID:  s.issuer.TaxID,
			Environment:  s.issuer.Environment,
			Serial:       invoice.Serial(),
			Sequential:   invoice.SequentialString(),
			NumericCode:  code,
			EmissionType: s.issuer.EmissionType,
		})
		if err != nil {
			return err
		}
		if err := invoice.AssignAccessKey(key); err != nil {
			return err
		}
	}

	xml, err := s.serializer.Serialize(invoice)
	if err != nil {
		return err
	}
	if err := invoice.MarkGenerated(xml); err != nil {
		return err
	}
	return s.invoices.Save(ctx, invoice)
}

// sign signs the generated XML. On failure the invoice stays Generated and
// the error surfaces for a manual retry.
func (s *AuthorizationService) sign(ctx context.Context, invoice *billing.Invoice) error {
	ctx, span := tracer.Start(ctx, "billing.Sign")
	defer span.End()

	signed, err := s.signer.Sign(ctx, invoice.GeneratedXML)
	if err != nil {
		return err
	}
	if err := invoice.MarkSigned(signed); err != nil {
		return err
	}
	return s.invoices.Save(ctx, invoice)
}

// submitReception sends the signed document. The submitted state is recorded
// only after the authority confirms reception; a transport failure leaves the
// invoice Signed, and a returned document reverts to Generated with the
// authority's reason. Reception is never auto-retried within one run.
func (s *AuthorizationService) submitReception(ctx context.Context, invoice *billing.Invoice) error {
	ctx, span := tracer.Start(ctx, "billing.SubmitReception")
	defer span.End()

	result, err := s.authority.SubmitReception(ctx, invoice.SignedXML)
	if err != nil {
		return err
	}

	if result.Status != authority.ReceptionReceived {
		reason := result.Reason()
		if reason == "" {
			reason = "document returned by reception service"
		}
		if err := invoice.RevertToGenerated(reason); err != nil {
			return err
		}
		if err := s.invoices.Save(ctx, invoice); err != nil {
			return err
		}
		return shared.NewBusinessRejection("reception returned the document: %s", reason)
	}

	if err := invoice.MarkReceptionSubmitted(); err != nil {
		return err
	}
	return s.invoices.Save(ctx, invoice)
}

// pollAuthorization queries the authority up to the configured attempt bound
// with a fixed delay between attempts. Transport errors consume an attempt.
// Exhausting the bound without a terminal answer parks the invoice as
// pending, which is a clean resumable stop rather than an error.
func (s *AuthorizationService) pollAuthorization(ctx context.Context, invoice *billing.Invoice, log *zap.Logger) (*billing.Invoice, error) {
	ctx, span := tracer.Start(ctx, "billing.PollAuthorization")
	defer span.End()

	for attempt := 1; attempt <= s.pollMaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.wait(ctx); err != nil {
				return invoice, err
			}
		}

		result, err := s.authority.QueryAuthorization(ctx, string(invoice.AccessKey))
		if err != nil {
			log.Warn("authorization query failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		switch result.Status {
		case authority.AuthorizationAuthorized:
			return s.markAuthorized(ctx, invoice, result, log)

		case authority.AuthorizationNotAuthorized, authority.AuthorizationRejected:
			reason := result.Reason()
			if reason == "" {
				reason = "document not authorized"
			}
			if err := invoice.MarkRejected(reason); err != nil {
				return invoice, err
			}
			if err := s.invoices.Save(ctx, invoice); err != nil {
				return invoice, err
			}
			log.Info("invoice rejected", zap.String("reason", reason))
			return invoice, shared.NewBusinessRejection("%s", reason)

		default:
			log.Info("authorization still pending", zap.Int("attempt", attempt))
		}
	}

	if invoice.Status != billing.InvoiceStatusPendingAuthorization {
		if err := invoice.MarkPendingAuthorization(); err != nil {
			return invoice, err
		}
		if err := s.invoices.Save(ctx, invoice); err != nil {
			return invoice, err
		}
	}
	log.Info("polling budget exhausted, invoice parked as pending")
	return invoice, nil
}

func (s *AuthorizationService) markAuthorized(ctx context.Context, invoice *billing.Invoice, result *authority.AuthorizationResult, log *zap.Logger) (*billing.Invoice, error) {
	date := time.Now()
	if result.AuthorizationDate != nil {
		date = *result.AuthorizationDate
	}
	document := result.AuthorizedDocument
	if document == "" {
		document = invoice.SignedXML
	}

	if err := invoice.MarkAuthorized(result.AuthorizationNumber, date, document); err != nil {
		return invoice, err
	}
	if err := s.invoices.Save(ctx, invoice); err != nil {
		return invoice, err
	}
	log.Info("invoice authorized",
		zap.String("authorization_number", invoice.AuthorizationNumber))

	// Best effort: the authorized outcome is already committed and a failed
	// notification never reverts it.
	if s.notifier != nil {
		if err := s.notifier.NotifyAuthorized(ctx, invoice); err != nil {
			log.Warn("authorized notification failed", zap.Error(err))
		}
	}
	return invoice, nil
}

func (s *AuthorizationService) wait(ctx context.Context) error {
	if s.pollInterval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume re-runs the pipeline for every invoice parked in a resumable state.
// It is meant to be called at startup or from a scheduler after crashes or
// exhausted polling budgets.
func (s *AuthorizationService) Resume(ctx context.Context) error {
	resumable := []billing.InvoiceStatus{
		billing.InvoiceStatusGenerated,
		billing.InvoiceStatusSigned,
		billing.InvoiceStatusReceptionSubmitted,
		billing.InvoiceStatusPendingAuthorization,
	}

	for _, status := range resumable {
		invoices, err := s.invoices.FindByStatus(ctx, status)
		if err != nil {
			return err
		}
		for i := range invoices {
			if _, err := s.Authorize(ctx, invoices[i].ID); err != nil {
				s.logger.Warn("resume attempt failed",
					zap.String("invoice_id", invoices[i].ID.String()),
					zap.String("status", status.String()),
					zap.Error(err))
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}
