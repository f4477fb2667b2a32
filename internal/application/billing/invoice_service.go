package billing

import (
	"context"

	appinv "github.com/facturacion/backend/internal/application/inventory"
	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/inventory"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceService creates invoices and reserves their stock. Authorization is
// a separate concern handled by AuthorizationService.
type InvoiceService struct {
	invoices  billing.InvoiceRepository
	allocator *appinv.AllocationService
	issuer    config.IssuerConfig
	logger    *zap.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(invoices billing.InvoiceRepository, allocator *appinv.AllocationService, issuer config.IssuerConfig, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		invoices:  invoices,
		allocator: allocator,
		issuer:    issuer,
		logger:    logger,
	}
}

// Create builds a draft invoice, allocates stock for every line and persists
// the result. Stock allocation is all-or-nothing: if any line cannot be
// covered, no invoice is saved and no batch is touched.
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*billing.Invoice, error) {
	if len(input.Lines) == 0 {
		return nil, shared.NewValidationError("invoice must have at least one line")
	}

	sequential, err := s.invoices.NextSequential(ctx, s.issuer.Establishment, s.issuer.EmissionPoint)
	if err != nil {
		return nil, err
	}

	invoice, err := billing.NewInvoice(
		s.issuer.Establishment, s.issuer.EmissionPoint, sequential,
		input.CustomerID, input.CustomerName, input.CustomerTaxID)
	if err != nil {
		return nil, err
	}
	invoice.SetCustomerContact(input.CustomerEmail, input.CustomerAddress)

	requests := make([]appinv.LineAllocationRequest, 0, len(input.Lines))
	for _, in := range input.Lines {
		line, err := invoice.AddLine(in.ProductID, in.ProductCode, in.Description,
			in.Quantity, in.UnitPrice, in.Discount, in.TaxRate)
		if err != nil {
			return nil, err
		}
		requests = append(requests, appinv.LineAllocationRequest{
			InvoiceLineID: line.ID,
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
		})
	}

	if input.Discount.IsPositive() {
		if err := invoice.ApplyDiscount(input.Discount); err != nil {
			return nil, err
		}
	}
	if err := invoice.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.allocator.AllocateAll(ctx, requests); err != nil {
		return nil, err
	}

	if err := s.invoices.Save(ctx, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("total", invoice.Total.StringFixed()))
	return invoice, nil
}

// Get returns an invoice by ID.
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

// GetByAccessKey returns an invoice by its access key.
func (s *InvoiceService) GetByAccessKey(ctx context.Context, key string) (*billing.Invoice, error) {
	return s.invoices.FindByAccessKey(ctx, billing.AccessKey(key))
}

// ListByStatus returns every invoice currently in the given pipeline state.
func (s *InvoiceService) ListByStatus(ctx context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	if !status.IsValid() {
		return nil, shared.NewValidationError("unknown invoice status %q", status)
	}
	return s.invoices.FindByStatus(ctx, status)
}

// AllocationsForLine exposes the audit trail of stock consumed by a line.
func (s *InvoiceService) AllocationsForLine(ctx context.Context, lineID uuid.UUID) ([]inventory.BatchAllocation, error) {
	return s.allocator.AllocationsForLine(ctx, lineID)
}
