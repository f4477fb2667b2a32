package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// invoiceSequence backs the per establishment/emission-point invoice
// numbering. The upsert in NextSequential makes number assignment atomic.
type invoiceSequence struct {
	Establishment string `gorm:"primaryKey;size:3"`
	EmissionPoint string `gorm:"primaryKey;size:3"`
	LastValue     int64
	UpdatedAt     time.Time
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice with its lines
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var invoice billing.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByAccessKey finds an invoice by its access key
func (r *GormInvoiceRepository) FindByAccessKey(ctx context.Context, key billing.AccessKey) (*billing.Invoice, error) {
	var invoice billing.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, "access_key = ?", string(key)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByStatus returns every invoice in the given pipeline state, oldest first
func (r *GormInvoiceRepository) FindByStatus(ctx context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	var invoices []billing.Invoice
	if err := r.db.WithContext(ctx).
		Where("status = ?", status.String()).
		Order("created_at ASC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	for i := range invoices {
		if err := r.loadLines(ctx, &invoices[i]); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// Save persists the invoice and replaces its lines in one transaction.
// Updates carry the version the invoice was loaded with; a stale version
// means another process saved first and the write fails with
// CONCURRENCY_CONFLICT instead of overwriting its transition.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if invoice.Version == 0 {
			invoice.Version = 1
			if err := tx.Create(invoice).Error; err != nil {
				return err
			}
		} else {
			loaded := invoice.Version
			invoice.Version = loaded + 1
			res := tx.Model(invoice).
				Where("version = ?", loaded).
				Select("*").
				Updates(invoice)
			if res.Error != nil {
				invoice.Version = loaded
				return res.Error
			}
			if res.RowsAffected == 0 {
				invoice.Version = loaded
				return shared.ErrConcurrencyConflict
			}
		}
		if err := tx.Delete(&billing.InvoiceLine{}, "invoice_id = ?", invoice.ID).Error; err != nil {
			return err
		}
		if len(invoice.Lines) == 0 {
			return nil
		}
		return tx.Create(&invoice.Lines).Error
	})
}

// NextSequential atomically claims the next invoice number for an
// establishment / emission point pair
func (r *GormInvoiceRepository) NextSequential(ctx context.Context, establishment, emissionPoint string) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO invoice_sequences (establishment, emission_point, last_value, updated_at)
		VALUES (?, ?, 1, NOW())
		ON CONFLICT (establishment, emission_point)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value`,
		establishment, emissionPoint).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *GormInvoiceRepository) loadLines(ctx context.Context, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).
		Where("invoice_id = ?", invoice.ID).
		Order("created_at ASC").
		Find(&invoice.Lines).Error
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
