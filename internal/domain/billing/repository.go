package billing

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceRepository persists invoices together with their lines and
// authorization artifacts
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByAccessKey(ctx context.Context, key AccessKey) (*Invoice, error)
	FindByStatus(ctx context.Context, status InvoiceStatus) ([]Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
	// NextSequential returns the next invoice sequential for an
	// establishment / emission point pair
	NextSequential(ctx context.Context, establishment, emissionPoint string) (int64, error)
}
