package inventory

import (
	"context"

	"github.com/google/uuid"
)

// StockBatchRepository persists stock batches
type StockBatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockBatch, error)
	// FindAvailableByProduct returns batches with remaining stock for a
	// product, ordered by intake date then id. Implementations back this
	// with row locking when called inside an allocation transaction.
	FindAvailableByProduct(ctx context.Context, productID uuid.UUID) ([]StockBatch, error)
	Save(ctx context.Context, batch *StockBatch) error
}

// BatchAllocationRepository persists allocation records for audit
type BatchAllocationRepository interface {
	FindByInvoiceLine(ctx context.Context, invoiceLineID uuid.UUID) ([]BatchAllocation, error)
	Save(ctx context.Context, allocation *BatchAllocation) error
}
