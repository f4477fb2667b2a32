package persistence

import (
	"context"

	"github.com/facturacion/backend/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBatchAllocationRepository implements BatchAllocationRepository using GORM
type GormBatchAllocationRepository struct {
	db *gorm.DB
}

// NewGormBatchAllocationRepository creates a new GormBatchAllocationRepository
func NewGormBatchAllocationRepository(db *gorm.DB) *GormBatchAllocationRepository {
	return &GormBatchAllocationRepository{db: db}
}

// FindByInvoiceLine returns the allocation audit records for one invoice line
func (r *GormBatchAllocationRepository) FindByInvoiceLine(ctx context.Context, invoiceLineID uuid.UUID) ([]inventory.BatchAllocation, error) {
	var allocations []inventory.BatchAllocation
	if err := r.db.WithContext(ctx).
		Where("invoice_line_id = ?", invoiceLineID).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// Save persists an allocation record
func (r *GormBatchAllocationRepository) Save(ctx context.Context, allocation *inventory.BatchAllocation) error {
	return r.db.WithContext(ctx).Save(allocation).Error
}

// Ensure GormBatchAllocationRepository implements BatchAllocationRepository
var _ inventory.BatchAllocationRepository = (*GormBatchAllocationRepository)(nil)
