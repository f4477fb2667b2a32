package inventory

import (
	"time"

	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBatch represents a dated intake of product stock. Batches are consumed
// oldest intake first; the remaining quantity never goes below zero.
type StockBatch struct {
	shared.BaseEntity
	ProductID   uuid.UUID
	BatchNumber string
	IntakeDate  time.Time
	Quantity    decimal.Decimal // remaining quantity
	UnitCost    decimal.Decimal
	Consumed    bool
}

// NewStockBatch creates a new stock batch
func NewStockBatch(productID uuid.UUID, batchNumber string, intakeDate time.Time, quantity, unitCost decimal.Decimal) (*StockBatch, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product ID cannot be empty")
	}
	if batchNumber == "" {
		return nil, shared.NewValidationError("batch number cannot be empty")
	}
	if intakeDate.IsZero() {
		return nil, shared.NewValidationError("intake date is required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("batch quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewValidationError("unit cost cannot be negative")
	}

	return &StockBatch{
		BaseEntity:  shared.NewBaseEntity(),
		ProductID:   productID,
		BatchNumber: batchNumber,
		IntakeDate:  intakeDate,
		Quantity:    quantity,
		UnitCost:    unitCost,
		Consumed:    false,
	}, nil
}

// HasStock returns true if the batch has remaining quantity
func (b *StockBatch) HasStock() bool {
	return b.Quantity.GreaterThan(decimal.Zero) && !b.Consumed
}

// Deduct removes exactly the given quantity from the batch. Unlike a greedy
// cap, exceeding the remainder is an error: callers plan allocations first
// and deduct only amounts the plan proved available.
func (b *StockBatch) Deduct(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("deduction quantity must be positive")
	}
	if quantity.GreaterThan(b.Quantity) {
		return shared.NewInsufficientStockError(
			"batch %s holds %s, cannot deduct %s", b.BatchNumber, b.Quantity, quantity)
	}
	b.Quantity = b.Quantity.Sub(quantity)
	if b.Quantity.IsZero() {
		b.Consumed = true
	}
	b.Touch()
	return nil
}

// Add restores quantity to the batch (returns or adjustments)
func (b *StockBatch) Add(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("added quantity must be positive")
	}
	b.Quantity = b.Quantity.Add(quantity)
	b.Consumed = false
	b.Touch()
	return nil
}
