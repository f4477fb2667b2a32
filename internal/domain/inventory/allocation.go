package inventory

import (
	"sort"
	"strings"

	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchAllocation records the quantity one invoice line consumed from one
// batch. The records for a line always sum to the line's requested quantity;
// a line with no records consumed nothing (allocation is all-or-nothing).
type BatchAllocation struct {
	shared.BaseEntity
	InvoiceLineID uuid.UUID
	ProductID     uuid.UUID
	BatchID       uuid.UUID
	BatchNumber   string
	Quantity      decimal.Decimal
}

// AllocationPlanEntry is one step of a planned FIFO consumption
type AllocationPlanEntry struct {
	BatchID     uuid.UUID
	BatchNumber string
	Quantity    decimal.Decimal
}

// PlanFIFOAllocation selects batches oldest intake first (batch id as tie
// break) and consumes greedily until the requested quantity is covered. It is
// a pure planning step: no batch is mutated. If the eligible batches cannot
// cover the request the whole plan fails with INSUFFICIENT_STOCK.
func PlanFIFOAllocation(batches []StockBatch, requested decimal.Decimal) ([]AllocationPlanEntry, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("requested quantity must be positive")
	}

	eligible := make([]StockBatch, 0, len(batches))
	for _, b := range batches {
		if b.HasStock() {
			eligible = append(eligible, b)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].IntakeDate.Equal(eligible[j].IntakeDate) {
			return strings.Compare(eligible[i].ID.String(), eligible[j].ID.String()) < 0
		}
		return eligible[i].IntakeDate.Before(eligible[j].IntakeDate)
	})

	remaining := requested
	plan := make([]AllocationPlanEntry, 0)
	for _, b := range eligible {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, b.Quantity)
		plan = append(plan, AllocationPlanEntry{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		available := requested.Sub(remaining)
		return nil, shared.NewInsufficientStockError(
			"requested %s but only %s available across %d batches",
			requested, available, len(eligible))
	}
	return plan, nil
}

// NewBatchAllocation creates an allocation record for one plan entry
func NewBatchAllocation(invoiceLineID, productID uuid.UUID, entry AllocationPlanEntry) *BatchAllocation {
	return &BatchAllocation{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceLineID: invoiceLineID,
		ProductID:     productID,
		BatchID:       entry.BatchID,
		BatchNumber:   entry.BatchNumber,
		Quantity:      entry.Quantity,
	}
}
