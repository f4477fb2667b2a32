package inventory

import (
	"context"
	"time"

	"github.com/facturacion/backend/internal/domain/inventory"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LineAllocationRequest asks for stock to cover one invoice line.
type LineAllocationRequest struct {
	InvoiceLineID uuid.UUID
	ProductID     uuid.UUID
	Quantity      decimal.Decimal
}

// AllocationService consumes stock batches oldest intake first. Allocation is
// all-or-nothing per request: either every line is covered and every touched
// batch is decremented inside one transaction, or nothing changes.
type AllocationService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewAllocationService creates a new AllocationService.
func NewAllocationService(scope TransactionScope, logger *zap.Logger) *AllocationService {
	return &AllocationService{scope: scope, logger: logger}
}

// Allocate covers a single invoice line from available batches.
func (s *AllocationService) Allocate(ctx context.Context, req LineAllocationRequest) ([]inventory.BatchAllocation, error) {
	results, err := s.AllocateAll(ctx, []LineAllocationRequest{req})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// AllocateAll covers every requested line inside one transaction. The batch
// rows are read with a row lock, so two concurrent allocations for the same
// product serialize instead of double-spending a batch.
func (s *AllocationService) AllocateAll(ctx context.Context, reqs []LineAllocationRequest) ([]inventory.BatchAllocation, error) {
	if len(reqs) == 0 {
		return nil, shared.NewValidationError("no allocation requests given")
	}
	for _, req := range reqs {
		if req.InvoiceLineID == uuid.Nil {
			return nil, shared.NewValidationError("invoice line ID cannot be empty")
		}
		if req.ProductID == uuid.Nil {
			return nil, shared.NewValidationError("product ID cannot be empty")
		}
		if req.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewValidationError("requested quantity must be positive")
		}
	}

	var records []inventory.BatchAllocation
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		records = records[:0]
		for _, req := range reqs {
			lineRecords, err := s.allocateLine(ctx, repos, req)
			if err != nil {
				return err
			}
			records = append(records, lineRecords...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock allocated",
		zap.Int("lines", len(reqs)),
		zap.Int("allocations", len(records)))
	return records, nil
}

func (s *AllocationService) allocateLine(ctx context.Context, repos TransactionalRepositories, req LineAllocationRequest) ([]inventory.BatchAllocation, error) {
	batches, err := repos.BatchRepo().FindAvailableByProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	plan, err := inventory.PlanFIFOAllocation(batches, req.Quantity)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*inventory.StockBatch, len(batches))
	for i := range batches {
		byID[batches[i].ID] = &batches[i]
	}

	records := make([]inventory.BatchAllocation, 0, len(plan))
	for _, entry := range plan {
		batch := byID[entry.BatchID]
		if err := batch.Deduct(entry.Quantity); err != nil {
			return nil, err
		}
		if err := repos.BatchRepo().Save(ctx, batch); err != nil {
			return nil, err
		}

		record := inventory.NewBatchAllocation(req.InvoiceLineID, req.ProductID, entry)
		if err := repos.AllocationRepo().Save(ctx, record); err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// RegisterIntake records a new dated batch of product stock.
func (s *AllocationService) RegisterIntake(ctx context.Context, productID uuid.UUID, batchNumber string, intakeDate time.Time, quantity, unitCost decimal.Decimal) (*inventory.StockBatch, error) {
	batch, err := inventory.NewStockBatch(productID, batchNumber, intakeDate, quantity, unitCost)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.BatchRepo().Save(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock intake registered",
		zap.String("product_id", productID.String()),
		zap.String("batch_number", batchNumber),
		zap.String("quantity", quantity.String()))
	return batch, nil
}

// AllocationsForLine returns the audit records for one invoice line.
func (s *AllocationService) AllocationsForLine(ctx context.Context, invoiceLineID uuid.UUID) ([]inventory.BatchAllocation, error) {
	var records []inventory.BatchAllocation
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.AllocationRepo().FindByInvoiceLine(ctx, invoiceLineID)
		if err != nil {
			return err
		}
		records = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
