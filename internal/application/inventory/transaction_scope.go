package inventory

import (
	"context"

	"github.com/facturacion/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the inventory repositories
// within a transaction. Both repositories share the same underlying database
// transaction, which is what makes batch allocation all-or-nothing.
type TransactionalRepositories interface {
	// BatchRepo returns the stock batch repository scoped to the current transaction
	BatchRepo() inventory.StockBatchRepository
	// AllocationRepo returns the allocation record repository scoped to the current transaction
	AllocationRepo() inventory.BatchAllocationRepository
}

// NoOpTransactionScope runs the function without a real transaction. Useful
// in tests backed by in-memory repositories.
type NoOpTransactionScope struct {
	batchRepo      inventory.StockBatchRepository
	allocationRepo inventory.BatchAllocationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	batchRepo inventory.StockBatchRepository,
	allocationRepo inventory.BatchAllocationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batchRepo:      batchRepo,
		allocationRepo: allocationRepo,
	}
}

// Execute runs the function without transactional guarantees.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BatchRepo returns the stock batch repository.
func (s *NoOpTransactionScope) BatchRepo() inventory.StockBatchRepository {
	return s.batchRepo
}

// AllocationRepo returns the allocation record repository.
func (s *NoOpTransactionScope) AllocationRepo() inventory.BatchAllocationRepository {
	return s.allocationRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
