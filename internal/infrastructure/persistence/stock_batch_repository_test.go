package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func batchColumns() []string {
	return []string{
		"id", "created_at", "updated_at",
		"product_id", "batch_number", "intake_date", "quantity", "unit_cost", "consumed",
	}
}

func TestGormStockBatchRepository_FindByID(t *testing.T) {
	t.Run("finds existing batch", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormStockBatchRepository(gormDB)

		batchID := uuid.New()
		rows := sqlmock.NewRows(batchColumns()).AddRow(
			batchID, time.Now(), time.Now(),
			uuid.New(), "LOT-1", time.Now(), decimal.NewFromInt(5), decimal.NewFromFloat(2.5), false,
		)

		mock.ExpectQuery(`SELECT \* FROM "stock_batches" WHERE id = \$1`).
			WithArgs(batchID, 1).
			WillReturnRows(rows)

		batch, err := repo.FindByID(context.Background(), batchID)
		assert.NoError(t, err)
		require.NotNil(t, batch)
		assert.Equal(t, "LOT-1", batch.BatchNumber)
		assert.True(t, batch.Quantity.Equal(decimal.NewFromInt(5)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing batch", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormStockBatchRepository(gormDB)

		batchID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "stock_batches" WHERE id = \$1`).
			WithArgs(batchID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.FindByID(context.Background(), batchID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStockBatchRepository_FindAvailableByProduct(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormStockBatchRepository(gormDB)

	productID := uuid.New()
	rows := sqlmock.NewRows(batchColumns()).AddRow(
		uuid.New(), time.Now(), time.Now(),
		productID, "LOT-1", time.Now(), decimal.NewFromInt(5), decimal.NewFromFloat(2.5), false,
	).AddRow(
		uuid.New(), time.Now(), time.Now(),
		productID, "LOT-2", time.Now(), decimal.NewFromInt(3), decimal.NewFromFloat(2.7), false,
	)

	// Allocation reads lock the rows so concurrent transactions serialize.
	mock.ExpectQuery(`SELECT \* FROM "stock_batches" WHERE product_id = \$1 AND consumed = FALSE AND quantity > 0 ORDER BY intake_date ASC, id ASC FOR UPDATE`).
		WithArgs(productID).
		WillReturnRows(rows)

	batches, err := repo.FindAvailableByProduct(context.Background(), productID)
	assert.NoError(t, err)
	assert.Len(t, batches, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBatchAllocationRepository_FindByInvoiceLine(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormBatchAllocationRepository(gormDB)

	lineID := uuid.New()
	rows := sqlmock.NewRows([]string{
		"id", "created_at", "updated_at",
		"invoice_line_id", "product_id", "batch_id", "batch_number", "quantity",
	}).AddRow(
		uuid.New(), time.Now(), time.Now(),
		lineID, uuid.New(), uuid.New(), "LOT-1", decimal.NewFromInt(2),
	)

	mock.ExpectQuery(`SELECT \* FROM "batch_allocations" WHERE invoice_line_id = \$1 ORDER BY created_at ASC`).
		WithArgs(lineID).
		WillReturnRows(rows)

	allocations, err := repo.FindByInvoiceLine(context.Background(), lineID)
	assert.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, "LOT-1", allocations[0].BatchNumber)
	assert.True(t, allocations[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
