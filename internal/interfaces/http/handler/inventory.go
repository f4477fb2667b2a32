package handler

import (
	"time"

	inventoryapp "github.com/facturacion/backend/internal/application/inventory"
	"github.com/facturacion/backend/internal/domain/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryHandler handles stock batch API endpoints
type InventoryHandler struct {
	BaseHandler
	allocationService *inventoryapp.AllocationService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(allocationService *inventoryapp.AllocationService) *InventoryHandler {
	return &InventoryHandler{
		allocationService: allocationService,
	}
}

// RegisterRoutes registers the inventory routes
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	inv.POST("/batches", h.RegisterIntake)
	inv.GET("/lines/:id/allocations", h.AllocationsForLine)
}

// RegisterIntakeRequest represents a request to register a stock intake
type RegisterIntakeRequest struct {
	ProductID   string    `json:"product_id" binding:"required,uuid"`
	BatchNumber string    `json:"batch_number" binding:"required,max=50"`
	IntakeDate  time.Time `json:"intake_date" binding:"required"`
	Quantity    string    `json:"quantity" binding:"required"`
	UnitCost    string    `json:"unit_cost" binding:"required"`
}

// StockBatchResponse represents a stock batch in responses
type StockBatchResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	BatchNumber string          `json:"batch_number"`
	IntakeDate  time.Time       `json:"intake_date"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Consumed    bool            `json:"consumed"`
}

// AllocationResponse represents a batch allocation in responses
type AllocationResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceLineID uuid.UUID       `json:"invoice_line_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	BatchID       uuid.UUID       `json:"batch_id"`
	BatchNumber   string          `json:"batch_number"`
	Quantity      decimal.Decimal `json:"quantity"`
}

func toStockBatchResponse(batch *inventory.StockBatch) StockBatchResponse {
	return StockBatchResponse{
		ID:          batch.ID,
		ProductID:   batch.ProductID,
		BatchNumber: batch.BatchNumber,
		IntakeDate:  batch.IntakeDate,
		Quantity:    batch.Quantity,
		UnitCost:    batch.UnitCost,
		Consumed:    batch.Consumed,
	}
}

func toAllocationResponses(allocations []inventory.BatchAllocation) []AllocationResponse {
	out := make([]AllocationResponse, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, AllocationResponse{
			ID:            a.ID,
			InvoiceLineID: a.InvoiceLineID,
			ProductID:     a.ProductID,
			BatchID:       a.BatchID,
			BatchNumber:   a.BatchNumber,
			Quantity:      a.Quantity,
		})
	}
	return out
}

// RegisterIntake registers a new stock batch
func (h *InventoryHandler) RegisterIntake(c *gin.Context) {
	var req RegisterIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		h.BadRequest(c, "Invalid quantity")
		return
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		h.BadRequest(c, "Invalid unit cost")
		return
	}

	batch, err := h.allocationService.RegisterIntake(c.Request.Context(), productID, req.BatchNumber, req.IntakeDate, quantity, unitCost)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toStockBatchResponse(batch))
}

// AllocationsForLine retrieves the batch allocations backing an invoice line
func (h *InventoryHandler) AllocationsForLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice line ID")
		return
	}

	allocations, err := h.allocationService.AllocationsForLine(c.Request.Context(), lineID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toAllocationResponses(allocations))
}
