package handler

import (
	billingapp "github.com/facturacion/backend/internal/application/billing"
	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService       *billingapp.InvoiceService
	authorizationService *billingapp.AuthorizationService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService, authorizationService *billingapp.AuthorizationService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:       invoiceService,
		authorizationService: authorizationService,
	}
}

// RegisterRoutes registers the invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/billing/invoices")
	invoices.POST("", h.Create)
	invoices.GET("", h.List)
	invoices.GET("/:id", h.GetByID)
	invoices.GET("/access-key/:key", h.GetByAccessKey)
	invoices.POST("/:id/authorize", h.Authorize)
}

// CreateInvoiceLineRequest represents one line of a new invoice
type CreateInvoiceLineRequest struct {
	ProductID   string `json:"product_id" binding:"required,uuid"`
	ProductCode string `json:"product_code" binding:"max=25"`
	Description string `json:"description" binding:"required,max=300"`
	Quantity    string `json:"quantity" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	Discount    string `json:"discount"`
	TaxRate     string `json:"tax_rate" binding:"required"`
}

// CreateInvoiceRequest represents a request to create a new invoice
type CreateInvoiceRequest struct {
	CustomerID      string                     `json:"customer_id" binding:"required,uuid"`
	CustomerName    string                     `json:"customer_name" binding:"required,max=300"`
	CustomerTaxID   string                     `json:"customer_tax_id" binding:"required,max=13"`
	CustomerEmail   string                     `json:"customer_email" binding:"omitempty,email,max=200"`
	CustomerAddress string                     `json:"customer_address" binding:"max=300"`
	Discount        string                     `json:"discount"`
	Lines           []CreateInvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

func (r *CreateInvoiceRequest) toInput() (billingapp.CreateInvoiceInput, error) {
	customerID, err := uuid.Parse(r.CustomerID)
	if err != nil {
		return billingapp.CreateInvoiceInput{}, err
	}

	discount, err := parseAmount(r.Discount)
	if err != nil {
		return billingapp.CreateInvoiceInput{}, err
	}

	input := billingapp.CreateInvoiceInput{
		CustomerID:      customerID,
		CustomerName:    r.CustomerName,
		CustomerTaxID:   r.CustomerTaxID,
		CustomerEmail:   r.CustomerEmail,
		CustomerAddress: r.CustomerAddress,
		Discount:        discount,
		Lines:           make([]billingapp.CreateInvoiceLineInput, 0, len(r.Lines)),
	}

	for _, line := range r.Lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return billingapp.CreateInvoiceInput{}, err
		}
		quantity, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			return billingapp.CreateInvoiceInput{}, err
		}
		unitPrice, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return billingapp.CreateInvoiceInput{}, err
		}
		lineDiscount, err := parseAmount(line.Discount)
		if err != nil {
			return billingapp.CreateInvoiceInput{}, err
		}
		taxRate, err := decimal.NewFromString(line.TaxRate)
		if err != nil {
			return billingapp.CreateInvoiceInput{}, err
		}

		input.Lines = append(input.Lines, billingapp.CreateInvoiceLineInput{
			ProductID:   productID,
			ProductCode: line.ProductCode,
			Description: line.Description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			Discount:    lineDiscount,
			TaxRate:     taxRate,
		})
	}

	return input, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Create creates a draft invoice and reserves its stock
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, billingapp.ToInvoiceDTO(invoice))
}

// GetByID retrieves an invoice by its ID
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, billingapp.ToInvoiceDTO(invoice))
}

// GetByAccessKey retrieves an invoice by its access key
func (h *InvoiceHandler) GetByAccessKey(c *gin.Context) {
	invoice, err := h.invoiceService.GetByAccessKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, billingapp.ToInvoiceDTO(invoice))
}

// List retrieves invoices filtered by status
func (h *InvoiceHandler) List(c *gin.Context) {
	status := c.Query("status")
	if status == "" {
		h.BadRequest(c, "status query parameter is required")
		return
	}

	invoices, err := h.invoiceService.ListByStatus(c.Request.Context(), billing.InvoiceStatus(status))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	dtos := make([]billingapp.InvoiceDTO, 0, len(invoices))
	for i := range invoices {
		dtos = append(dtos, billingapp.ToInvoiceDTO(&invoices[i]))
	}

	h.Success(c, dtos)
}

// Authorize runs the invoice through the authorization pipeline, resuming
// from whatever state it was left in
func (h *InvoiceHandler) Authorize(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.authorizationService.Authorize(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, billingapp.ToInvoiceDTO(invoice))
}
