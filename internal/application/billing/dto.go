package billing

import (
	"time"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateInvoiceLineInput is one line of a new invoice.
type CreateInvoiceLineInput struct {
	ProductID   uuid.UUID
	ProductCode string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	TaxRate     decimal.Decimal
}

// CreateInvoiceInput carries everything needed to create a draft invoice and
// reserve its stock.
type CreateInvoiceInput struct {
	CustomerID      uuid.UUID
	CustomerName    string
	CustomerTaxID   string
	CustomerEmail   string
	CustomerAddress string
	Discount        decimal.Decimal
	Lines           []CreateInvoiceLineInput
}

// InvoiceLineDTO is the serializable view of an invoice line.
type InvoiceLineDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductCode string          `json:"product_code,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// InvoiceDTO is the serializable view of an invoice.
type InvoiceDTO struct {
	ID                  uuid.UUID        `json:"id"`
	Number              string           `json:"number"`
	EmissionDate        time.Time        `json:"emission_date"`
	CustomerID          uuid.UUID        `json:"customer_id"`
	CustomerName        string           `json:"customer_name"`
	CustomerTaxID       string           `json:"customer_tax_id"`
	CustomerEmail       string           `json:"customer_email,omitempty"`
	CustomerAddress     string           `json:"customer_address,omitempty"`
	Lines               []InvoiceLineDTO `json:"lines"`
	Subtotal            decimal.Decimal  `json:"subtotal"`
	Discount            decimal.Decimal  `json:"discount"`
	Tax                 decimal.Decimal  `json:"tax"`
	Total               decimal.Decimal  `json:"total"`
	Status              string           `json:"status"`
	AccessKey           string           `json:"access_key,omitempty"`
	AuthorizationNumber string           `json:"authorization_number,omitempty"`
	AuthorizationDate   *time.Time       `json:"authorization_date,omitempty"`
	RejectionReason     string           `json:"rejection_reason,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ToInvoiceDTO maps an invoice aggregate to its DTO.
func ToInvoiceDTO(inv *billing.Invoice) InvoiceDTO {
	lines := make([]InvoiceLineDTO, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		lines = append(lines, InvoiceLineDTO{
			ID:          line.ID,
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			TaxRate:     line.TaxRate,
			TaxAmount:   line.TaxAmount,
			Subtotal:    line.Subtotal,
		})
	}
	return InvoiceDTO{
		ID:                  inv.ID,
		Number:              inv.Number,
		EmissionDate:        inv.EmissionDate,
		CustomerID:          inv.CustomerID,
		CustomerName:        inv.CustomerName,
		CustomerTaxID:       inv.CustomerTaxID,
		CustomerEmail:       inv.CustomerEmail,
		CustomerAddress:     inv.CustomerAddress,
		Lines:               lines,
		Subtotal:            inv.Subtotal.Amount(),
		Discount:            inv.Discount.Amount(),
		Tax:                 inv.Tax.Amount(),
		Total:               inv.Total.Amount(),
		Status:              inv.Status.String(),
		AccessKey:           string(inv.AccessKey),
		AuthorizationNumber: inv.AuthorizationNumber,
		AuthorizationDate:   inv.AuthorizationDate,
		RejectionReason:     inv.RejectionReason,
		CreatedAt:           inv.CreatedAt,
		UpdatedAt:           inv.UpdatedAt,
	}
}
