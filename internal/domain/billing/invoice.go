package billing

import (
	"fmt"
	"time"

	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the authorization pipeline state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft               InvoiceStatus = "DRAFT"
	InvoiceStatusGenerated           InvoiceStatus = "GENERATED"
	InvoiceStatusSigned              InvoiceStatus = "SIGNED"
	InvoiceStatusReceptionSubmitted  InvoiceStatus = "RECEPTION_SUBMITTED"
	InvoiceStatusAuthorized          InvoiceStatus = "AUTHORIZED"
	InvoiceStatusRejected            InvoiceStatus = "REJECTED"
	InvoiceStatusPendingAuthorization InvoiceStatus = "PENDING_AUTHORIZATION"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusGenerated, InvoiceStatusSigned,
		InvoiceStatusReceptionSubmitted, InvoiceStatusAuthorized,
		InvoiceStatusRejected, InvoiceStatusPendingAuthorization:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for AUTHORIZED: the only state the pipeline never
// leaves. REJECTED can loop back to GENERATED through a resubmission.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusAuthorized
}

// CanTransitionTo checks if the status can transition to the target status
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft:
		return target == InvoiceStatusGenerated
	case InvoiceStatusGenerated:
		return target == InvoiceStatusSigned
	case InvoiceStatusSigned:
		return target == InvoiceStatusReceptionSubmitted || target == InvoiceStatusGenerated
	case InvoiceStatusReceptionSubmitted:
		return target == InvoiceStatusAuthorized ||
			target == InvoiceStatusRejected ||
			target == InvoiceStatusGenerated ||
			target == InvoiceStatusPendingAuthorization
	case InvoiceStatusPendingAuthorization:
		return target == InvoiceStatusAuthorized ||
			target == InvoiceStatusRejected ||
			target == InvoiceStatusGenerated ||
			target == InvoiceStatusReceptionSubmitted
	case InvoiceStatusRejected:
		return target == InvoiceStatusGenerated
	case InvoiceStatusAuthorized:
		return false
	}
	return false
}

// InvoiceLine represents a line item of an invoice
type InvoiceLine struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	TaxRate     decimal.Decimal // percentage, e.g. 15 for 15% VAT
	TaxAmount   decimal.Decimal
	Subtotal    decimal.Decimal // quantity * unitPrice - discount
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewInvoiceLine creates a new invoice line and computes its derived amounts
func NewInvoiceLine(invoiceID, productID uuid.UUID, productCode, description string, quantity, unitPrice, discount, taxRate decimal.Decimal) (*InvoiceLine, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product ID cannot be empty")
	}
	if description == "" {
		return nil, shared.NewValidationError("line description cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewValidationError("unit price cannot be negative")
	}
	if discount.IsNegative() {
		return nil, shared.NewValidationError("discount cannot be negative")
	}
	if taxRate.IsNegative() {
		return nil, shared.NewValidationError("tax rate cannot be negative")
	}

	subtotal := quantity.Mul(unitPrice).Sub(discount)
	if subtotal.IsNegative() {
		return nil, shared.NewValidationError("line discount exceeds line amount")
	}
	taxAmount := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)

	now := time.Now()
	return &InvoiceLine{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		ProductID:   productID,
		ProductCode: productCode,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Discount:    discount,
		TaxRate:     taxRate,
		TaxAmount:   taxAmount,
		Subtotal:    subtotal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Invoice is the aggregate root for an electronic sales invoice and its
// authorization artifacts. State transitions go through the Mark* methods so
// illegal jumps surface as INVALID_STATE instead of corrupting the pipeline.
type Invoice struct {
	shared.BaseEntity
	Version       int64  // optimistic lock, incremented by the repository on update
	Number        string // EEE-PPP-SSSSSSSSS
	Establishment string // 3 digits
	EmissionPoint string // 3 digits
	Sequential    int64
	EmissionDate  time.Time

	CustomerID      uuid.UUID
	CustomerName    string
	CustomerTaxID   string
	CustomerEmail   string // optional
	CustomerAddress string // optional

	Lines    []InvoiceLine `gorm:"-"`
	Subtotal valueobject.Money
	Discount valueobject.Money
	Tax      valueobject.Money
	Total    valueobject.Money

	Status              InvoiceStatus
	AccessKey           AccessKey
	GeneratedXML        string
	SignedXML           string
	AuthorizedXML       string
	AuthorizationNumber string
	AuthorizationDate   *time.Time
	RejectionReason     string
}

// NewInvoice creates a draft invoice
func NewInvoice(establishment, emissionPoint string, sequential int64, customerID uuid.UUID, customerName, customerTaxID string) (*Invoice, error) {
	if len(establishment) != 3 || !isDigits(establishment) {
		return nil, shared.NewValidationError("establishment must be 3 digits, got %q", establishment)
	}
	if len(emissionPoint) != 3 || !isDigits(emissionPoint) {
		return nil, shared.NewValidationError("emission point must be 3 digits, got %q", emissionPoint)
	}
	if sequential <= 0 || sequential > 999999999 {
		return nil, shared.NewValidationError("sequential out of range: %d", sequential)
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer ID cannot be empty")
	}
	if customerName == "" {
		return nil, shared.NewValidationError("customer name cannot be empty")
	}
	if customerTaxID == "" {
		return nil, shared.NewValidationError("customer tax id cannot be empty")
	}

	return &Invoice{
		BaseEntity:    shared.NewBaseEntity(),
		Number:        FormatInvoiceNumber(establishment, emissionPoint, sequential),
		Establishment: establishment,
		EmissionPoint: emissionPoint,
		Sequential:    sequential,
		EmissionDate:  time.Now(),
		CustomerID:    customerID,
		CustomerName:  customerName,
		CustomerTaxID: customerTaxID,
		Subtotal:      valueobject.Zero(),
		Discount:      valueobject.Zero(),
		Tax:           valueobject.Zero(),
		Total:         valueobject.Zero(),
		Status:        InvoiceStatusDraft,
	}, nil
}

// FormatInvoiceNumber renders establishment-point-sequential as EEE-PPP-SSSSSSSSS
func FormatInvoiceNumber(establishment, emissionPoint string, sequential int64) string {
	return fmt.Sprintf("%s-%s-%09d", establishment, emissionPoint, sequential)
}

// Serial returns the 6-digit establishment + emission point serial used in the access key
func (i *Invoice) Serial() string {
	return i.Establishment + i.EmissionPoint
}

// SequentialString returns the zero-padded 9-digit sequential
func (i *Invoice) SequentialString() string {
	return fmt.Sprintf("%09d", i.Sequential)
}

// SetCustomerContact sets the optional customer reference data
func (i *Invoice) SetCustomerContact(email, address string) {
	i.CustomerEmail = email
	i.CustomerAddress = address
	i.Touch()
}

// AddLine adds a line item. Lines can only change while the invoice is a draft.
func (i *Invoice) AddLine(productID uuid.UUID, productCode, description string, quantity, unitPrice, discount, taxRate decimal.Decimal) (*InvoiceLine, error) {
	if i.Status != InvoiceStatusDraft {
		return nil, shared.NewDomainErrorf(shared.ErrInvalidState.Code, "cannot add lines in status %s", i.Status)
	}
	line, err := NewInvoiceLine(i.ID, productID, productCode, description, quantity, unitPrice, discount, taxRate)
	if err != nil {
		return nil, err
	}
	i.Lines = append(i.Lines, *line)
	i.recalculateTotals()
	return &i.Lines[len(i.Lines)-1], nil
}

// ApplyDiscount sets an invoice-level discount on top of line discounts
func (i *Invoice) ApplyDiscount(discount decimal.Decimal) error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainErrorf(shared.ErrInvalidState.Code, "cannot apply discount in status %s", i.Status)
	}
	if discount.IsNegative() {
		return shared.NewValidationError("discount cannot be negative")
	}
	if discount.GreaterThan(i.Subtotal.Amount()) {
		return shared.NewValidationError("discount exceeds invoice subtotal")
	}
	i.Discount = valueobject.NewMoneyUSD(discount)
	i.recalculateTotals()
	return nil
}

// recalculateTotals recomputes the monetary totals from the lines.
// Invariant: total = subtotal - discount + tax.
func (i *Invoice) recalculateTotals() {
	subtotal := valueobject.Zero()
	tax := valueobject.Zero()
	for _, line := range i.Lines {
		subtotal = subtotal.AddAmount(line.Subtotal)
		tax = tax.AddAmount(line.TaxAmount)
	}
	i.Subtotal = subtotal
	i.Tax = tax
	i.Total = subtotal.SubAmount(i.Discount.Amount()).AddAmount(tax.Amount())
	i.Touch()
}

// Validate checks the monetary invariants of the invoice
func (i *Invoice) Validate() error {
	if len(i.Lines) == 0 {
		return shared.NewValidationError("invoice must have at least one line")
	}
	for _, amount := range []valueobject.Money{i.Subtotal, i.Discount, i.Tax, i.Total} {
		if amount.IsNegative() {
			return shared.NewValidationError("monetary fields cannot be negative")
		}
	}
	lineSubtotal := valueobject.Zero()
	for _, line := range i.Lines {
		lineSubtotal = lineSubtotal.AddAmount(line.Subtotal)
	}
	if !lineSubtotal.Equals(i.Subtotal) {
		return shared.NewValidationError("line subtotals %s do not match invoice subtotal %s", lineSubtotal, i.Subtotal)
	}
	expected := i.Subtotal.SubAmount(i.Discount.Amount()).AddAmount(i.Tax.Amount())
	if !expected.Equals(i.Total) {
		return shared.NewValidationError("total %s does not equal subtotal - discount + tax = %s", i.Total, expected)
	}
	return nil
}

// AssignAccessKey assigns the access key exactly once. A key already on the
// invoice is never replaced; resumed runs must reuse it.
func (i *Invoice) AssignAccessKey(key AccessKey) error {
	if !i.AccessKey.IsZero() {
		if i.AccessKey == key {
			return nil
		}
		return shared.NewDomainErrorf(shared.ErrInvalidState.Code, "invoice already has access key %s", i.AccessKey)
	}
	if err := key.Validate(); err != nil {
		return err
	}
	i.AccessKey = key
	i.Touch()
	return nil
}

func (i *Invoice) transitionTo(target InvoiceStatus) error {
	if !i.Status.CanTransitionTo(target) {
		return shared.NewDomainErrorf(shared.ErrInvalidState.Code,
			"invalid transition %s -> %s for invoice %s", i.Status, target, i.Number)
	}
	i.Status = target
	i.Touch()
	return nil
}

// MarkGenerated stores the serialized XML and moves Draft -> Generated.
// The access key must have been assigned first.
func (i *Invoice) MarkGenerated(xml string) error {
	if i.AccessKey.IsZero() {
		return shared.NewDomainErrorf(shared.ErrInvalidState.Code, "cannot generate without an access key")
	}
	if xml == "" {
		return shared.NewValidationError("generated XML cannot be empty")
	}
	if err := i.transitionTo(InvoiceStatusGenerated); err != nil {
		return err
	}
	i.GeneratedXML = xml
	return nil
}

// MarkSigned stores the signed XML and moves Generated -> Signed
func (i *Invoice) MarkSigned(xml string) error {
	if xml == "" {
		return shared.NewValidationError("signed XML cannot be empty")
	}
	if err := i.transitionTo(InvoiceStatusSigned); err != nil {
		return err
	}
	i.SignedXML = xml
	return nil
}

// MarkReceptionSubmitted moves Signed -> ReceptionSubmitted
func (i *Invoice) MarkReceptionSubmitted() error {
	return i.transitionTo(InvoiceStatusReceptionSubmitted)
}

// MarkAuthorized stores the authorization artifacts and reaches the terminal state
func (i *Invoice) MarkAuthorized(number string, date time.Time, authorizedXML string) error {
	if number == "" {
		return shared.NewValidationError("authorization number cannot be empty")
	}
	if err := i.transitionTo(InvoiceStatusAuthorized); err != nil {
		return err
	}
	i.AuthorizationNumber = number
	i.AuthorizationDate = &date
	i.AuthorizedXML = authorizedXML
	i.RejectionReason = ""
	return nil
}

// MarkRejected records the authority's rejection reason
func (i *Invoice) MarkRejected(reason string) error {
	if err := i.transitionTo(InvoiceStatusRejected); err != nil {
		return err
	}
	i.RejectionReason = reason
	return nil
}

// MarkPendingAuthorization records that the polling budget ran out without a
// terminal answer. The run can be resumed later with the same artifacts.
func (i *Invoice) MarkPendingAuthorization() error {
	return i.transitionTo(InvoiceStatusPendingAuthorization)
}

// RevertToGenerated returns a submitted or rejected invoice to Generated so it
// can be resubmitted. The access key and generated XML are kept; the signature
// is discarded because the document will be signed again.
func (i *Invoice) RevertToGenerated(reason string) error {
	if err := i.transitionTo(InvoiceStatusGenerated); err != nil {
		return err
	}
	i.RejectionReason = reason
	i.SignedXML = ""
	return nil
}
