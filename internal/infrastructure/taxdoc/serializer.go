// Package taxdoc builds the canonical XML wire format for electronic tax
// documents. Serialization is deterministic: the same invoice state always
// produces byte-identical XML.
package taxdoc

import (
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Issuer carries the fiscal identity stamped into every document
type Issuer struct {
	BusinessName string
	TradeName    string // optional
	TaxID        string
	Address      string
	Environment  string
	EmissionType string
}

// Serializer builds canonical invoice XML for one issuer
type Serializer struct {
	issuer Issuer
}

// NewSerializer creates a serializer for the given issuer
func NewSerializer(issuer Issuer) *Serializer {
	return &Serializer{issuer: issuer}
}

// Serialize renders the invoice as canonical XML. Optional reference data
// (customer email, address) is omitted when absent; missing required data is
// a SCHEMA_ERROR, never an empty element.
func (s *Serializer) Serialize(inv *billing.Invoice) (string, error) {
	if err := s.checkRequired(inv); err != nil {
		return "", err
	}

	doc := invoiceDocument{
		ID:      "comprobante",
		Version: SchemaVersion,
		TaxInfo: taxInfo{
			Environment:   s.issuer.Environment,
			EmissionType:  s.issuer.EmissionType,
			BusinessName:  s.issuer.BusinessName,
			TradeName:     s.issuer.TradeName,
			TaxID:         s.issuer.TaxID,
			AccessKey:     inv.AccessKey.String(),
			DocumentType:  DocTypeInvoice,
			Establishment: inv.Establishment,
			EmissionPoint: inv.EmissionPoint,
			Sequential:    inv.SequentialString(),
			HQAddress:     s.issuer.Address,
		},
		InvoiceInfo: invoiceInfo{
			EmissionDate:       inv.EmissionDate.Format("02/01/2006"),
			BuyerIDType:        buyerIDType(inv.CustomerTaxID),
			BuyerName:          inv.CustomerName,
			BuyerID:            inv.CustomerTaxID,
			BuyerAddress:       inv.CustomerAddress,
			SubtotalWithoutTax: inv.Subtotal.StringFixed(),
			TotalDiscount:      Amount(totalDiscount(inv)),
			TaxTotals:          taxTotals{Totals: buildTaxTotals(inv)},
			Total:              inv.Total.StringFixed(),
			Currency:           currencyName,
			Payments: payments{Payments: []payment{{
				Method: paymentMethodCash,
				Total:  inv.Total.StringFixed(),
			}}},
		},
		Details: details{Details: buildDetails(inv)},
	}

	if inv.CustomerEmail != "" {
		doc.AdditionalInfo = &additionalInfo{Fields: []additionalField{
			{Name: "email", Value: inv.CustomerEmail},
		}}
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal invoice XML: %w", err)
	}
	return xml.Header + string(out), nil
}

// checkRequired verifies the structural data the schema cannot do without
func (s *Serializer) checkRequired(inv *billing.Invoice) error {
	switch {
	case s.issuer.BusinessName == "":
		return shared.NewSchemaError("issuer business name is required")
	case s.issuer.TaxID == "":
		return shared.NewSchemaError("issuer tax id is required")
	case s.issuer.Address == "":
		return shared.NewSchemaError("issuer address is required")
	case s.issuer.Environment == "":
		return shared.NewSchemaError("environment code is required")
	case s.issuer.EmissionType == "":
		return shared.NewSchemaError("emission type is required")
	}
	if inv.AccessKey.IsZero() {
		return shared.NewSchemaError("invoice %s has no access key", inv.Number)
	}
	if inv.CustomerName == "" {
		return shared.NewSchemaError("customer name is required")
	}
	if inv.CustomerTaxID == "" {
		return shared.NewSchemaError("customer tax id is required")
	}
	if len(inv.Lines) == 0 {
		return shared.NewSchemaError("invoice %s has no lines", inv.Number)
	}
	for _, line := range inv.Lines {
		if line.Description == "" {
			return shared.NewSchemaError("line %s has no description", line.ID)
		}
	}
	return nil
}

func buildDetails(inv *billing.Invoice) []detail {
	ds := make([]detail, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		ds = append(ds, detail{
			MainCode:          line.ProductCode,
			Description:       line.Description,
			Quantity:          Quantity(line.Quantity),
			UnitPrice:         Quantity(line.UnitPrice),
			Discount:          Amount(line.Discount),
			SubtotalBeforeTax: Amount(line.Subtotal),
			Taxes: detailTaxes{Taxes: []detailTax{{
				Code:           taxCodeVAT,
				PercentageCode: vatPercentageCode(line.TaxRate),
				Rate:           line.TaxRate.String(),
				Base:           Amount(line.Subtotal),
				Amount:         Amount(line.TaxAmount),
			}}},
		})
	}
	return ds
}

// buildTaxTotals groups lines by VAT rate into one totalImpuesto block per
// rate, ordered by percentage code for a stable layout
func buildTaxTotals(inv *billing.Invoice) []taxTotal {
	type bucket struct {
		base   decimal.Decimal
		amount decimal.Decimal
		rate   decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	for _, line := range inv.Lines {
		code := vatPercentageCode(line.TaxRate)
		b, ok := buckets[code]
		if !ok {
			b = &bucket{base: decimal.Zero, amount: decimal.Zero, rate: line.TaxRate}
			buckets[code] = b
		}
		b.base = b.base.Add(line.Subtotal)
		b.amount = b.amount.Add(line.TaxAmount)
	}

	codes := make([]string, 0, len(buckets))
	for code := range buckets {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	totals := make([]taxTotal, 0, len(codes))
	for _, code := range codes {
		b := buckets[code]
		totals = append(totals, taxTotal{
			Code:           taxCodeVAT,
			PercentageCode: code,
			Base:           Amount(b.base),
			Amount:         Amount(b.amount),
		})
	}
	return totals
}

func totalDiscount(inv *billing.Invoice) decimal.Decimal {
	total := inv.Discount.Amount()
	for _, line := range inv.Lines {
		total = total.Add(line.Discount)
	}
	return total
}

// vatPercentageCode maps a VAT rate to the authority's percentage code table
func vatPercentageCode(rate decimal.Decimal) string {
	switch {
	case rate.IsZero():
		return "0"
	case rate.Equal(decimal.NewFromInt(12)):
		return "2"
	case rate.Equal(decimal.NewFromInt(14)):
		return "3"
	case rate.Equal(decimal.NewFromInt(15)):
		return "4"
	default:
		// Unlisted rates fall under the generic VAT code
		return "2"
	}
}

// buyerIDType derives the buyer identification type code from the identifier
// shape: 13 digits is a company tax id, 10 digits a national id card,
// anything else a passport
func buyerIDType(taxID string) string {
	switch len(taxID) {
	case 13:
		return "04"
	case 10:
		return "05"
	default:
		return "06"
	}
}
