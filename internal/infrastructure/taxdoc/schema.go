package taxdoc

import "encoding/xml"

// SchemaVersion is the invoice schema version accepted by the authority
const SchemaVersion = "1.1.0"

// Document type and payment method codes from the authority's code tables
const (
	DocTypeInvoice = "01"

	paymentMethodCash = "01"

	taxCodeVAT = "2"

	currencyName = "DOLAR"
)

// The wire format is order sensitive: elements must appear exactly in the
// struct field order below. encoding/xml preserves declaration order, which
// makes serialization deterministic.

type invoiceDocument struct {
	XMLName        xml.Name        `xml:"factura"`
	ID             string          `xml:"id,attr"`
	Version        string          `xml:"version,attr"`
	TaxInfo        taxInfo         `xml:"infoTributaria"`
	InvoiceInfo    invoiceInfo     `xml:"infoFactura"`
	Details        details         `xml:"detalles"`
	AdditionalInfo *additionalInfo `xml:"infoAdicional,omitempty"`
}

type taxInfo struct {
	Environment   string `xml:"ambiente"`
	EmissionType  string `xml:"tipoEmision"`
	BusinessName  string `xml:"razonSocial"`
	TradeName     string `xml:"nombreComercial,omitempty"`
	TaxID         string `xml:"ruc"`
	AccessKey     string `xml:"claveAcceso"`
	DocumentType  string `xml:"codDoc"`
	Establishment string `xml:"estab"`
	EmissionPoint string `xml:"ptoEmi"`
	Sequential    string `xml:"secuencial"`
	HQAddress     string `xml:"dirMatriz"`
}

type invoiceInfo struct {
	EmissionDate       string    `xml:"fechaEmision"`
	BuyerIDType        string    `xml:"tipoIdentificacionComprador"`
	BuyerName          string    `xml:"razonSocialComprador"`
	BuyerID            string    `xml:"identificacionComprador"`
	BuyerAddress       string    `xml:"direccionComprador,omitempty"`
	SubtotalWithoutTax string    `xml:"totalSinImpuestos"`
	TotalDiscount      string    `xml:"totalDescuento"`
	TaxTotals          taxTotals `xml:"totalConImpuestos"`
	Total              string    `xml:"importeTotal"`
	Currency           string    `xml:"moneda"`
	Payments           payments  `xml:"pagos"`
}

type taxTotals struct {
	Totals []taxTotal `xml:"totalImpuesto"`
}

type taxTotal struct {
	Code           string `xml:"codigo"`
	PercentageCode string `xml:"codigoPorcentaje"`
	Base           string `xml:"baseImponible"`
	Amount         string `xml:"valor"`
}

type payments struct {
	Payments []payment `xml:"pago"`
}

type payment struct {
	Method string `xml:"formaPago"`
	Total  string `xml:"total"`
}

type details struct {
	Details []detail `xml:"detalle"`
}

type detail struct {
	MainCode          string      `xml:"codigoPrincipal"`
	Description       string      `xml:"descripcion"`
	Quantity          string      `xml:"cantidad"`
	UnitPrice         string      `xml:"precioUnitario"`
	Discount          string      `xml:"descuento"`
	SubtotalBeforeTax string      `xml:"precioTotalSinImpuesto"`
	Taxes             detailTaxes `xml:"impuestos"`
}

type detailTaxes struct {
	Taxes []detailTax `xml:"impuesto"`
}

type detailTax struct {
	Code           string `xml:"codigo"`
	PercentageCode string `xml:"codigoPorcentaje"`
	Rate           string `xml:"tarifa"`
	Base           string `xml:"baseImponible"`
	Amount         string `xml:"valor"`
}

type additionalInfo struct {
	Fields []additionalField `xml:"campoAdicional"`
}

type additionalField struct {
	Name  string `xml:"nombre,attr"`
	Value string `xml:",chardata"`
}
