package taxdoc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer() Issuer {
	return Issuer{
		BusinessName: "Comercial Andina S.A.",
		TradeName:    "Andina",
		TaxID:        "1790012345001",
		Address:      "Av. Amazonas N21-147, Quito",
		Environment:  "1",
		EmissionType: "1",
	}
}

func testInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice("001", "002", 123, uuid.New(), "Juan Perez", "1712345678")
	require.NoError(t, err)
	inv.EmissionDate = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	_, err = inv.AddLine(uuid.New(), "PRD-01", "Cable UTP cat6",
		decimal.NewFromFloat(2.5), decimal.NewFromFloat(10.4), decimal.Zero, decimal.NewFromInt(15))
	require.NoError(t, err)

	key, err := billing.GenerateAccessKey(billing.AccessKeyInput{
		EmissionDate: inv.EmissionDate,
		DocumentType: "01",
		IssuerTaxID:  "1790012345001",
		Environment:  "1",
		Serial:       "001002",
		Sequential:   "000000123",
		NumericCode:  "12345678",
		EmissionType: "1",
	})
	require.NoError(t, err)
	require.NoError(t, inv.AssignAccessKey(key))
	return inv
}

func TestSerializer_Serialize(t *testing.T) {
	s := NewSerializer(testIssuer())

	t.Run("is deterministic", func(t *testing.T) {
		inv := testInvoice(t)
		first, err := s.Serialize(inv)
		require.NoError(t, err)
		second, err := s.Serialize(inv)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("carries the versioned schema tag", func(t *testing.T) {
		xml, err := s.Serialize(testInvoice(t))
		require.NoError(t, err)
		assert.Contains(t, xml, `<factura id="comprobante" version="1.1.0">`)
	})

	t.Run("element order follows the wire contract", func(t *testing.T) {
		xml, err := s.Serialize(testInvoice(t))
		require.NoError(t, err)

		ordered := []string{
			"<infoTributaria>",
			"<ambiente>", "<tipoEmision>", "<razonSocial>", "<ruc>", "<claveAcceso>",
			"<codDoc>", "<estab>", "<ptoEmi>", "<secuencial>", "<dirMatriz>",
			"<infoFactura>",
			"<fechaEmision>", "<tipoIdentificacionComprador>", "<razonSocialComprador>",
			"<identificacionComprador>", "<totalSinImpuestos>", "<totalDescuento>",
			"<totalConImpuestos>", "<importeTotal>", "<moneda>", "<pagos>",
			"<detalles>", "<detalle>",
		}
		last := -1
		for _, tag := range ordered {
			idx := strings.Index(xml, tag)
			require.GreaterOrEqual(t, idx, 0, "missing element %s", tag)
			assert.Greater(t, idx, last, "element %s out of order", tag)
			last = idx
		}
	})

	t.Run("currency uses exactly two decimals", func(t *testing.T) {
		xml, err := s.Serialize(testInvoice(t))
		require.NoError(t, err)
		// 2.5 * 10.4 = 26, VAT 15% = 3.90
		assert.Contains(t, xml, "<totalSinImpuestos>26.00</totalSinImpuestos>")
		assert.Contains(t, xml, "<valor>3.90</valor>")
		assert.Contains(t, xml, "<importeTotal>29.90</importeTotal>")
	})

	t.Run("quantities keep up to six decimals", func(t *testing.T) {
		inv := testInvoice(t)
		_, err := inv.AddLine(uuid.New(), "PRD-02", "Cinta",
			decimal.RequireFromString("0.1234567"), decimal.NewFromInt(1), decimal.Zero, decimal.Zero)
		require.NoError(t, err)

		xml, err := s.Serialize(inv)
		require.NoError(t, err)
		assert.Contains(t, xml, "<cantidad>2.5</cantidad>")
		assert.Contains(t, xml, "<cantidad>0.123457</cantidad>") // rounded to 6 places
	})

	t.Run("groups tax totals by rate", func(t *testing.T) {
		inv := testInvoice(t)
		_, err := inv.AddLine(uuid.New(), "PRD-03", "Libro",
			decimal.NewFromInt(1), decimal.NewFromInt(8), decimal.Zero, decimal.Zero)
		require.NoError(t, err)

		xml, err := s.Serialize(inv)
		require.NoError(t, err)
		assert.Contains(t, xml, `<codigoPorcentaje>0</codigoPorcentaje>`)
		assert.Contains(t, xml, `<codigoPorcentaje>4</codigoPorcentaje>`)
	})

	t.Run("omits optional customer data when absent", func(t *testing.T) {
		xml, err := s.Serialize(testInvoice(t))
		require.NoError(t, err)
		assert.NotContains(t, xml, "<direccionComprador>")
		assert.NotContains(t, xml, "<infoAdicional>")
	})

	t.Run("includes optional customer data when present", func(t *testing.T) {
		inv := testInvoice(t)
		inv.SetCustomerContact("juan@example.com", "Calle Larga 123")
		xml, err := s.Serialize(inv)
		require.NoError(t, err)
		assert.Contains(t, xml, "<direccionComprador>Calle Larga 123</direccionComprador>")
		assert.Contains(t, xml, `<campoAdicional nombre="email">juan@example.com</campoAdicional>`)
	})

	t.Run("derives buyer id type from identifier shape", func(t *testing.T) {
		inv := testInvoice(t)
		xml, err := s.Serialize(inv)
		require.NoError(t, err)
		assert.Contains(t, xml, "<tipoIdentificacionComprador>05</tipoIdentificacionComprador>")
	})
}

func TestSerializer_RequiredData(t *testing.T) {
	t.Run("missing access key is a schema error", func(t *testing.T) {
		inv, err := billing.NewInvoice("001", "002", 5, uuid.New(), "ACME", "1790012345001")
		require.NoError(t, err)
		_, err = inv.AddLine(uuid.New(), "P", "Item", decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.Zero, decimal.Zero)
		require.NoError(t, err)

		_, err = NewSerializer(testIssuer()).Serialize(inv)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrSchema))
	})

	t.Run("missing issuer tax id is a schema error", func(t *testing.T) {
		issuer := testIssuer()
		issuer.TaxID = ""
		_, err := NewSerializer(issuer).Serialize(testInvoice(t))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrSchema))
	})

	t.Run("invoice without lines is a schema error", func(t *testing.T) {
		inv, err := billing.NewInvoice("001", "002", 5, uuid.New(), "ACME", "1790012345001")
		require.NoError(t, err)
		key, err := billing.GenerateAccessKey(billing.AccessKeyInput{
			EmissionDate: time.Now(), DocumentType: "01", IssuerTaxID: "1790012345001",
			Environment: "1", Serial: "001002", Sequential: "000000005",
			NumericCode: "11112222", EmissionType: "1",
		})
		require.NoError(t, err)
		require.NoError(t, inv.AssignAccessKey(key))

		_, err = NewSerializer(testIssuer()).Serialize(inv)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrSchema))
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "5.00", Amount(decimal.NewFromInt(5)))
	assert.Equal(t, "5.13", Amount(decimal.RequireFromString("5.125")))
	assert.Equal(t, "2.5", Quantity(decimal.RequireFromString("2.500000")))
	assert.Equal(t, "0.123457", Quantity(decimal.RequireFromString("0.1234567")))
	assert.Equal(t, "3", Quantity(decimal.NewFromInt(3)))
}
