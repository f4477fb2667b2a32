package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func authorizedInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	authorizedAt := time.Date(2026, 8, 29, 10, 15, 30, 0, time.UTC)
	return &billing.Invoice{
		BaseEntity:          shared.NewBaseEntity(),
		Number:              "001-001-000000123",
		CustomerTaxID:       "1790012345001",
		CustomerEmail:       "cliente@example.com",
		Total:               valueobject.NewMoneyUSD(decimal.RequireFromString("29.9")),
		AccessKey:           billing.AccessKey("2908202601179001234500112001001000000123123456781"),
		AuthorizationNumber: "2908202601017900123450011",
		AuthorizationDate:   &authorizedAt,
	}
}

func TestNewAuthorizedEvent(t *testing.T) {
	inv := authorizedInvoice(t)
	event := newAuthorizedEvent(inv)

	assert.Equal(t, inv.ID.String(), event.InvoiceID)
	assert.Equal(t, "001-001-000000123", event.InvoiceNumber)
	assert.Equal(t, string(inv.AccessKey), event.AccessKey)
	assert.Equal(t, inv.AuthorizationNumber, event.AuthorizationNumber)
	assert.Equal(t, *inv.AuthorizationDate, event.AuthorizationDate)
	assert.Equal(t, "29.90", event.Total)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestAuthorizedEventJSON(t *testing.T) {
	inv := authorizedInvoice(t)
	inv.CustomerEmail = ""

	payload, err := json.Marshal(newAuthorizedEvent(inv))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, string(inv.AccessKey), decoded["access_key"])
	assert.Equal(t, "29.90", decoded["total"])
	_, hasEmail := decoded["customer_email"]
	assert.False(t, hasEmail, "empty email must be omitted")
}

func TestNoopSender(t *testing.T) {
	sender := NewNoopSender(zap.NewNop())
	assert.NoError(t, sender.NotifyAuthorized(context.Background(), authorizedInvoice(t)))
}
