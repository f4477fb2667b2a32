package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	billingapp "github.com/facturacion/backend/internal/application/billing"
	inventoryapp "github.com/facturacion/backend/internal/application/inventory"
	"github.com/facturacion/backend/internal/domain/billing"
	"github.com/facturacion/backend/internal/domain/inventory"
	"github.com/facturacion/backend/internal/domain/shared"
	"github.com/facturacion/backend/internal/infrastructure/authority"
	"github.com/facturacion/backend/internal/infrastructure/config"
	"github.com/facturacion/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockInvoiceRepository implements billing.InvoiceRepository for testing
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByAccessKey(ctx context.Context, key billing.AccessKey) (*billing.Invoice, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByStatus(ctx context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) NextSequential(ctx context.Context, establishment, emissionPoint string) (int64, error) {
	args := m.Called(ctx, establishment, emissionPoint)
	return args.Get(0).(int64), args.Error(1)
}

type stubBatchRepo struct {
	batches map[uuid.UUID]*inventory.StockBatch
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{batches: make(map[uuid.UUID]*inventory.StockBatch)}
}

func (r *stubBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockBatch, error) {
	if batch, ok := r.batches[id]; ok {
		copied := *batch
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *stubBatchRepo) FindAvailableByProduct(_ context.Context, productID uuid.UUID) ([]inventory.StockBatch, error) {
	var out []inventory.StockBatch
	for _, batch := range r.batches {
		if batch.ProductID == productID && !batch.Consumed {
			out = append(out, *batch)
		}
	}
	return out, nil
}

func (r *stubBatchRepo) Save(_ context.Context, batch *inventory.StockBatch) error {
	copied := *batch
	r.batches[batch.ID] = &copied
	return nil
}

type stubAllocationRepo struct {
	allocations []inventory.BatchAllocation
}

func (r *stubAllocationRepo) FindByInvoiceLine(_ context.Context, lineID uuid.UUID) ([]inventory.BatchAllocation, error) {
	var out []inventory.BatchAllocation
	for _, a := range r.allocations {
		if a.InvoiceLineID == lineID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *stubAllocationRepo) Save(_ context.Context, allocation *inventory.BatchAllocation) error {
	r.allocations = append(r.allocations, *allocation)
	return nil
}

type stubSerializer struct{}

func (stubSerializer) Serialize(inv *billing.Invoice) (string, error) {
	return fmt.Sprintf("<factura id=\"comprobante\">%s</factura>", inv.Number), nil
}

type stubSigner struct{}

func (stubSigner) Sign(_ context.Context, document string) (string, error) {
	return document + "<!-- signed -->", nil
}

type stubAuthority struct {
	reception     *authority.ReceptionResult
	authorization *authority.AuthorizationResult
}

func (a *stubAuthority) SubmitReception(_ context.Context, _ string) (*authority.ReceptionResult, error) {
	return a.reception, nil
}

func (a *stubAuthority) QueryAuthorization(_ context.Context, _ string) (*authority.AuthorizationResult, error) {
	return a.authorization, nil
}

type stubNotifier struct{}

func (stubNotifier) NotifyAuthorized(_ context.Context, _ *billing.Invoice) error {
	return nil
}

func testIssuerConfig() config.IssuerConfig {
	return config.IssuerConfig{
		BusinessName:  "ACME S.A.",
		TaxID:         "1790012345001",
		Establishment: "001",
		EmissionPoint: "001",
		Environment:   "1",
		EmissionType:  "1",
	}
}

func newTestRouter(t *testing.T, repo *MockInvoiceRepository, batches *stubBatchRepo, auth *stubAuthority) *gin.Engine {
	t.Helper()

	scope := inventoryapp.NewNoOpTransactionScope(batches, &stubAllocationRepo{})
	allocator := inventoryapp.NewAllocationService(scope, zap.NewNop())
	invoiceService := billingapp.NewInvoiceService(repo, allocator, testIssuerConfig(), zap.NewNop())

	if auth == nil {
		auth = &stubAuthority{}
	}
	authorizationService := billingapp.NewAuthorizationService(
		repo, stubSerializer{}, stubSigner{}, auth, stubNotifier{},
		testIssuerConfig(), config.AuthorityConfig{PollMaxAttempts: 1}, zap.NewNop(),
	)

	engine := gin.New()
	api := engine.Group("/api/v1")
	NewInvoiceHandler(invoiceService, authorizationService).RegisterRoutes(api)
	return engine
}

func seedBatch(t *testing.T, batches *stubBatchRepo, productID uuid.UUID, qty string) {
	t.Helper()
	batch, err := inventory.NewStockBatch(productID, "LOT-1", time.Now().AddDate(0, -1, 0), decimal.RequireFromString(qty), decimal.RequireFromString("4.00"))
	require.NoError(t, err)
	require.NoError(t, batches.Save(context.Background(), batch))
}

func createInvoiceBody(productID uuid.UUID) []byte {
	body := CreateInvoiceRequest{
		CustomerID:    uuid.New().String(),
		CustomerName:  "Cliente Uno",
		CustomerTaxID: "0912345678001",
		Lines: []CreateInvoiceLineRequest{
			{
				ProductID:   productID.String(),
				Description: "Widget",
				Quantity:    "2",
				UnitPrice:   "10.00",
				TaxRate:     "15",
			},
		},
	}
	data, _ := json.Marshal(body)
	return data
}

func TestInvoiceHandlerCreate(t *testing.T) {
	repo := new(MockInvoiceRepository)
	batches := newStubBatchRepo()
	productID := uuid.New()
	seedBatch(t, batches, productID, "10")

	repo.On("NextSequential", mock.Anything, "001", "001").Return(int64(1), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	router := newTestRouter(t, repo, batches, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/invoices", bytes.NewReader(createInvoiceBody(productID)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Success bool                  `json:"success"`
		Data    billingapp.InvoiceDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "001-001-000000001", resp.Data.Number)
	assert.Equal(t, "DRAFT", resp.Data.Status)
	assert.True(t, resp.Data.Total.Equal(decimal.RequireFromString("23.00")), resp.Data.Total.String())
	repo.AssertExpectations(t)
}

func TestInvoiceHandlerCreateRejectsEmptyLines(t *testing.T) {
	repo := new(MockInvoiceRepository)
	router := newTestRouter(t, repo, newStubBatchRepo(), nil)

	body := []byte(`{"customer_id":"` + uuid.New().String() + `","customer_name":"X","customer_tax_id":"0912345678001","lines":[]}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/invoices", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceHandlerCreateInsufficientStock(t *testing.T) {
	repo := new(MockInvoiceRepository)
	batches := newStubBatchRepo()
	productID := uuid.New()
	seedBatch(t, batches, productID, "1")

	repo.On("NextSequential", mock.Anything, "001", "001").Return(int64(1), nil)

	router := newTestRouter(t, repo, batches, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/invoices", bytes.NewReader(createInvoiceBody(productID)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)
}

func TestInvoiceHandlerGetByIDNotFound(t *testing.T) {
	repo := new(MockInvoiceRepository)
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	router := newTestRouter(t, repo, newStubBatchRepo(), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/invoices/"+id.String(), nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestInvoiceHandlerListRequiresStatus(t *testing.T) {
	repo := new(MockInvoiceRepository)
	router := newTestRouter(t, repo, newStubBatchRepo(), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/invoices", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceHandlerAuthorize(t *testing.T) {
	repo := new(MockInvoiceRepository)

	invoice, err := billing.NewInvoice("001", "001", 7, uuid.New(), "Cliente Uno", "0912345678001")
	require.NoError(t, err)
	_, err = invoice.AddLine(uuid.New(), "W-1", "Widget", decimal.RequireFromString("1"), decimal.RequireFromString("10.00"), decimal.Zero, decimal.RequireFromString("15"))
	require.NoError(t, err)

	repo.On("FindByID", mock.Anything, invoice.ID).Return(invoice, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	now := time.Now()
	auth := &stubAuthority{
		reception: &authority.ReceptionResult{Status: authority.ReceptionReceived},
		authorization: &authority.AuthorizationResult{
			Status:              authority.AuthorizationAuthorized,
			AuthorizationNumber: "1234567890",
			AuthorizationDate:   &now,
		},
	}

	router := newTestRouter(t, repo, newStubBatchRepo(), auth)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/invoices/"+invoice.ID.String()+"/authorize", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data billingapp.InvoiceDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AUTHORIZED", resp.Data.Status)
	assert.Equal(t, "1234567890", resp.Data.AuthorizationNumber)
	assert.Len(t, resp.Data.AccessKey, 49)
}
