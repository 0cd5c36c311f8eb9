package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pouchlab-backend/internal/b2b"
	"github.com/angelmondragon/pouchlab-backend/internal/configurator"
	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/internal/quotes"
	"github.com/angelmondragon/pouchlab-backend/pkg/config"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	rc := chi.RouteContext(req.Context())
	if rc == nil {
		rc = chi.NewRouteContext()
	}
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubQuoteService struct {
	createFn       func(ctx context.Context, input quotes.CreateQuoteInput) (*models.Quote, error)
	listFn         func(ctx context.Context, params quotes.ListParams) (*quotes.ListResult, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) (*models.Quote, error)
}

func (s *stubQuoteService) Create(ctx context.Context, input quotes.CreateQuoteInput) (*models.Quote, error) {
	return s.createFn(ctx, input)
}

func (s *stubQuoteService) Get(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
}

func (s *stubQuoteService) List(ctx context.Context, params quotes.ListParams) (*quotes.ListResult, error) {
	return s.listFn(ctx, params)
}

func (s *stubQuoteService) Send(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return &models.Quote{ID: id, Status: enums.QuoteStatusSent}, nil
}

func (s *stubQuoteService) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) (*models.Quote, error) {
	return s.updateStatusFn(ctx, id, status)
}

type stubPricer struct {
	got struct {
		customerID uuid.UUID
		basePrice  decimal.Decimal
		quantity   int
	}
}

func (s *stubPricer) CalculatePrice(ctx context.Context, customerID, productID uuid.UUID, basePrice decimal.Decimal, quantity int) (*b2b.PriceResolution, error) {
	s.got.customerID = customerID
	s.got.basePrice = basePrice
	s.got.quantity = quantity
	discounted := basePrice.Mul(decimal.RequireFromString("0.9"))
	return &b2b.PriceResolution{
		CustomerID:      customerID,
		ProductID:       productID,
		Quantity:        quantity,
		OriginalPrice:   basePrice,
		DiscountedPrice: discounted,
		DiscountPercent: decimal.NewFromInt(10),
		Total:           discounted.Mul(decimal.NewFromInt(int64(quantity))),
		Source:          enums.PriceSourceGroup,
	}, nil
}

type stubConfigurator struct {
	configurator.Service
	priceFn func(ctx context.Context, input configurator.PriceInput) (*configurator.PriceResult, error)
}

func (s *stubConfigurator) Price(ctx context.Context, input configurator.PriceInput) (*configurator.PriceResult, error) {
	return s.priceFn(ctx, input)
}

type stubNotifications struct {
	marked []uuid.UUID
	params notifications.ListParams
}

func (s *stubNotifications) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.params = params
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (s *stubNotifications) MarkRead(ctx context.Context, id uuid.UUID) error {
	s.marked = append(s.marked, id)
	return nil
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := logger.Nop()

	resp := httptest.NewRecorder()
	HealthReady(cfg, logg, stubPinger{}, nil)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"redis":"disabled"`)
	assert.Equal(t, "test", resp.Header().Get("X-PouchLab-Env"))

	resp = httptest.NewRecorder()
	HealthReady(cfg, logg, stubPinger{}, stubPinger{err: errors.New("dial tcp")})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	env := decodeEnvelope(t, resp)
	require.NotNil(t, env.Error)
	assert.Equal(t, "down", env.Error.Details["redis"])

	resp = httptest.NewRecorder()
	HealthReady(cfg, logg, stubPinger{err: errors.New("db down")}, nil)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestCreateQuoteReturnsCreated(t *testing.T) {
	customerID := uuid.New()
	productID := uuid.New()
	svc := &stubQuoteService{
		createFn: func(ctx context.Context, input quotes.CreateQuoteInput) (*models.Quote, error) {
			require.Equal(t, customerID, input.CustomerID)
			require.Len(t, input.Items, 1)
			require.Equal(t, 500, input.Items[0].Quantity)
			return &models.Quote{ID: uuid.New(), Number: "Q-2026-0001", CustomerID: customerID, Status: enums.QuoteStatusDraft}, nil
		},
	}

	body := `{"customer_id":"` + customerID.String() + `","items":[{"product_id":"` + productID.String() + `","quantity":500,"unit_price":"0.45"}]}`
	resp := httptest.NewRecorder()
	CreateQuote(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, resp.Code)
	var quote models.Quote
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &quote))
	assert.Equal(t, "Q-2026-0001", quote.Number)
}

func TestCreateQuoteRejectsEmptyItems(t *testing.T) {
	svc := &stubQuoteService{}
	body := `{"customer_id":"` + uuid.NewString() + `","items":[]}`
	resp := httptest.NewRecorder()
	CreateQuote(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
	assert.Contains(t, env.Error.Details, "items")
}

func TestUpdateQuoteStatus(t *testing.T) {
	quoteID := uuid.New()
	svc := &stubQuoteService{
		updateStatusFn: func(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) (*models.Quote, error) {
			if status == enums.QuoteStatusExpired {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote cannot move from draft to expired").
					WithDetails(map[string]any{"from": "draft", "to": "expired"})
			}
			return &models.Quote{ID: id, Status: status}, nil
		},
	}
	handler := UpdateQuoteStatus(svc, logger.Nop())

	req := addRouteParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"accepted"}`)), quoteIDParam, quoteID.String())
	resp := httptest.NewRecorder()
	handler(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	req = addRouteParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"expired"}`)), quoteIDParam, quoteID.String())
	resp = httptest.NewRecorder()
	handler(resp, req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "draft", decodeEnvelope(t, resp).Error.Details["from"])

	req = addRouteParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"sent"}`)), quoteIDParam, quoteID.String())
	resp = httptest.NewRecorder()
	handler(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "sent is not a decision")

	req = addRouteParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"accepted"}`)), quoteIDParam, "not-a-uuid")
	resp = httptest.NewRecorder()
	handler(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListQuotesParsesFilters(t *testing.T) {
	customerID := uuid.New()
	var got quotes.ListParams
	svc := &stubQuoteService{
		listFn: func(ctx context.Context, params quotes.ListParams) (*quotes.ListResult, error) {
			got = params
			return &quotes.ListResult{Items: []models.Quote{}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes?customer_id="+customerID.String()+"&status=sent&limit=5", nil)
	resp := httptest.NewRecorder()
	ListQuotes(svc, logger.Nop())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, got.CustomerID)
	assert.Equal(t, customerID, *got.CustomerID)
	require.NotNil(t, got.Status)
	assert.Equal(t, enums.QuoteStatusSent, *got.Status)
	assert.Equal(t, 5, got.Page.Limit)

	resp = httptest.NewRecorder()
	ListQuotes(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/quotes?status=pending", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetQuoteNotFound(t *testing.T) {
	req := addRouteParam(httptest.NewRequest(http.MethodGet, "/", nil), quoteIDParam, uuid.NewString())
	resp := httptest.NewRecorder()
	GetQuote(&stubQuoteService{}, logger.Nop())(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestB2BPrice(t *testing.T) {
	pricer := &stubPricer{}
	customerID := uuid.New()
	body := `{"customer_id":"` + customerID.String() + `","product_id":"` + uuid.NewString() + `","base_price":"1.00","quantity":1000}`

	resp := httptest.NewRecorder()
	B2BPrice(pricer, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/b2b/price", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, customerID, pricer.got.customerID)
	assert.True(t, pricer.got.basePrice.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 1000, pricer.got.quantity)

	var resolution b2b.PriceResolution
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &resolution))
	assert.True(t, resolution.DiscountedPrice.Equal(decimal.RequireFromString("0.9")))

	resp = httptest.NewRecorder()
	B2BPrice(pricer, logger.Nop())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/b2b/price", strings.NewReader(`{"customer_id":"`+customerID.String()+`","quantity":0}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestConfiguratorPriceMapsValidationErrors(t *testing.T) {
	svc := &stubConfigurator{
		priceFn: func(ctx context.Context, input configurator.PriceInput) (*configurator.PriceResult, error) {
			if input.PlanID == "overnight" {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown plan %q", input.PlanID)
			}
			return &configurator.PriceResult{}, nil
		},
	}
	handler := ConfiguratorPrice(svc, logger.Nop())

	resp := httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":500,"plan_id":"standard"}`)))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	handler(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":500,"plan_id":"overnight"}`)))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, `unknown plan "overnight"`, decodeEnvelope(t, resp).Error.Message)
}

func TestNotificationsHandlers(t *testing.T) {
	svc := &stubNotifications{}
	customerID := uuid.New()

	resp := httptest.NewRecorder()
	ListNotifications(svc, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/?customer_id="+customerID.String()+"&unread_only=true", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.params.CustomerID)
	assert.True(t, svc.params.UnreadOnly)

	id := uuid.New()
	req := addRouteParam(httptest.NewRequest(http.MethodPost, "/", nil), "notificationId", id.String())
	resp = httptest.NewRecorder()
	MarkNotificationRead(svc, logger.Nop())(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []uuid.UUID{id}, svc.marked)

	resp = httptest.NewRecorder()
	ListNotifications(nil, logger.Nop())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
