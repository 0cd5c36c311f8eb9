package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/b2b"
	"github.com/angelmondragon/pouchlab-backend/internal/configurator"
	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/internal/pricing"
	pkgdb "github.com/angelmondragon/pouchlab-backend/pkg/db"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pouchlab-backend/pkg/errors"
	"github.com/angelmondragon/pouchlab-backend/pkg/pagination"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

type recordingNotifier struct {
	messages []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notifications.Message) {
	r.messages = append(r.messages, msg)
}

func (r *recordingNotifier) types() []enums.NotificationType {
	out := make([]enums.NotificationType, 0, len(r.messages))
	for _, msg := range r.messages {
		out = append(out, msg.Type)
	}
	return out
}

type quoteFixture struct {
	db        *gorm.DB
	svc       Service
	repo      Repository
	customers b2b.CustomerService
	products  configurator.ProductRepository
	notifier  *recordingNotifier
	clock     *testClock
}

type fixtureOption func(*ServiceParams)

func newQuoteFixture(t *testing.T, opts ...fixtureOption) quoteFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Customer{},
		&models.PriceList{},
		&models.PriceListEntry{},
		&models.Quote{},
		&models.QuoteLineItem{},
	))

	clock := &testClock{now: time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)}
	customerRepo := b2b.NewCustomerRepository(db)
	customers, err := b2b.NewCustomerService(b2b.CustomerServiceParams{Repository: customerRepo})
	require.NoError(t, err)
	resolver, err := b2b.NewResolver(b2b.ResolverParams{
		Customers:  customerRepo,
		PriceLists: b2b.NewPriceListRepository(db),
		Now:        clock.Now,
	})
	require.NoError(t, err)

	products := configurator.NewProductRepository(db)
	calc, err := pricing.NewCalculator(pricing.CalculatorParams{Policy: pricing.TierPolicyInterpolate})
	require.NoError(t, err)
	pricer, err := configurator.NewService(configurator.ServiceParams{Products: products, Calculator: calc})
	require.NoError(t, err)

	repo := NewRepository(db)
	notifier := &recordingNotifier{}
	params := ServiceParams{
		Repository: repo,
		DB:         pkgdb.NewFromConn(db),
		Customers:  customers,
		Resolver:   resolver,
		Pricer:     pricer,
		Notifier:   notifier,
		TaxRate:    decimal.RequireFromString("0.22"),
		Now:        clock.Now,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return quoteFixture{
		db:        db,
		svc:       svc,
		repo:      repo,
		customers: customers,
		products:  products,
		notifier:  notifier,
		clock:     clock,
	}
}

func (fx quoteFixture) customer(t *testing.T, email string, group enums.CustomerGroup) *models.Customer {
	t.Helper()
	customer, err := fx.customers.Create(context.Background(), b2b.CreateCustomerInput{
		Name:  "Customer " + email,
		Email: email,
		Group: group,
	})
	require.NoError(t, err)
	return customer
}

func price(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s got %s", expected, actual.String())
}

func TestCreateQuoteResolvesEveryLine(t *testing.T) {
	fx := newQuoteFixture(t)
	customer := fx.customer(t, "vip@example.com", enums.CustomerGroupVIP)

	quote, err := fx.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items: []LineItemInput{
			{ProductID: uuid.New(), ProductName: "Stand-up pouch", Quantity: 10000, UnitPrice: price("1.00")},
			{ProductID: uuid.New(), ProductName: "Flat pouch", Quantity: 500, UnitPrice: price("0.50")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.QuoteStatusDraft, quote.Status)
	assert.Equal(t, "Q-2026-0001", quote.Number)
	require.Len(t, quote.Items, 2)
	requireDecimal(t, "0.675", quote.Items[0].UnitPrice)
	requireDecimal(t, "35", quote.Items[0].DiscountPercent)
	requireDecimal(t, "6750", quote.Items[0].LineTotal)
	requireDecimal(t, "0.375", quote.Items[1].UnitPrice)
	requireDecimal(t, "187.5", quote.Items[1].LineTotal)
	requireDecimal(t, "6937.5", quote.Subtotal)
	requireDecimal(t, "1526.25", quote.Tax)
	requireDecimal(t, "8463.75", quote.Total)
	assert.False(t, quote.BelowMinimumOrder)
	assert.True(t, quote.ValidUntil.Equal(fx.clock.now.AddDate(0, 0, 30)))

	loaded, err := fx.svc.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, 1, loaded.Items[0].Position)
	assert.Equal(t, "Stand-up pouch", loaded.Items[0].ProductName)
	requireDecimal(t, "8463.75", loaded.Total)

	second, err := fx.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items:      []LineItemInput{{ProductID: uuid.New(), ProductName: "Sample", Quantity: 100, UnitPrice: price("1.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Q-2026-0002", second.Number)
	assert.True(t, second.BelowMinimumOrder)
}

func TestCreateQuotePricesLinesThroughConfigurator(t *testing.T) {
	fx := newQuoteFixture(t)
	customer := fx.customer(t, "dealer@example.com", enums.CustomerGroupDealer)
	product := &models.Product{
		SKU:                "SUP-MATTE",
		Name:               "Matte stand-up pouch",
		ReferenceUnitPrice: decimal.RequireFromString("0.45"),
		MOQ:                100,
		IsActive:           true,
	}
	require.NoError(t, fx.products.Create(context.Background(), product))

	quote, err := fx.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items:      []LineItemInput{{ProductID: product.ID, Quantity: 500, MaterialID: pricing.MaterialMatte}},
	})
	require.NoError(t, err)
	require.Len(t, quote.Items, 1)
	item := quote.Items[0]
	assert.Equal(t, "Matte stand-up pouch", item.ProductName)
	requireDecimal(t, "0.632", item.BaseUnitPrice)
	requireDecimal(t, "0.5688", item.UnitPrice)
	requireDecimal(t, "284.4", item.LineTotal)
	assert.True(t, quote.BelowMinimumOrder)

	_, err = fx.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items:      []LineItemInput{{ProductID: uuid.New(), Quantity: 500}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestCreateQuotePricesSelectedServices(t *testing.T) {
	fx := newQuoteFixture(t)
	customer := fx.customer(t, "services@example.com", enums.CustomerGroupRetail)
	product := &models.Product{
		SKU:                "SUP-GLOSS",
		Name:               "Gloss stand-up pouch",
		ReferenceUnitPrice: decimal.RequireFromString("0.45"),
		IsActive:           true,
	}
	require.NoError(t, fx.products.Create(context.Background(), product))

	quote, err := fx.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items: []LineItemInput{
			{ProductID: product.ID, Quantity: 500},
			{ProductID: product.ID, Quantity: 500, Services: map[string]bool{pricing.ServiceInsurance: true}},
		},
	})
	require.NoError(t, err)
	require.Len(t, quote.Items, 2)
	plain, insured := quote.Items[0], quote.Items[1]
	assert.Truef(t, insured.BaseUnitPrice.GreaterThan(plain.BaseUnitPrice),
		"insured %s should cost more than %s", insured.BaseUnitPrice, plain.BaseUnitPrice)
}

func TestCreateQuoteValidation(t *testing.T) {
	fx := newQuoteFixture(t, func(p *ServiceParams) { p.Pricer = nil })
	ctx := context.Background()
	customer := fx.customer(t, "retail@example.com", enums.CustomerGroupRetail)
	line := LineItemInput{ProductID: uuid.New(), ProductName: "Pouch", Quantity: 100, UnitPrice: price("0.50")}
	zero := 0

	cases := map[string]CreateQuoteInput{
		"no customer":    {Items: []LineItemInput{line}},
		"no items":       {CustomerID: customer.ID},
		"zero quantity":  {CustomerID: customer.ID, Items: []LineItemInput{{ProductID: uuid.New(), ProductName: "x", UnitPrice: price("1")}}},
		"missing price":  {CustomerID: customer.ID, Items: []LineItemInput{{ProductID: uuid.New(), ProductName: "x", Quantity: 10}}},
		"negative price": {CustomerID: customer.ID, Items: []LineItemInput{{ProductID: uuid.New(), ProductName: "x", Quantity: 10, UnitPrice: price("-1")}}},
		"missing name":   {CustomerID: customer.ID, Items: []LineItemInput{{ProductID: uuid.New(), Quantity: 10, UnitPrice: price("1")}}},
		"bad validity":   {CustomerID: customer.ID, Items: []LineItemInput{line}, ValidForDays: &zero},
	}
	for name, input := range cases {
		_, err := fx.svc.Create(ctx, input)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: got %v", name, err)
	}

	_, err := fx.svc.Create(ctx, CreateQuoteInput{CustomerID: uuid.New(), Items: []LineItemInput{line}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = fx.customers.SetActive(ctx, customer.ID, false)
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, CreateQuoteInput{CustomerID: customer.ID, Items: []LineItemInput{line}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func createDraft(t *testing.T, fx quoteFixture) *models.Quote {
	t.Helper()
	customer := fx.customer(t, uuid.NewString()+"@example.com", enums.CustomerGroupDealer)
	quote, err := fx.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items:      []LineItemInput{{ProductID: uuid.New(), ProductName: "Pouch", Quantity: 1000, UnitPrice: price("0.50")}},
	})
	require.NoError(t, err)
	return quote
}

func TestQuoteLifecycleTransitions(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	quote := createDraft(t, fx)

	_, err := fx.svc.UpdateStatus(ctx, quote.ID, enums.QuoteStatusAccepted)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "draft cannot be accepted, got %v", err)

	_, err = fx.svc.UpdateStatus(ctx, quote.ID, enums.QuoteStatusSent)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	sent, err := fx.svc.Send(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.True(t, sent.SentAt.Equal(fx.clock.now))

	_, err = fx.svc.Send(ctx, quote.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	fx.clock.now = fx.clock.now.Add(time.Hour)
	accepted, err := fx.svc.UpdateStatus(ctx, quote.ID, enums.QuoteStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DecidedAt)
	assert.True(t, accepted.DecidedAt.Equal(fx.clock.now))

	_, err = fx.svc.UpdateStatus(ctx, quote.ID, enums.QuoteStatusRejected)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, map[string]any{"from": "accepted", "to": "rejected"}, typed.Details())

	assert.Equal(t, []enums.NotificationType{
		enums.NotificationTypeQuoteSent,
		enums.NotificationTypeQuoteAccepted,
	}, fx.notifier.types())
	require.NotNil(t, fx.notifier.messages[0].CustomerID)
	assert.Equal(t, quote.CustomerID, *fx.notifier.messages[0].CustomerID)

	_, err = fx.svc.Send(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSendRenewsLapsedDraftValidity(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	lapsed := createDraft(t, fx)
	current := createDraft(t, fx)

	sentCurrent, err := fx.svc.Send(ctx, current.ID)
	require.NoError(t, err)
	assert.True(t, sentCurrent.ValidUntil.Equal(current.ValidUntil), "open validity is kept")

	fx.clock.now = fx.clock.now.AddDate(0, 0, 45)
	sent, err := fx.svc.Send(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusSent, sent.Status)
	want := fx.clock.now.AddDate(0, 0, 30)
	assert.Truef(t, sent.ValidUntil.Equal(want), "valid until %s, want %s", sent.ValidUntil, want)

	loaded, err := fx.svc.Get(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusSent, loaded.Status)

	msg := fx.notifier.messages[len(fx.notifier.messages)-1]
	assert.Equal(t, enums.NotificationTypeQuoteSent, msg.Type)
	assert.Contains(t, msg.Body, want.Format("2006-01-02"))
	assert.NotContains(t, fx.notifier.types(), enums.NotificationTypeQuoteExpired)
}

func TestSentQuoteExpiresLazilyOnRead(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	quote := createDraft(t, fx)
	draft := createDraft(t, fx)

	_, err := fx.svc.Send(ctx, quote.ID)
	require.NoError(t, err)

	fx.clock.now = fx.clock.now.AddDate(0, 0, 31)
	loaded, err := fx.svc.Get(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusExpired, loaded.Status)
	require.NotNil(t, loaded.DecidedAt)

	untouched, err := fx.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusDraft, untouched.Status)

	_, err = fx.svc.UpdateStatus(ctx, quote.ID, enums.QuoteStatusAccepted)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	assert.Equal(t, []enums.NotificationType{
		enums.NotificationTypeQuoteSent,
		enums.NotificationTypeQuoteExpired,
	}, fx.notifier.types())
}

func TestListQuotesByCustomer(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	first := createDraft(t, fx)
	createDraft(t, fx)

	_, err := fx.svc.Send(ctx, first.ID)
	require.NoError(t, err)
	fx.clock.now = fx.clock.now.AddDate(0, 0, 60)

	result, err := fx.svc.List(ctx, ListParams{CustomerID: &first.CustomerID})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, first.ID, result.Items[0].ID)
	assert.Equal(t, enums.QuoteStatusExpired, result.Items[0].Status)
	assert.Len(t, result.Items[0].Items, 1)

	all, err := fx.svc.List(ctx, ListParams{Page: pagination.Params{Limit: 1}})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	require.NotNil(t, all.Page.NextOffset)

	bad := enums.QuoteStatus("archived")
	_, err = fx.svc.List(ctx, ListParams{Status: &bad})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryExpireSent(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	stale := createDraft(t, fx)
	_, err := fx.svc.Send(ctx, stale.ID)
	require.NoError(t, err)

	fx.clock.now = fx.clock.now.AddDate(0, 0, 10)
	fresh := createDraft(t, fx)
	_, err = fx.svc.Send(ctx, fresh.ID)
	require.NoError(t, err)
	draft := createDraft(t, fx)

	expired, err := fx.repo.ExpireSent(ctx, nil, stale.ValidUntil.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, enums.QuoteStatusExpired, expired[0].Status)

	for id, status := range map[uuid.UUID]enums.QuoteStatus{
		stale.ID: enums.QuoteStatusExpired,
		fresh.ID: enums.QuoteStatusSent,
		draft.ID: enums.QuoteStatusDraft,
	} {
		loaded, err := fx.repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, loaded.Status)
	}
}

func TestRepositoryExpireSentSkipsQuotesDecidedMeanwhile(t *testing.T) {
	fx := newQuoteFixture(t)
	ctx := context.Background()
	racer := createDraft(t, fx)
	_, err := fx.svc.Send(ctx, racer.ID)
	require.NoError(t, err)
	fx.clock.now = fx.clock.now.Add(time.Hour)
	other := createDraft(t, fx)
	_, err = fx.svc.Send(ctx, other.ID)
	require.NoError(t, err)

	fired := false
	require.NoError(t, fx.db.Callback().Update().Before("gorm:update").Register("test:accept_first", func(tx *gorm.DB) {
		if fired {
			return
		}
		fired = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE quotes SET status = ? WHERE id = ?", enums.QuoteStatusAccepted, racer.ID).Error)
	}))

	expired, err := fx.repo.ExpireSent(ctx, nil, fx.clock.now.AddDate(0, 0, 60))
	require.NoError(t, err)
	require.True(t, fired)
	require.Len(t, expired, 1)
	assert.Equal(t, other.ID, expired[0].ID)

	loaded, err := fx.repo.FindByID(ctx, racer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QuoteStatusAccepted, loaded.Status)
}

type fakeCounter struct {
	values map[string]int64
	err    error
}

func (f *fakeCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.values[key]++
	return f.values[key], nil
}

func (f *fakeCounter) CounterKey(name string) string {
	return "pl:counter:" + name
}

func TestRedisNumberSourceUsesYearlyCounter(t *testing.T) {
	counter := &fakeCounter{values: map[string]int64{"pl:counter:quote_number:2026": 41}}
	source := &redisNumberSource{counter: counter}

	number, err := source.Next(context.Background(), time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Q-2026-0042", number)

	number, err = source.Next(context.Background(), time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Q-2027-0001", number)
}

func TestCreateQuoteFallsBackWhenCounterFails(t *testing.T) {
	counter := &fakeCounter{values: map[string]int64{}, err: errors.New("redis down")}
	fx := newQuoteFixture(t, func(p *ServiceParams) {
		p.Numbers = &redisNumberSource{counter: counter}
	})

	quote := createDraft(t, fx)
	assert.Equal(t, "Q-2026-0001", quote.Number)
}

func TestStatusMessageSkipsDrafts(t *testing.T) {
	_, ok := StatusMessage(models.Quote{Status: enums.QuoteStatusDraft})
	assert.False(t, ok)

	msg, ok := StatusMessage(models.Quote{ID: uuid.New(), Number: "Q-2026-0007", Status: enums.QuoteStatusRejected})
	require.True(t, ok)
	assert.Equal(t, "Quote Q-2026-0007 rejected", msg.Title)
	require.NotNil(t, msg.Link)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewService(ServiceParams{
		Repository: NewRepository(&gorm.DB{}),
		Customers:  stubCustomers{},
		Resolver:   stubResolver{},
		TaxRate:    decimal.NewFromInt(1),
	})
	require.Error(t, err)
}

type stubCustomers struct{}

func (stubCustomers) Get(context.Context, uuid.UUID) (*models.Customer, error) {
	return nil, nil
}

type stubResolver struct{}

func (stubResolver) CalculatePrice(context.Context, uuid.UUID, uuid.UUID, decimal.Decimal, int) (*b2b.PriceResolution, error) {
	return nil, nil
}
