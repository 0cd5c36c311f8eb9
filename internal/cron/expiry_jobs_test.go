package cron

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
	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/internal/quotes"
	"github.com/angelmondragon/pouchlab-backend/pkg/db"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

type recordingNotifier struct {
	messages []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notifications.Message) {
	r.messages = append(r.messages, msg)
}

func setupCronTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.PriceList{}, &models.PriceListEntry{}, &models.Quote{}, &models.QuoteLineItem{}))
	return conn
}

func seedQuote(t *testing.T, repo quotes.Repository, number string, status enums.QuoteStatus, validUntil time.Time) *models.Quote {
	t.Helper()
	quote := &models.Quote{
		Number:     number,
		CustomerID: uuid.New(),
		Status:     status,
		Subtotal:   decimal.NewFromInt(100),
		TaxRate:    decimal.RequireFromString("0.22"),
		Tax:        decimal.NewFromInt(22),
		Total:      decimal.NewFromInt(122),
		ValidUntil: validUntil,
		Items: []models.QuoteLineItem{{
			ProductID:       uuid.New(),
			ProductName:     "Pouch",
			Quantity:        100,
			BaseUnitPrice:   decimal.NewFromInt(1),
			UnitPrice:       decimal.NewFromInt(1),
			DiscountPercent: decimal.Zero,
			LineTotal:       decimal.NewFromInt(100),
		}},
	}
	require.NoError(t, repo.Create(context.Background(), quote))
	return quote
}

func TestQuoteExpiryJobExpiresAndNotifies(t *testing.T) {
	conn := setupCronTestDB(t)
	repo := quotes.NewRepository(conn)
	now := time.Date(2026, time.July, 1, 6, 0, 0, 0, time.UTC)

	stale := seedQuote(t, repo, "Q-2026-0001", enums.QuoteStatusSent, now.AddDate(0, 0, -1))
	fresh := seedQuote(t, repo, "Q-2026-0002", enums.QuoteStatusSent, now.AddDate(0, 0, 5))
	draft := seedQuote(t, repo, "Q-2026-0003", enums.QuoteStatusDraft, now.AddDate(0, 0, -10))

	notifier := &recordingNotifier{}
	jobIface, err := NewQuoteExpiryJob(QuoteExpiryJobParams{
		Logger:     logger.Nop(),
		DB:         db.NewFromConn(conn),
		Repository: repo,
		Notifier:   notifier,
	})
	require.NoError(t, err)
	job := jobIface.(*quoteExpiryJob)
	job.now = func() time.Time { return now }
	assert.Equal(t, "quote-expiry", job.Name())

	expired, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	for id, status := range map[uuid.UUID]enums.QuoteStatus{
		stale.ID: enums.QuoteStatusExpired,
		fresh.ID: enums.QuoteStatusSent,
		draft.ID: enums.QuoteStatusDraft,
	} {
		loaded, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, status, loaded.Status)
	}
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, enums.NotificationTypeQuoteExpired, notifier.messages[0].Type)
	require.NotNil(t, notifier.messages[0].CustomerID)
	assert.Equal(t, stale.CustomerID, *notifier.messages[0].CustomerID)

	expired, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Len(t, notifier.messages, 1)
}

func TestPriceListExpiryJobDeactivatesLapsedLists(t *testing.T) {
	conn := setupCronTestDB(t)
	repo := b2b.NewPriceListRepository(conn)
	now := time.Date(2026, time.July, 1, 6, 0, 0, 0, time.UTC)
	lapsedUntil := now.Add(-time.Hour)

	lapsed := &models.PriceList{
		Name:          "Spring dealers",
		CustomerGroup: enums.CustomerGroupDealer,
		ValidFrom:     now.AddDate(0, -3, 0),
		ValidUntil:    &lapsedUntil,
		IsActive:      true,
		Entries:       []models.PriceListEntry{{ProductID: uuid.New(), B2BPrice: decimal.NewFromInt(1), DiscountPercent: decimal.Zero}},
	}
	require.NoError(t, repo.Create(context.Background(), lapsed))
	open := &models.PriceList{
		Name:          "Evergreen VIP",
		CustomerGroup: enums.CustomerGroupVIP,
		ValidFrom:     now.AddDate(0, -3, 0),
		IsActive:      true,
		Entries:       []models.PriceListEntry{{ProductID: uuid.New(), B2BPrice: decimal.NewFromInt(1), DiscountPercent: decimal.Zero}},
	}
	require.NoError(t, repo.Create(context.Background(), open))

	notifier := &recordingNotifier{}
	jobIface, err := NewPriceListExpiryJob(PriceListExpiryJobParams{
		Logger:     logger.Nop(),
		DB:         db.NewFromConn(conn),
		Repository: repo,
		Notifier:   notifier,
	})
	require.NoError(t, err)
	job := jobIface.(*priceListExpiryJob)
	job.now = func() time.Time { return now }

	deactivated, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, deactivated)

	loaded, err := repo.FindByID(context.Background(), lapsed.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)
	loaded, err = repo.FindByID(context.Background(), open.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, enums.NotificationTypePriceListUpdate, notifier.messages[0].Type)
	assert.Contains(t, notifier.messages[0].Body, "Spring dealers")
}

type failingDeactivator struct{}

func (failingDeactivator) DeactivateExpired(context.Context, *gorm.DB, time.Time) ([]models.PriceList, error) {
	return nil, errors.New("db down")
}

func TestExpiryJobsPropagateErrors(t *testing.T) {
	job, err := NewPriceListExpiryJob(PriceListExpiryJobParams{
		Logger:     logger.Nop(),
		DB:         fakeTxRunner{},
		Repository: failingDeactivator{},
	})
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.Error(t, err)

	_, err = NewQuoteExpiryJob(QuoteExpiryJobParams{Logger: logger.Nop(), DB: fakeTxRunner{}})
	require.Error(t, err)
	_, err = NewPriceListExpiryJob(PriceListExpiryJobParams{Logger: logger.Nop()})
	require.Error(t, err)
}
