package b2b

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

func setupB2BTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Customer{}, &models.PriceList{}, &models.PriceListEntry{}))
	return db
}

func seedCustomer(t *testing.T, repo CustomerRepository, email string, group enums.CustomerGroup, active bool) *models.Customer {
	t.Helper()
	terms := DefaultTerms(group)
	customer := &models.Customer{
		Name:             "Customer " + email,
		Email:            email,
		Group:            group,
		DiscountPercent:  terms.DiscountPercent,
		MinOrderAmount:   terms.MinOrderAmount,
		PaymentTermsDays: terms.PaymentTermsDays,
		IsActive:         active,
	}
	require.NoError(t, repo.Create(context.Background(), customer))
	return customer
}

func seedPriceList(t *testing.T, repo PriceListRepository, group enums.CustomerGroup, from time.Time, until *time.Time, productID uuid.UUID, price, percent string) *models.PriceList {
	t.Helper()
	list := &models.PriceList{
		Name:          "List " + from.Format("2006-01-02"),
		CustomerGroup: group,
		ValidFrom:     from,
		ValidUntil:    until,
		IsActive:      true,
		Entries: []models.PriceListEntry{{
			ProductID:       productID,
			B2BPrice:        decimal.RequireFromString(price),
			DiscountPercent: decimal.RequireFromString(percent),
		}},
	}
	require.NoError(t, repo.Create(context.Background(), list))
	return list
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

type recordingNotifier struct {
	messages []notifications.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notifications.Message) {
	r.messages = append(r.messages, msg)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s got %s", expected, actual.String())
}
