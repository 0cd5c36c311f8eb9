package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

// PriceListExpiryJobParams configure the sweep that deactivates lapsed price lists.
type PriceListExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository priceListDeactivator
	Notifier   notifications.Notifier
}

type priceListDeactivator interface {
	DeactivateExpired(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.PriceList, error)
}

// NewPriceListExpiryJob builds the price-list-expiry job. Notifier is optional.
func NewPriceListExpiryJob(params PriceListExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("price list repository required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Discard{}
	}
	return &priceListExpiryJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repository,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

type priceListExpiryJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     priceListDeactivator
	notifier notifications.Notifier
	now      func() time.Time
}

func (j *priceListExpiryJob) Name() string { return "price-list-expiry" }

func (j *priceListExpiryJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	var lapsed []models.PriceList
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeactivateExpired(ctx, tx, now)
		if err != nil {
			return err
		}
		lapsed = rows
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deactivate price lists: %w", err)
	}

	for _, list := range lapsed {
		j.notifier.Notify(ctx, notifications.Message{
			Type:  enums.NotificationTypePriceListUpdate,
			Title: "Price list expired",
			Body:  fmt.Sprintf("%s for %s customers is no longer active", list.Name, list.CustomerGroup),
		})
	}
	j.logg.Info(j.logg.WithField(ctx, "deactivated", len(lapsed)), "price list expiry sweep complete")
	return len(lapsed), nil
}
