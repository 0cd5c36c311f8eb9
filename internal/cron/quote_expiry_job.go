package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/internal/notifications"
	"github.com/angelmondragon/pouchlab-backend/internal/quotes"
	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

// QuoteExpiryJobParams configure the sweep that expires stale sent quotes.
type QuoteExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository quoteExpirer
	Notifier   notifications.Notifier
}

type quoteExpirer interface {
	ExpireSent(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.Quote, error)
}

// NewQuoteExpiryJob builds the quote-expiry job. Notifier is optional.
func NewQuoteExpiryJob(params QuoteExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("quote repository required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.Discard{}
	}
	return &quoteExpiryJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repository,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

type quoteExpiryJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     quoteExpirer
	notifier notifications.Notifier
	now      func() time.Time
}

func (j *quoteExpiryJob) Name() string { return "quote-expiry" }

func (j *quoteExpiryJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	var expired []models.Quote
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.ExpireSent(ctx, tx, now)
		if err != nil {
			return err
		}
		expired = rows
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expire quotes: %w", err)
	}

	for _, quote := range expired {
		if msg, ok := quotes.StatusMessage(quote); ok {
			j.notifier.Notify(ctx, msg)
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", len(expired)), "quote expiry sweep complete")
	return len(expired), nil
}
