package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// Repository persists quotes and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, params listQuotesParams) ([]models.Quote, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	MarkSent(ctx context.Context, id uuid.UUID, at, validUntil time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.QuoteStatus, at time.Time) (bool, error)
	ExpireSent(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.Quote, error)
}

type listQuotesParams struct {
	CustomerID *uuid.UUID
	Status     *enums.QuoteStatus
	Limit      int
	Offset     int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a quote repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, quote *models.Quote) error {
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	for i := range quote.Items {
		if quote.Items[i].ID == uuid.Nil {
			quote.Items[i].ID = uuid.New()
		}
		quote.Items[i].QuoteID = quote.ID
		quote.Items[i].Position = i + 1
	}
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&quote, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, params listQuotesParams) ([]models.Quote, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var quotes []models.Quote
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Offset(params.Offset).Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *repository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error
	return count, err
}

// MarkSent moves a draft to sent and records the validity the customer is
// quoted. It reports whether the quote was still a draft.
func (r *repository) MarkSent(ctx context.Context, id uuid.UUID, at, validUntil time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", id, enums.QuoteStatusDraft).
		Updates(map[string]any{
			"status":      enums.QuoteStatusSent,
			"sent_at":     at,
			"valid_until": validUntil,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionStatus records a decision on a quote (accepted, rejected or
// expired) only if it is still in the expected status. It reports whether a
// row changed.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.QuoteStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"decided_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireSent marks sent quotes whose validity ended before now as expired and
// returns the ones it changed. A quote accepted or rejected between the scan
// and its update is left alone and not returned.
func (r *repository) ExpireSent(ctx context.Context, tx *gorm.DB, now time.Time) ([]models.Quote, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	var stale []models.Quote
	if err := conn.WithContext(ctx).
		Where("status = ? AND valid_until < ?", enums.QuoteStatusSent, now).
		Order("valid_until ASC").
		Find(&stale).Error; err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	expired := make([]models.Quote, 0, len(stale))
	for _, quote := range stale {
		result := conn.WithContext(ctx).
			Model(&models.Quote{}).
			Where("id = ? AND status = ?", quote.ID, enums.QuoteStatusSent).
			Updates(map[string]any{
				"status":     enums.QuoteStatusExpired,
				"decided_at": now,
				"updated_at": now,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		decided := now
		quote.Status = enums.QuoteStatusExpired
		quote.DecidedAt = &decided
		expired = append(expired, quote)
	}
	return expired, nil
}
