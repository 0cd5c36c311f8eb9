package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

const (
	defaultReadRetentionDays   = 90
	defaultUnreadRetentionDays = 365
)

// NotificationCleanupJobParams configure the notification retention sweep.
// Read notifications go ReadRetention days after they were read; unread ones
// UnreadRetention days after they were created.
type NotificationCleanupJobParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Repository      notificationPruner
	ReadRetention   int
	UnreadRetention int
}

type notificationPruner interface {
	Prune(ctx context.Context, tx *gorm.DB, readBefore, unreadBefore time.Time) (int64, error)
}

// NewNotificationCleanupJob builds the notification-cleanup job.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	read := params.ReadRetention
	if read <= 0 {
		read = defaultReadRetentionDays
	}
	unread := params.UnreadRetention
	if unread <= 0 {
		unread = defaultUnreadRetentionDays
	}
	if unread < read {
		return nil, fmt.Errorf("unread retention (%d days) shorter than read retention (%d days)", unread, read)
	}
	return &notificationCleanupJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repository,
		read:   read,
		unread: unread,
		now:    time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   notificationPruner
	read   int
	unread int
	now    func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	readBefore := now.AddDate(0, 0, -j.read)
	unreadBefore := now.AddDate(0, 0, -j.unread)

	var pruned int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.Prune(ctx, tx, readBefore, unreadBefore)
		pruned = rows
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"read_before":   readBefore.Format(time.DateOnly),
		"unread_before": unreadBefore.Format(time.DateOnly),
		"pruned":        pruned,
	}), "notification cleanup complete")
	return int(pruned), nil
}
