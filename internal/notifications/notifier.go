package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/pouchlab-backend/pkg/db/models"
	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

// Message is a user-facing notification emitted by domain services.
type Message struct {
	CustomerID *uuid.UUID
	Type       enums.NotificationType
	Title      string
	Body       string
	Link       *string
}

// Notifier is the fire-and-forget sink domain services publish to.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

type storeNotifier struct {
	repo Repository
	logg *logger.Logger
}

// NewNotifier persists messages; failures are logged and never returned.
func NewNotifier(repo Repository, logg *logger.Logger) Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &storeNotifier{repo: repo, logg: logg}
}

func (n *storeNotifier) Notify(ctx context.Context, msg Message) {
	if n.repo == nil {
		return
	}
	if !msg.Type.IsValid() {
		n.logg.Warn(n.logg.WithField(ctx, "notification_type", string(msg.Type)), "dropping notification with unknown type")
		return
	}
	record := &models.Notification{
		CustomerID: msg.CustomerID,
		Type:       msg.Type,
		Title:      msg.Title,
		Message:    msg.Body,
		Link:       msg.Link,
	}
	if err := n.repo.Create(ctx, record); err != nil {
		n.logg.Error(n.logg.WithField(ctx, "notification_type", string(msg.Type)), "store notification failed", err)
	}
}

// Discard drops every message.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, Message) {}
