package prolink

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Notification kinds the marketplace emits.
const (
	NotificationKindMessage  = "message"
	NotificationKindProposal = "proposal"
	NotificationKindJob      = "job"
	NotificationKindSystem   = "system"
)

// Notifications is the per-user activity feed service.
type Notifications struct {
	data     DataAPI
	realtime RealtimeAPI
	logger   Logger
}

// NewNotifications returns a notification service over the given
// backend APIs. realtime may be nil when live updates are not needed.
func NewNotifications(data DataAPI, realtime RealtimeAPI) *Notifications {
	return &Notifications{
		data:     data,
		realtime: realtime,
		logger:   defLogger{},
	}
}

func (n *Notifications) WithLogger(l Logger) *Notifications {
	if l != nil {
		n.logger = l
	}
	return n
}

// Create records an activity item for userID.
func (n *Notifications) Create(ctx context.Context, userID uuid.UUID, kind, title, body string) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, goerrors.New("notification requires a user id", goerrors.CategoryValidation).
			WithTextCode("NOTIFICATION_MISSING_USER")
	}
	if strings.TrimSpace(title) == "" {
		return nil, goerrors.New("notification title is empty", goerrors.CategoryValidation).
			WithTextCode("EMPTY_NOTIFICATION_TITLE")
	}

	ntf := &Notification{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	}

	created := &Notification{}
	if err := n.data.Insert(ctx, TableNotifications, ntf, created); err != nil {
		n.logger.Error("notification create for user %s failed: %v", userID, err)
		return nil, err
	}
	return created, nil
}

// List returns userID's notifications, newest first.
func (n *Notifications) List(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	var items []Notification
	err := n.data.Select(ctx, TableNotifications, Query{
		Match:      map[string]any{"user_id": userID.String()},
		OrderBy:    "created_at",
		Descending: true,
	}, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UnreadCount reports how many of userID's notifications are unread.
func (n *Notifications) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var items []Notification
	err := n.data.Select(ctx, TableNotifications, Query{
		Match: map[string]any{"user_id": userID.String(), "read": false},
	}, &items)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// MarkRead flags a single notification as read.
func (n *Notifications) MarkRead(ctx context.Context, notificationID uuid.UUID) error {
	return n.data.Update(ctx, TableNotifications,
		map[string]any{"id": notificationID.String()},
		map[string]any{"read": true})
}

// MarkAllRead flags every unread notification of userID as read.
func (n *Notifications) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return n.data.Update(ctx, TableNotifications,
		map[string]any{"user_id": userID.String(), "read": false},
		map[string]any{"read": true})
}

// Subscribe streams new notifications for userID until ctx is
// cancelled.
func (n *Notifications) Subscribe(ctx context.Context, userID uuid.UUID, handler func(Notification)) (func(), error) {
	if n.realtime == nil {
		return nil, ErrBackendUnavailable
	}
	return n.realtime.Subscribe(ctx, Subscription{
		Table:  TableNotifications,
		Kinds:  []ChangeKind{ChangeInsert},
		Filter: "user_id=eq." + userID.String(),
	}, func(ev ChangeEvent) {
		ntf, ok := decodeRecord[Notification](ev.Record)
		if !ok {
			n.logger.Warn("could not decode %s change event", ev.Table)
			return
		}
		handler(ntf)
	})
}
