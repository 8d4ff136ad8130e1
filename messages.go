package prolink

import (
	"context"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Messages is the direct-message service between clients and
// professionals, optionally scoped to a job.
type Messages struct {
	data     DataAPI
	realtime RealtimeAPI
	logger   Logger
}

// NewMessages returns a message service over the given backend APIs.
// realtime may be nil when live updates are not needed.
func NewMessages(data DataAPI, realtime RealtimeAPI) *Messages {
	return &Messages{
		data:     data,
		realtime: realtime,
		logger:   defLogger{},
	}
}

func (m *Messages) WithLogger(l Logger) *Messages {
	if l != nil {
		m.logger = l
	}
	return m
}

// Send delivers a message from sender to recipient. jobID may be nil
// for conversations not attached to a job.
func (m *Messages) Send(ctx context.Context, senderID, recipientID uuid.UUID, jobID *uuid.UUID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, goerrors.New("message content is empty", goerrors.CategoryValidation).
			WithTextCode("EMPTY_MESSAGE")
	}
	if senderID == uuid.Nil || recipientID == uuid.Nil {
		return nil, goerrors.New("message requires sender and recipient", goerrors.CategoryValidation).
			WithTextCode("MESSAGE_MISSING_PARTIES")
	}

	msg := &Message{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		JobID:       jobID,
		Content:     content,
	}

	created := &Message{}
	if err := m.data.Insert(ctx, TableMessages, msg, created); err != nil {
		m.logger.Error("message send from %s failed: %v", senderID, err)
		return nil, err
	}
	return created, nil
}

// Conversation returns the messages exchanged between two users,
// oldest first. The two directions are fetched as an OR of match
// groups and merged client side.
func (m *Messages) Conversation(ctx context.Context, userA, userB uuid.UUID) ([]Message, error) {
	var msgs []Message
	err := m.data.Select(ctx, TableMessages, Query{
		AnyOf: []map[string]any{
			{"sender_id": userA.String(), "recipient_id": userB.String()},
			{"sender_id": userB.String(), "recipient_id": userA.String()},
		},
	}, &msgs)
	if err != nil {
		return nil, err
	}

	sort.Slice(msgs, func(i, j int) bool {
		ti, tj := msgs[i].CreatedAt, msgs[j].CreatedAt
		if ti == nil || tj == nil {
			return tj != nil
		}
		return ti.Before(*tj)
	})
	return msgs, nil
}

// Inbox returns the messages addressed to userID, newest first.
func (m *Messages) Inbox(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	var msgs []Message
	err := m.data.Select(ctx, TableMessages, Query{
		Match:      map[string]any{"recipient_id": userID.String()},
		OrderBy:    "created_at",
		Descending: true,
	}, &msgs)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// UnreadCount reports how many messages addressed to userID are still
// unread.
func (m *Messages) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var msgs []Message
	err := m.data.Select(ctx, TableMessages, Query{
		Match: map[string]any{"recipient_id": userID.String(), "read": false},
	}, &msgs)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

// MarkRead flags every message from senderID to recipientID as read.
func (m *Messages) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) error {
	return m.data.Update(ctx, TableMessages, map[string]any{
		"recipient_id": recipientID.String(),
		"sender_id":    senderID.String(),
		"read":         false,
	}, map[string]any{"read": true})
}

// SubscribeIncoming streams inserts addressed to userID until ctx is
// cancelled. Returns the unsubscribe func, which is also safe to call
// after cancellation.
func (m *Messages) SubscribeIncoming(ctx context.Context, userID uuid.UUID, handler func(Message)) (func(), error) {
	if m.realtime == nil {
		return nil, ErrBackendUnavailable
	}
	return m.realtime.Subscribe(ctx, Subscription{
		Table:  TableMessages,
		Kinds:  []ChangeKind{ChangeInsert},
		Filter: "recipient_id=eq." + userID.String(),
	}, func(ev ChangeEvent) {
		msg, ok := decodeRecord[Message](ev.Record)
		if !ok {
			m.logger.Warn("could not decode %s change event", ev.Table)
			return
		}
		handler(msg)
	})
}
