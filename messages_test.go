package prolink_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prolink/prolink-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMessagesSendTrimsAndStores(t *testing.T) {
	sender := uuid.New()
	recipient := uuid.New()

	data := &MockDataAPI{}
	data.On("Insert", mock.Anything, prolink.TableMessages, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			record := args.Get(2).(*prolink.Message)
			assert.Equal(t, "hello there", record.Content)
			assert.Equal(t, sender, record.SenderID)

			dest := args.Get(3).(*prolink.Message)
			*dest = *record
		}).
		Return(nil).
		Once()

	msgs := prolink.NewMessages(data, nil)
	created, err := msgs.Send(context.Background(), sender, recipient, nil, "  hello there  ")

	require.NoError(t, err)
	assert.Equal(t, recipient, created.RecipientID)
	data.AssertExpectations(t)
}

func TestMessagesSendRejectsEmptyContent(t *testing.T) {
	data := &MockDataAPI{}
	msgs := prolink.NewMessages(data, nil)

	_, err := msgs.Send(context.Background(), uuid.New(), uuid.New(), nil, "   ")

	assert.Error(t, err)
	assert.True(t, prolink.IsValidationError(err))
	data.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessagesConversationQueriesBothDirections(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()

	earlier := time.Now().Add(-time.Hour)
	later := time.Now()

	data := &MockDataAPI{}
	data.On("Select", mock.Anything, prolink.TableMessages, mock.MatchedBy(func(q prolink.Query) bool {
		return len(q.AnyOf) == 2
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.Get(3).(*[]prolink.Message)
			*dest = []prolink.Message{
				{SenderID: userB, RecipientID: userA, Content: "second", CreatedAt: &later},
				{SenderID: userA, RecipientID: userB, Content: "first", CreatedAt: &earlier},
			}
		}).
		Return(nil).
		Once()

	msgs := prolink.NewMessages(data, nil)
	conversation, err := msgs.Conversation(context.Background(), userA, userB)

	require.NoError(t, err)
	require.Len(t, conversation, 2)
	// Oldest first regardless of fetch order.
	assert.Equal(t, "first", conversation[0].Content)
	assert.Equal(t, "second", conversation[1].Content)
	data.AssertExpectations(t)
}

func TestMessagesMarkRead(t *testing.T) {
	recipient := uuid.New()
	sender := uuid.New()

	data := &MockDataAPI{}
	data.On("Update", mock.Anything, prolink.TableMessages, map[string]any{
		"recipient_id": recipient.String(),
		"sender_id":    sender.String(),
		"read":         false,
	}, map[string]any{"read": true}).
		Return(nil).
		Once()

	msgs := prolink.NewMessages(data, nil)
	err := msgs.MarkRead(context.Background(), recipient, sender)

	assert.NoError(t, err)
	data.AssertExpectations(t)
}

func TestMessagesSubscribeIncomingFiltersByRecipient(t *testing.T) {
	recipient := uuid.New()

	realtime := &MockRealtimeAPI{}
	realtime.On("Subscribe", mock.Anything, prolink.Subscription{
		Table:  prolink.TableMessages,
		Kinds:  []prolink.ChangeKind{prolink.ChangeInsert},
		Filter: "recipient_id=eq." + recipient.String(),
	}, mock.Anything).
		Return(func() {}, nil).
		Once()

	msgs := prolink.NewMessages(&MockDataAPI{}, realtime)
	unsubscribe, err := msgs.SubscribeIncoming(context.Background(), recipient, func(prolink.Message) {})

	require.NoError(t, err)
	assert.NotNil(t, unsubscribe)
	realtime.AssertExpectations(t)
}

func TestMessagesSubscribeWithoutRealtime(t *testing.T) {
	msgs := prolink.NewMessages(&MockDataAPI{}, nil)

	_, err := msgs.SubscribeIncoming(context.Background(), uuid.New(), func(prolink.Message) {})

	assert.ErrorIs(t, err, prolink.ErrBackendUnavailable)
}
