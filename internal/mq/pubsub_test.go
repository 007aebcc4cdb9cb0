package mq

import (
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
)

func TestOutgoingMessageCopiesAttributes(t *testing.T) {
	attrs := map[string]string{AttrKind: KindImageRelease}
	msg := outgoingMessage([]byte("x"), attrs)

	assert.Equal(t, KindImageRelease, msg.Attributes[AttrKind])
	assert.Equal(t, "application/octet-stream", msg.Attributes[AttrContentType])
	_, leaked := attrs[AttrContentType]
	assert.False(t, leaked)

	typed := outgoingMessage(nil, map[string]string{AttrContentType: "application/json"})
	assert.Equal(t, "application/json", typed.Attributes[AttrContentType])
}

func TestDeliveriesExhausted(t *testing.T) {
	attempts := func(n int) *pubsub.Message {
		return &pubsub.Message{DeliveryAttempt: &n}
	}

	assert.False(t, deliveriesExhausted(&pubsub.Message{}))
	assert.False(t, deliveriesExhausted(attempts(1)))
	assert.False(t, deliveriesExhausted(attempts(maxDeliveryAttempts-1)))
	assert.True(t, deliveriesExhausted(attempts(maxDeliveryAttempts)))
}

func TestReceivedMessage(t *testing.T) {
	msg := receivedMessage(&pubsub.Message{
		ID:         "p-1",
		Data:       []byte("payload"),
		Attributes: map[string]string{AttrStoryID: "story-3"},
	})
	assert.Equal(t, "p-1", msg.ID)
	assert.Equal(t, []byte("payload"), msg.Data)
	assert.Equal(t, "story-3", msg.Attributes[AttrStoryID])
}
