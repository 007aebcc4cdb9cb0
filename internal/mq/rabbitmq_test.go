package mq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	msg := newPublishing([]byte(`{}`), map[string]string{
		AttrContentType: "application/json",
		AttrKind:        KindImageRelease,
		AttrStoryID:     "story-1",
	}, true)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, KindImageRelease, msg.Type)
	assert.Equal(t, rabbitMQAppID, msg.AppId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.NotEmpty(t, msg.MessageId)
	assert.Equal(t, "story-1", msg.Headers[AttrStoryID])

	transient := newPublishing(nil, nil, false)
	assert.Equal(t, "application/octet-stream", transient.ContentType)
	assert.Equal(t, amqp.Transient, transient.DeliveryMode)
}

func TestDeliveryMessageRestoresAttributes(t *testing.T) {
	msg := deliveryMessage(amqp.Delivery{
		MessageId:   "m-1",
		ContentType: "application/json",
		Type:        KindImageRelease,
		Body:        []byte(`{"imageUrl":"http://cdn/1.png"}`),
	})

	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, KindImageRelease, msg.Attributes[AttrKind])
	assert.Equal(t, "application/json", msg.Attributes[AttrContentType])

	req, err := DecodeImageRelease(msg)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/1.png", req.ImageURL)

	headed := deliveryMessage(amqp.Delivery{
		Type:    "other",
		Headers: amqp.Table{AttrKind: KindImageRelease, AttrStoryID: []byte("story-2")},
	})
	assert.Equal(t, KindImageRelease, headed.Attributes[AttrKind], "headers win over the AMQP type")
	assert.Equal(t, "story-2", headed.Attributes[AttrStoryID])
}
