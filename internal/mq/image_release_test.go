package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

// memoryBackend delivers published messages to the subscriber synchronously.
type memoryBackend struct {
	published []published
	pending   []Message
	results   []error
}

func (m *memoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	m.published = append(m.published, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (m *memoryBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range m.pending {
		m.results = append(m.results, handler(ctx, msg))
	}
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func TestImageReleasePublisher(t *testing.T) {
	backend := &memoryBackend{}
	pub := NewImageReleasePublisher(New(backend), "image-release")

	require.NoError(t, pub.ReleaseForStory(context.Background(), "http://cdn/1.png", "story-1"))
	require.NoError(t, pub.Release(context.Background(), "  "))

	require.Len(t, backend.published, 1)
	msg := backend.published[0]
	assert.Equal(t, "image-release", msg.channel)
	assert.Equal(t, KindImageRelease, msg.attrs[AttrKind])
	assert.Equal(t, "application/json", msg.attrs[AttrContentType])
	assert.Equal(t, "story-1", msg.attrs[AttrStoryID])

	var req ImageRelease
	require.NoError(t, json.Unmarshal(msg.data, &req))
	assert.Equal(t, ImageRelease{ImageURL: "http://cdn/1.png", StoryID: "story-1"}, req)
}

func TestImageReleaseDefaultsChannelAndStoryAttribute(t *testing.T) {
	backend := &memoryBackend{}
	pub := NewImageReleasePublisher(New(backend), "")

	require.NoError(t, pub.Release(context.Background(), "http://cdn/3.png"))
	require.Len(t, backend.published, 1)
	assert.Equal(t, DefaultImageReleaseChannel, backend.published[0].channel)
	_, tagged := backend.published[0].attrs[AttrStoryID]
	assert.False(t, tagged)

	req, err := DecodeImageRelease(Message{
		Data:       []byte(`{"imageUrl":"http://cdn/3.png"}`),
		Attributes: map[string]string{AttrKind: KindImageRelease, AttrStoryID: "story-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "story-9", req.StoryID)
}

func TestConsumeImageReleases(t *testing.T) {
	good, err := json.Marshal(ImageRelease{ImageURL: "http://cdn/2.png"})
	require.NoError(t, err)

	backend := &memoryBackend{pending: []Message{
		{ID: "1", Data: good, Attributes: map[string]string{AttrKind: KindImageRelease}},
		{ID: "2", Data: []byte("not json")},
		{ID: "3", Data: good, Attributes: map[string]string{AttrKind: "story.created"}},
		{ID: "4", Data: good},
	}}

	var released []string
	calls := 0
	err = ConsumeImageReleases(context.Background(), New(backend), "image-release", func(_ context.Context, req ImageRelease) error {
		calls++
		released = append(released, req.ImageURL)
		if calls == 2 {
			return errors.New("storage unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"http://cdn/2.png", "http://cdn/2.png"}, released)
	require.Len(t, backend.results, 4)
	assert.NoError(t, backend.results[0])
	assert.NoError(t, backend.results[1])
	assert.NoError(t, backend.results[2])
	assert.Error(t, backend.results[3])
}

func TestDecodeImageReleaseRequiresURL(t *testing.T) {
	_, err := DecodeImageRelease(Message{Data: []byte(`{"imageUrl":""}`)})
	assert.Error(t, err)
}
