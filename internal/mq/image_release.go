package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

const (
	// AttrContentType carries the payload media type across backends.
	AttrContentType = "content-type"
	// AttrKind names the event carried by a message.
	AttrKind = "kind"
	// AttrStoryID names the story an image release originates from.
	AttrStoryID = "story-id"

	KindImageRelease = "image.release"

	// DefaultImageReleaseChannel is used when no channel is configured.
	DefaultImageReleaseChannel = "image-release"
)

// ImageRelease asks a worker to delete an image that no story references
// anymore.
type ImageRelease struct {
	ImageURL string `json:"imageUrl"`
	StoryID  string `json:"storyId,omitempty"`
}

// ImageReleasePublisher queues image releases on a channel.
type ImageReleasePublisher struct {
	mq      *MQ
	channel string
}

func NewImageReleasePublisher(m *MQ, channel string) *ImageReleasePublisher {
	return &ImageReleasePublisher{mq: m, channel: imageReleaseChannel(channel)}
}

// Release publishes the release request. Deletion happens later in the
// worker consuming the channel.
func (p *ImageReleasePublisher) Release(ctx context.Context, imageURL string) error {
	return p.ReleaseForStory(ctx, imageURL, "")
}

// ReleaseForStory publishes the release request tagged with the story the
// image was attached to.
func (p *ImageReleasePublisher) ReleaseForStory(ctx context.Context, imageURL, storyID string) error {
	if strings.TrimSpace(imageURL) == "" {
		return nil
	}
	data, err := json.Marshal(ImageRelease{ImageURL: imageURL, StoryID: storyID})
	if err != nil {
		return err
	}
	attrs := map[string]string{
		AttrContentType: "application/json",
		AttrKind:        KindImageRelease,
	}
	if storyID != "" {
		attrs[AttrStoryID] = storyID
	}
	_, err = p.mq.Publish(ctx, p.channel, data, attrs)
	return err
}

// ConsumeImageReleases subscribes to channel and hands each decoded
// request to release. Malformed messages are acknowledged and skipped.
func ConsumeImageReleases(ctx context.Context, m *MQ, channel string, release func(ctx context.Context, req ImageRelease) error) error {
	return m.Subscribe(ctx, imageReleaseChannel(channel), func(ctx context.Context, msg Message) error {
		req, err := DecodeImageRelease(msg)
		if err != nil {
			return nil
		}
		return release(ctx, req)
	})
}

func imageReleaseChannel(channel string) string {
	if strings.TrimSpace(channel) == "" {
		return DefaultImageReleaseChannel
	}
	return channel
}

// DecodeImageRelease parses an image release message.
func DecodeImageRelease(msg Message) (ImageRelease, error) {
	if kind := msg.Attributes[AttrKind]; kind != "" && kind != KindImageRelease {
		return ImageRelease{}, errors.New("unexpected message kind " + kind)
	}
	var req ImageRelease
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return ImageRelease{}, err
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return ImageRelease{}, errors.New("image url is required")
	}
	if req.StoryID == "" {
		req.StoryID = msg.Attributes[AttrStoryID]
	}
	return req, nil
}
