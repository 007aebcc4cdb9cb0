package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "debug", "json")

	l.WithField("story_id", "abc").Debug("loaded story")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loaded story", entry["msg"])
	assert.Equal(t, "abc", entry["story_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithOutput_TextAndLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "nonsense", "text")

	assert.Equal(t, logrus.InfoLevel, l.Level)

	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
