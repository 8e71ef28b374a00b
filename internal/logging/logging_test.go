package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandlerJSONWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, false, false))

	logger.Info("fetched PRs", "count", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetched PRs", entry["msg"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestNewHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, false, false)).Debug("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	slog.New(NewHandler(&buf, true, false)).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
