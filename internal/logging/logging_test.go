package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Env: "prod", Level: "warn", Redaction: true, Output: &buf})

	logger.Info().Msg("dropped")
	logger.Warn().Str("booking_id", "b-1").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "b-1", line["booking_id"])
}

func TestSafe(t *testing.T) {
	New(Config{Env: "test", Redaction: true, Output: &bytes.Buffer{}})
	out := Safe(map[string]any{"email": "a@b.com", "path": "/bookings"})
	assert.Equal(t, "[REDACTED_EMAIL]", out["email"])
	assert.Equal(t, "/bookings", out["path"])

	New(Config{Env: "test", Redaction: false, Output: &bytes.Buffer{}})
	t.Cleanup(func() { redactionOff.Store(false) })
	out = Safe(map[string]any{"email": "a@b.com"})
	assert.Equal(t, "a@b.com", out["email"])
}
