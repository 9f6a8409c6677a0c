package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Info("tip recorded", MaskField("sender", "0xabc"), MaskField("token", "secret"))
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "tip recorded", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Contains(t, line, "timestamp")
	require.Equal(t, "0xabc", line["sender"])
	require.Equal(t, RedactedValue, line["token"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestMaskDSN(t *testing.T) {
	require.Equal(t, "postgres://"+RedactedValue, MaskDSN("postgres://user:pw@db:5432/tips"))
	require.Equal(t, RedactedValue, MaskDSN("file:tips.db"))
	require.Equal(t, "", MaskDSN(" "))
}

func TestRedactionAllowlistSorted(t *testing.T) {
	keys := RedactionAllowlist()
	require.NotEmpty(t, keys)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
	require.True(t, IsAllowlisted("FeeRecipient"))
	require.False(t, IsAllowlisted("authorization"))
}
