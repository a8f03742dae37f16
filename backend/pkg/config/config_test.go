package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SessionModePersistent, cfg.SessionMode)
	assert.Equal(t, TTSProtocolQuery, cfg.TTSProtocol)
	assert.Equal(t, 7, cfg.HistoryWindow)
	assert.Equal(t, 8, cfg.TTSSpeaker)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SESSION_MODE", "per-call")
	t.Setenv("TTS_PROTOCOL", "job")
	t.Setenv("HISTORY_WINDOW", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SessionModePerCall, cfg.SessionMode)
	assert.Equal(t, TTSProtocolJob, cfg.TTSProtocol)
	assert.Equal(t, 5, cfg.HistoryWindow)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_MODE", "sometimes")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_RejectsBadProtocol(t *testing.T) {
	t.Setenv("TTS_PROTOCOL", "telepathy")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_RejectsZeroWindow(t *testing.T) {
	t.Setenv("HISTORY_WINDOW", "0")
	_, err := Load()
	assert.Error(t, err)
}
