package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType(t *testing.T) {
	synthErr := NewSynthesisFailed("job", "quota", nil)
	assert.True(t, IsErrorType(synthErr, ErrorTypeSynthesis))
	assert.False(t, IsErrorType(synthErr, ErrorTypeVoice))

	voiceErr := NewVoiceChannelMissing("user-1")
	assert.True(t, IsErrorType(voiceErr, ErrorTypeVoice))

	assert.False(t, IsErrorType(fmt.Errorf("plain"), ErrorTypeSynthesis))
}

func TestIsErrorType_Wrapped(t *testing.T) {
	inner := NewSynthesisTimeout(60)
	wrapped := fmt.Errorf("pipeline: %w", inner)
	assert.True(t, IsErrorType(wrapped, ErrorTypeSynthesis))
}

func TestBaseError_Message(t *testing.T) {
	err := NewContextFetchFailed("chan-1", fmt.Errorf("api down"))
	assert.Contains(t, err.Error(), "chan-1")
	assert.Contains(t, err.Error(), "api down")
	assert.Contains(t, err.Error(), string(ErrorTypeDiscord))
}
