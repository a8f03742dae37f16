package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeDiscord represents Discord-related errors
	ErrorTypeDiscord ErrorType = "discord"
	// ErrorTypeModel represents language-model errors
	ErrorTypeModel ErrorType = "model"
	// ErrorTypeSynthesis represents speech-synthesis errors
	ErrorTypeSynthesis ErrorType = "synthesis"
	// ErrorTypeVoice represents voice-connection and playback errors
	ErrorTypeVoice ErrorType = "voice"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrType returns the category of the error. Promoted to every typed
// wrapper that embeds BaseError.
func (e *BaseError) ErrType() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Discord Errors

// ErrContextFetchFailed is returned when the channel history fetch fails.
// It aborts the whole invocation.
type ErrContextFetchFailed struct {
	*BaseError
	ChannelID string
}

func NewContextFetchFailed(channelID string, err error) *ErrContextFetchFailed {
	return &ErrContextFetchFailed{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("failed to fetch channel history: %s", channelID), err),
		ChannelID: channelID,
	}
}

// Voice Errors

// ErrVoiceChannelMissing is returned when the invoking user is not in a voice channel
type ErrVoiceChannelMissing struct {
	*BaseError
	UserID string
}

func NewVoiceChannelMissing(userID string) *ErrVoiceChannelMissing {
	return &ErrVoiceChannelMissing{
		BaseError: NewBaseError(ErrorTypeVoice, fmt.Sprintf("user is not in a voice channel: %s", userID), nil),
		UserID:    userID,
	}
}

// ErrVoiceNotConnected is returned when leaving without an active voice connection
type ErrVoiceNotConnected struct {
	*BaseError
	GuildID string
}

func NewVoiceNotConnected(guildID string) *ErrVoiceNotConnected {
	return &ErrVoiceNotConnected{
		BaseError: NewBaseError(ErrorTypeVoice, fmt.Sprintf("no voice connection for guild: %s", guildID), nil),
		GuildID:   guildID,
	}
}

// ErrPlaybackFailed is returned when streaming audio into a voice connection fails
type ErrPlaybackFailed struct {
	*BaseError
	GuildID string
}

func NewPlaybackFailed(guildID string, err error) *ErrPlaybackFailed {
	return &ErrPlaybackFailed{
		BaseError: NewBaseError(ErrorTypeVoice, "audio playback failed", err),
		GuildID:   guildID,
	}
}

// Synthesis Errors

// ErrSynthesisFailed is returned when the TTS service cannot produce audio
type ErrSynthesisFailed struct {
	*BaseError
	Protocol string
	Reason   string
}

func NewSynthesisFailed(protocol, reason string, err error) *ErrSynthesisFailed {
	return &ErrSynthesisFailed{
		BaseError: NewBaseError(ErrorTypeSynthesis, fmt.Sprintf("synthesis failed (%s): %s", protocol, reason), err),
		Protocol:  protocol,
		Reason:    reason,
	}
}

// ErrSynthesisTimeout is returned when the job-polling variant exhausts its attempt budget
type ErrSynthesisTimeout struct {
	*BaseError
	Attempts int
}

func NewSynthesisTimeout(attempts int) *ErrSynthesisTimeout {
	return &ErrSynthesisTimeout{
		BaseError: NewBaseError(ErrorTypeSynthesis, fmt.Sprintf("audio not ready after %d status checks", attempts), nil),
		Attempts:  attempts,
	}
}

// Model Errors

// ErrModelCallFailed is returned when the chat-completion request fails.
// The adapter converts it into a sentinel-tagged reply before it reaches
// the orchestrator; it only escapes in logs.
type ErrModelCallFailed struct {
	*BaseError
	Model    string
	Attempts int
}

func NewModelCallFailed(model string, attempts int, err error) *ErrModelCallFailed {
	return &ErrModelCallFailed{
		BaseError: NewBaseError(ErrorTypeModel, fmt.Sprintf("model request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Context Errors

// ErrContextTimeout is returned when an outbound call exceeds its deadline
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if typed, ok := err.(interface{ ErrType() ErrorType }); ok {
		return typed.ErrType() == errType
	}
	if wrapper, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapper.Unwrap(); inner != nil {
			return IsErrorType(inner, errType)
		}
	}
	return false
}
