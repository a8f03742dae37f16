package state

import (
	"sync"

	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// ConnectionState is the bot's gateway connection state
type ConnectionState int

const (
	// StateOffline means the gateway session is not established
	StateOffline ConnectionState = iota
	// StateOnline means the gateway session is up and ready
	StateOnline
)

func (s ConnectionState) String() string {
	if s == StateOnline {
		return "online"
	}
	return "offline"
}

// Tracker owns the connection state and exposes it through an accessor
// instead of a process-wide flag. Transitions happen only through the
// connect/disconnect events wired to the gateway handlers.
type Tracker struct {
	mu     sync.RWMutex
	state  ConnectionState
	logger *zap.Logger
}

// NewTracker creates a tracker starting in the offline state
func NewTracker() *Tracker {
	return &Tracker{
		state:  StateOffline,
		logger: logger.Named("state"),
	}
}

// HandleConnect records a successful gateway connect
func (t *Tracker) HandleConnect() {
	t.transition(StateOnline)
}

// HandleDisconnect records a gateway disconnect
func (t *Tracker) HandleDisconnect() {
	t.transition(StateOffline)
}

func (t *Tracker) transition(next ConnectionState) {
	t.mu.Lock()
	prev := t.state
	t.state = next
	t.mu.Unlock()

	if prev != next {
		t.logger.Info("Connection state changed",
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
		)
	}
}

// Online reports whether the gateway session is currently up
func (t *Tracker) Online() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == StateOnline
}

// State returns the current connection state
func (t *Tracker) State() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
