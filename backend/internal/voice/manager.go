package voice

import (
	"bytes"
	"os"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/go-audio/wav"
	apperrors "osananajimi-bot/backend/pkg/errors"
	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// Session is the bot's live audio link to one guild. At most one stream
// plays on it at any instant; a new play pre-empts the old one.
type Session struct {
	GuildID string
	conn    *discordgo.VoiceConnection

	// playMu serializes whole stop-then-start sequences so overlapping
	// invocations cannot pre-empt each other mid-write
	playMu sync.Mutex

	mu      sync.Mutex
	playing bool
	stop    chan struct{}
	done    chan struct{}
}

// Manager owns one voice session per guild and is the only mutator of
// session state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	streamer     streamer
	fallbackPath string
	logger       *zap.Logger
}

// NewManager creates a voice manager. fallbackPath may be empty, in which
// case PlayFallback is a no-op.
func NewManager(fallbackPath string) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		streamer:     &opusStreamer{},
		fallbackPath: fallbackPath,
		logger:       logger.Named("voice"),
	}
}

// Join connects the bot to the voice channel the invoking user is in and
// returns the channel ID. One connection per guild; joining again moves
// the existing connection.
func (m *Manager) Join(s *discordgo.Session, guildID, userID string) (string, error) {
	channelID, err := userVoiceChannel(s, guildID, userID)
	if err != nil {
		return "", err
	}

	vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return "", apperrors.NewPlaybackFailed(guildID, err)
	}

	m.adoptConnection(guildID, vc)

	m.logger.Info("Joined voice channel",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
	)
	return channelID, nil
}

// adoptConnection binds the guild's session to vc. Re-joining reuses the
// guild's existing gateway connection, so a stream started before the
// re-join would keep writing to it; any such stream is stopped before
// the session is rebound.
func (m *Manager) adoptConnection(guildID string, vc *discordgo.VoiceConnection) {
	m.mu.Lock()
	session, ok := m.sessions[guildID]
	if !ok {
		m.sessions[guildID] = &Session{GuildID: guildID, conn: vc}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	session.playMu.Lock()
	defer session.playMu.Unlock()

	session.stopPlayback()
	session.mu.Lock()
	session.conn = vc
	session.mu.Unlock()
}

// Leave tears down the guild's voice connection. Returns
// ErrVoiceNotConnected when there is none.
func (m *Manager) Leave(guildID string) error {
	m.mu.Lock()
	session, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()

	if !ok {
		return apperrors.NewVoiceNotConnected(guildID)
	}

	session.stopPlayback()
	if err := session.conn.Disconnect(); err != nil {
		return apperrors.NewPlaybackFailed(guildID, err)
	}

	m.logger.Info("Left voice channel", zap.String("guild_id", guildID))
	return nil
}

// Active reports whether the guild currently has a voice connection.
// The orchestrator uses this as its speak-or-not capability check.
func (m *Manager) Active(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[guildID]
	return ok
}

// Play streams audio into the guild's voice connection. Any stream
// already playing is stopped first; there is no queue. Playback itself is
// fire-and-forget: Play returns once the stream has started.
func (m *Manager) Play(guildID string, audio []byte) error {
	m.mu.Lock()
	session, ok := m.sessions[guildID]
	m.mu.Unlock()
	if !ok {
		return apperrors.NewVoiceNotConnected(guildID)
	}

	if err := probeWAV(audio); err != nil {
		return err
	}

	session.play(m.streamer, audio, m.logger)
	return nil
}

// PlayFallback plays the pre-recorded clip configured for synthesis
// failures. Without a configured clip it does nothing.
func (m *Manager) PlayFallback(guildID string) error {
	if m.fallbackPath == "" {
		return nil
	}

	audio, err := os.ReadFile(m.fallbackPath)
	if err != nil {
		return apperrors.NewPlaybackFailed(guildID, err)
	}
	return m.Play(guildID, audio)
}

// play runs one stop-then-start sequence under the per-session lock
func (s *Session) play(str streamer, audio []byte, log *zap.Logger) {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	s.stopPlayback()

	stop := make(chan struct{})
	done := make(chan struct{})

	s.mu.Lock()
	s.stop = stop
	s.done = done
	s.playing = true
	conn := s.conn
	s.mu.Unlock()

	guildID := s.GuildID
	go func() {
		defer func() {
			s.mu.Lock()
			if s.done == done {
				s.playing = false
			}
			s.mu.Unlock()
			close(done)
		}()

		if err := str.Stream(conn, audio, stop); err != nil {
			log.Error("Playback stream failed",
				zap.String("guild_id", guildID),
				zap.Error(err),
			)
		}
	}()
}

// stopPlayback signals the active stream, if any, and waits for it to end
func (s *Session) stopPlayback() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

// probeWAV rejects audio the decoder cannot make sense of before any
// process is spawned for it
func probeWAV(audio []byte) error {
	dec := wav.NewDecoder(bytes.NewReader(audio))
	if !dec.IsValidFile() {
		return apperrors.NewSynthesisFailed("wav", "synthesized audio is not a valid WAV file", nil)
	}
	return nil
}

// userVoiceChannel resolves the voice channel the user currently occupies
func userVoiceChannel(s *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return "", apperrors.NewPlaybackFailed(guildID, err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", apperrors.NewVoiceChannelMissing(userID)
}
