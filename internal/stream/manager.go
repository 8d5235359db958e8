package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/predetect"
	"github.com/skypro1111/live-question-service/internal/question"
)

// ErrTooManySessions is returned when the session limit is reached
var ErrTooManySessions = errors.New("session limit reached")

// Transcriber converts a finalized chunk into text
type Transcriber interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk) (question.TranscriptionResult, error)
}

// Recorder receives session lifecycle metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	SetActiveSessions(count int)
	RecordSessionCreated()
	RecordSessionDestroyed(durationSeconds float64)
	RecordEarlySignal(signal string)
}

// Config contains configuration for the session manager
type Config struct {
	Segmenter            audio.Config
	Detector             predetect.Config
	Timeout              time.Duration // idle time before a session expires
	CleanupInterval      time.Duration
	MaxSessions          int
	MaxInflight          int // concurrent transcriptions per session
	TranscriptionTimeout time.Duration
}

// Manager manages all active sessions
type Manager struct {
	config   Config
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger

	transcriber Transcriber
	extractor   *question.Extractor
	sink        Sink
	recorder    Recorder
	observer    audio.Observer
	now         func() time.Time

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// Option configures a Manager
type Option func(*Manager)

// WithTranscriber sets the transcriber used for finalized chunks. Without one,
// chunks are finalized and counted but not transcribed.
func WithTranscriber(t Transcriber) Option {
	return func(m *Manager) {
		m.transcriber = t
	}
}

// WithExtractor sets the question extractor applied to transcripts
func WithExtractor(e *question.Extractor) Option {
	return func(m *Manager) {
		m.extractor = e
	}
}

// WithSink sets the destination for questions and early signals
func WithSink(s Sink) Option {
	return func(m *Manager) {
		m.sink = s
	}
}

// WithRecorder sets the session metrics recorder
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithSegmenterObserver registers an observer on every session's segmenter
func WithSegmenterObserver(o audio.Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithClock overrides the clock for sessions and expiry
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager and starts its cleanup routine
func NewManager(logger *slog.Logger, config Config, opts ...Option) *Manager {
	if config.MaxInflight <= 0 {
		config.MaxInflight = 1
	}
	if config.TranscriptionTimeout <= 0 {
		config.TranscriptionTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   config,
		sessions: make(map[string]*Session),
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		cleanup:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.extractor == nil {
		m.extractor = question.NewExtractor(question.WithLogger(logger))
	}
	if m.sink == nil {
		m.sink = NewLogSink(logger)
	}

	if config.CleanupInterval > 0 && config.Timeout > 0 {
		go m.startCleanupRoutine()
	} else {
		close(m.cleanup)
	}

	return m
}

// CreateSession creates a session with the given id, or a generated one when
// id is empty. An existing session with the same id is returned as is.
func (m *Manager) CreateSession(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.sessions[id]; exists {
		existing.touch()
		return existing, nil
	}

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, fmt.Errorf("failed to create session %s: %w", id, ErrTooManySessions)
	}

	session := newSession(id, m)
	m.sessions[id] = session

	if m.recorder != nil {
		m.recorder.RecordSessionCreated()
		m.recorder.SetActiveSessions(len(m.sessions))
	}

	m.logger.Info("Created new session",
		slog.String("session_id", id),
		slog.Int("active_sessions", len(m.sessions)),
	)

	return session, nil
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	return session, exists
}

// ActiveSessionCount returns the number of currently active sessions
func (m *Manager) ActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AllSessions returns a snapshot of all active sessions ordered by start time
func (m *Manager) AllSessions() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b *Session) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return sessions
}

// RemoveSession flushes a session and removes it. The remaining audio is
// finalized and in-flight transcriptions are awaited until ctx is done.
func (m *Manager) RemoveSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	session, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return false
	}

	if err := session.Flush(ctx); err != nil {
		m.logger.Warn("Session flush interrupted",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
	session.close()

	duration := m.now().Sub(session.StartTime)
	if m.recorder != nil {
		m.recorder.RecordSessionDestroyed(duration.Seconds())
		m.recorder.SetActiveSessions(remaining)
	}

	info := session.Info()
	m.logger.Info("Session removed",
		slog.String("session_id", id),
		slog.Duration("duration", duration),
		slog.Uint64("chunks_finalized", info.ChunksFinalized),
		slog.Uint64("chunks_transcribed", info.ChunksTranscribed),
		slog.Uint64("questions", info.QuestionsFound),
	)

	return true
}

// SegmenterConfig returns the configuration applied to new sessions
func (m *Manager) SegmenterConfig() audio.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Segmenter
}

// UpdateSegmenterConfig merges update into the configuration for future
// sessions and applies it to every live session.
func (m *Manager) UpdateSegmenterConfig(update audio.ConfigUpdate) audio.Config {
	m.mu.Lock()
	m.config.Segmenter = m.config.Segmenter.Merge(update)
	merged := m.config.Segmenter
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		session.updateConfig(update)
	}

	m.logger.Info("Segmenter configuration updated",
		slog.Int("sessions", len(sessions)),
		slog.Int("min_chunk_duration_ms", merged.MinChunkDurationMs),
		slog.Int("max_chunk_duration_ms", merged.MaxChunkDurationMs),
		slog.Float64("silence_threshold_rms", merged.SilenceThresholdRMS),
		slog.Int("silence_duration_ms", merged.SilenceDurationMs),
	)

	return merged
}

// Stop removes all sessions, flushing each, and stops the cleanup routine
func (m *Manager) Stop(ctx context.Context) {
	m.logger.Info("Stopping session manager...")

	m.cancel()
	<-m.cleanup

	for _, session := range m.AllSessions() {
		m.RemoveSession(ctx, session.ID)
	}

	m.logger.Info("Session manager stopped")
}

// startCleanupRoutine runs in a separate goroutine to clean up expired sessions
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.config.Timeout),
		slog.Duration("check_interval", m.config.CleanupInterval),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions that have been inactive for too long
func (m *Manager) cleanupExpiredSessions() {
	now := m.now()
	var expired []string

	m.mu.RLock()
	for id, session := range m.sessions {
		if now.Sub(session.LastActivity()) > m.config.Timeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.logger.Info("Cleaning up expired sessions",
		slog.Int("expired_count", len(expired)),
	)

	for _, id := range expired {
		ctx, cancel := context.WithTimeout(m.ctx, m.config.TranscriptionTimeout)
		m.RemoveSession(ctx, id)
		cancel()
	}
}
