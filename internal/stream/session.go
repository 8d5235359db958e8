package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/live-question-service/internal/audio"
	"github.com/skypro1111/live-question-service/internal/predetect"
)

// Session is one audio stream with its own segmenter and pre-detector.
// AddFrame calls are serialized, so a session may be fed from an audio
// callback while other goroutines read its state.
type Session struct {
	ID        string
	StartTime time.Time

	segmenter *audio.Segmenter
	detector  *predetect.Detector
	manager   *Manager

	lastActivity time.Time
	lastDecision audio.Decision

	// Transcription dispatch
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// Statistics
	framesAppended    atomic.Uint64
	chunksFinalized   atomic.Uint64
	chunksDropped     atomic.Uint64
	chunksTranscribed atomic.Uint64
	chunksFailed      atomic.Uint64
	questionsFound    atomic.Uint64
	earlySignals      atomic.Uint64

	mu sync.Mutex
}

// FragmentSignals reports the early signals raised by a partial transcript
type FragmentSignals struct {
	QuestionLikely bool `json:"question_likely"`
	RecentActivity bool `json:"recent_activity"`
}

// SessionInfo represents session information for monitoring and APIs
type SessionInfo struct {
	ID           string        `json:"id"`
	StartTime    time.Time     `json:"start_time"`
	LastActivity time.Time     `json:"last_activity"`
	Duration     time.Duration `json:"duration"`

	State        audio.State          `json:"state"`
	LastDecision audio.Decision       `json:"last_decision"`
	Segmenter    audio.SegmenterStats `json:"segmenter"`
	Detector     predetect.Stats      `json:"detector"`

	FramesAppended    uint64 `json:"frames_appended"`
	ChunksFinalized   uint64 `json:"chunks_finalized"`
	ChunksDropped     uint64 `json:"chunks_dropped"`
	ChunksTranscribed uint64 `json:"chunks_transcribed"`
	ChunksFailed      uint64 `json:"chunks_failed"`
	QuestionsFound    uint64 `json:"questions_found"`
	EarlySignals      uint64 `json:"early_signals"`
}

func newSession(id string, m *Manager) *Session {
	segmenterOpts := []audio.Option{audio.WithClock(m.now)}
	if m.observer != nil {
		segmenterOpts = append(segmenterOpts, audio.WithObserver(m.observer))
	}

	ctx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}
	group.SetLimit(m.config.MaxInflight)

	now := m.now()
	return &Session{
		ID:           id,
		StartTime:    now,
		lastActivity: now,
		segmenter:    audio.NewSegmenter(m.config.Segmenter, segmenterOpts...),
		detector:     predetect.NewDetector(m.config.Detector, predetect.WithClock(m.now)),
		manager:      m,
		ctx:          ctx,
		cancel:       cancel,
		group:        group,
	}
}

// AddFrame appends a frame to the segmenter. When the decision calls for a
// chunk, the buffer is finalized and the chunk handed to transcription.
func (s *Session) AddFrame(frame audio.Frame) audio.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = s.manager.now()
	s.framesAppended.Add(1)

	decision := s.segmenter.Append(frame)
	s.lastDecision = decision
	if decision.ShouldChunk {
		if chunk := s.segmenter.FinalizeChunk(); chunk != nil {
			s.manager.logger.Debug("Chunk finalized",
				slog.String("session_id", s.ID),
				slog.String("chunk_id", chunk.ID),
				slog.String("reason", string(decision.Reason)),
				slog.Float64("confidence", decision.Confidence),
				slog.Float64("duration_ms", chunk.DurationMs),
			)
			s.dispatch(chunk)
		}
	}

	return decision
}

// AddFragment feeds a partial transcript to the pre-detector and reports the
// early signals it raised.
func (s *Session) AddFragment(text string) FragmentSignals {
	s.touch()

	signals := FragmentSignals{
		QuestionLikely: s.detector.CheckFragment(text),
	}
	s.detector.FeedRecentFragment(text)
	signals.RecentActivity = s.detector.HasRecentActivity()

	if signals.QuestionLikely {
		s.signal(SignalQuestionLikely)
	}
	if signals.RecentActivity {
		s.signal(SignalRecentActivity)
	}
	return signals
}

func (s *Session) signal(kind SignalKind) {
	s.earlySignals.Add(1)
	if s.manager.recorder != nil {
		s.manager.recorder.RecordEarlySignal(string(kind))
	}
	s.manager.sink.EarlySignal(s.ID, kind)
}

// Flush finalizes any buffered audio and waits for in-flight transcriptions
// until ctx is done.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if chunk := s.segmenter.FinalizeChunk(); chunk != nil {
		s.manager.logger.Debug("Remaining audio finalized",
			slog.String("session_id", s.ID),
			slog.String("chunk_id", chunk.ID),
			slog.Float64("duration_ms", chunk.DurationMs),
		)
		s.dispatch(chunk)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch sends chunk for transcription without blocking the caller. When
// the in-flight limit is reached the chunk is dropped.
func (s *Session) dispatch(chunk *audio.Chunk) {
	s.chunksFinalized.Add(1)

	m := s.manager
	if m.transcriber == nil {
		return
	}

	started := s.group.TryGo(func() error {
		s.transcribe(chunk)
		return nil
	})
	if !started {
		s.chunksDropped.Add(1)
		m.logger.Warn("Transcription limit reached, dropping chunk",
			slog.String("session_id", s.ID),
			slog.String("chunk_id", chunk.ID),
			slog.Int("max_inflight", m.config.MaxInflight),
		)
	}
}

func (s *Session) transcribe(chunk *audio.Chunk) {
	m := s.manager
	ctx, cancel := context.WithTimeout(s.ctx, m.config.TranscriptionTimeout)
	defer cancel()

	result, err := m.transcriber.Transcribe(ctx, chunk)
	if err != nil {
		s.chunksFailed.Add(1)
		m.logger.Error("Transcription failed",
			slog.String("session_id", s.ID),
			slog.String("chunk_id", chunk.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.chunksTranscribed.Add(1)

	questions := m.extractor.ExtractQuestions(ctx, result)
	if len(questions) == 0 {
		return
	}
	s.questionsFound.Add(uint64(len(questions)))
	m.sink.QuestionsReady(s.ID, result, questions)
}

func (s *Session) updateConfig(update audio.ConfigUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmenter.UpdateConfig(update)
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.manager.now()
}

// close cancels in-flight transcriptions
func (s *Session) close() {
	s.cancel()
}

// LastActivity returns the time of the last frame or fragment
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Info returns session information including segmenter and detector stats
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	state := s.segmenter.State()
	segmenterStats := s.segmenter.Stats()
	lastActivity := s.lastActivity
	lastDecision := s.lastDecision
	s.mu.Unlock()

	return SessionInfo{
		ID:                s.ID,
		StartTime:         s.StartTime,
		LastActivity:      lastActivity,
		Duration:          s.manager.now().Sub(s.StartTime),
		State:             state,
		LastDecision:      lastDecision,
		Segmenter:         segmenterStats,
		Detector:          s.detector.GetStats(),
		FramesAppended:    s.framesAppended.Load(),
		ChunksFinalized:   s.chunksFinalized.Load(),
		ChunksDropped:     s.chunksDropped.Load(),
		ChunksTranscribed: s.chunksTranscribed.Load(),
		ChunksFailed:      s.chunksFailed.Load(),
		QuestionsFound:    s.questionsFound.Load(),
		EarlySignals:      s.earlySignals.Load(),
	}
}
