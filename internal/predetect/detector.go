package predetect

import (
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/live-question-service/internal/pattern"
)

// Config controls the detector's cost bounds
type Config struct {
	CheckInterval    time.Duration `json:"check_interval"`
	BufferSize       int           `json:"buffer_size"`
	RecentFragments  int           `json:"recent_fragments"`
	ActivityDebounce time.Duration `json:"activity_debounce"`
}

// DefaultConfig returns the standard detector limits
func DefaultConfig() Config {
	return Config{
		CheckInterval:    200 * time.Millisecond,
		BufferSize:       500,
		RecentFragments:  15,
		ActivityDebounce: 2500 * time.Millisecond,
	}
}

// Detector keeps a rolling text buffer of partial transcripts and a ring of
// recent fragments.
type Detector struct {
	config Config

	buffer []rune
	recent []string

	lastCheck    time.Time
	lastActivity time.Time

	// Statistics
	fragments  uint64
	checks     uint64
	detections uint64
	activities uint64

	now func() time.Time
	mu  sync.Mutex
}

// Stats represents detector statistics
type Stats struct {
	Fragments       uint64 `json:"fragments"`
	Checks          uint64 `json:"checks"`
	Detections      uint64 `json:"detections"`
	ActivitySignals uint64 `json:"activity_signals"`
	BufferedRunes   int    `json:"buffered_runes"`
	RecentFragments int    `json:"recent_fragments"`
}

// Option configures a Detector
type Option func(*Detector)

// WithClock overrides the monotonic clock used for rate limiting and debounce
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector creates a detector. Zero config fields fall back to defaults.
func NewDetector(config Config, opts ...Option) *Detector {
	defaults := DefaultConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.RecentFragments <= 0 {
		config.RecentFragments = defaults.RecentFragments
	}
	if config.ActivityDebounce <= 0 {
		config.ActivityDebounce = defaults.ActivityDebounce
	}

	d := &Detector{
		config: config,
		buffer: make([]rune, 0, config.BufferSize),
		recent: make([]string, 0, config.RecentFragments),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckFragment appends text to the rolling buffer and reports whether the
// buffer now reads like a question. Checks are rate limited to one per
// CheckInterval; a match clears the buffer.
func (d *Detector) CheckFragment(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fragments++
	d.appendText(text)

	now := d.now()
	if !d.lastCheck.IsZero() && now.Sub(d.lastCheck) < d.config.CheckInterval {
		return false
	}
	d.lastCheck = now
	d.checks++

	normalized := strings.TrimSpace(pattern.Normalize(string(d.buffer)))
	if normalized == "" || pattern.MatchIndex(normalized) < 0 {
		return false
	}

	d.buffer = d.buffer[:0]
	d.detections++
	return true
}

// appendText adds text to the buffer, dropping the oldest runes past capacity
func (d *Detector) appendText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(d.buffer) > 0 {
		d.buffer = append(d.buffer, ' ')
	}
	d.buffer = append(d.buffer, []rune(text)...)

	if over := len(d.buffer) - d.config.BufferSize; over > 0 {
		d.buffer = append(d.buffer[:0], d.buffer[over:]...)
	}
}

// FeedRecentFragment records a normalized fragment for HasRecentActivity
func (d *Detector) FeedRecentFragment(text string) {
	normalized := strings.TrimSpace(pattern.Normalize(text))
	if normalized == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.recent) == d.config.RecentFragments {
		copy(d.recent, d.recent[1:])
		d.recent = d.recent[:len(d.recent)-1]
	}
	d.recent = append(d.recent, normalized)
}

// HasRecentActivity reports whether recent fragments contain a question
// marker. After a hit the signal stays quiet for ActivityDebounce.
func (d *Detector) HasRecentActivity() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.lastActivity.IsZero() && now.Sub(d.lastActivity) < d.config.ActivityDebounce {
		return false
	}

	joined := strings.Join(d.recent, " ")
	for _, marker := range pattern.ActivityMarkers {
		if strings.Contains(joined, marker) {
			d.lastActivity = now
			d.activities++
			return true
		}
	}
	return false
}

// Clear drops buffered text and recent fragments and lifts both rate limits
func (d *Detector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buffer = d.buffer[:0]
	d.recent = d.recent[:0]
	d.lastCheck = time.Time{}
	d.lastActivity = time.Time{}
}

// GetStats returns detector statistics
func (d *Detector) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Fragments:       d.fragments,
		Checks:          d.checks,
		Detections:      d.detections,
		ActivitySignals: d.activities,
		BufferedRunes:   len(d.buffer),
		RecentFragments: len(d.recent),
	}
}
