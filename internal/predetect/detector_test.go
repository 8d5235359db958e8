package predetect

import (
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDetector(clock *fakeClock) *Detector {
	return NewDetector(DefaultConfig(), WithClock(clock.Now))
}

func TestCheckFragmentDebounce(t *testing.T) {
	clock := newFakeClock()
	d := newTestDetector(clock)

	// The first fragment of a stream is checked immediately
	if !d.CheckFragment("どのような経験がありますか") {
		t.Error("First call should detect the question")
	}
	clock.Advance(100 * time.Millisecond)
	if d.CheckFragment("どのような経験がありますか") {
		t.Error("Second call within the check interval should return false")
	}
	clock.Advance(50 * time.Millisecond)
	if d.CheckFragment("") {
		t.Error("Third call within the check interval should return false")
	}

	clock.Advance(100 * time.Millisecond)
	if !d.CheckFragment("") {
		t.Error("Call past the interval should detect the buffered question")
	}
}

func TestCheckFragmentClearsOnMatch(t *testing.T) {
	clock := newFakeClock()
	d := newTestDetector(clock)

	clock.Advance(time.Second)
	if !d.CheckFragment("What do you think?") {
		t.Fatal("Expected a detection")
	}
	if got := d.GetStats().BufferedRunes; got != 0 {
		t.Errorf("Expected empty buffer after match, got %d runes", got)
	}

	clock.Advance(time.Second)
	if d.CheckFragment("thanks") {
		t.Error("Buffer should not re-trigger on previously matched text")
	}
}

func TestCheckFragmentPatterns(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"japanese polite ending", "これは何ですか", true},
		{"full-width question mark", "本当に？", true},
		{"pronoun with particle", "どこに行きましたか", true},
		{"polite request", "経歴を教えてください", true},
		{"english modal", "Can you explain that", true},
		{"english wh-word", "tell me why it failed", true},
		{"declarative japanese", "今日は晴れています", false},
		{"declarative english", "the build passed yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			d := newTestDetector(clock)
			clock.Advance(time.Second)

			if got := d.CheckFragment(tt.text); got != tt.want {
				t.Errorf("CheckFragment(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestBufferBounded(t *testing.T) {
	clock := newFakeClock()
	d := NewDetector(Config{BufferSize: 20}, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		d.CheckFragment(strings.Repeat("あ", 9))
	}
	if got := d.GetStats().BufferedRunes; got != 20 {
		t.Errorf("Expected buffer capped at 20 runes, got %d", got)
	}
}

func TestHasRecentActivity(t *testing.T) {
	clock := newFakeClock()
	d := newTestDetector(clock)

	if d.HasRecentActivity() {
		t.Error("Empty detector should report no activity")
	}

	d.FeedRecentFragment("今日は")
	d.FeedRecentFragment("ＷＨＡＴ")
	if !d.HasRecentActivity() {
		t.Fatal("Expected activity from folded full-width marker")
	}

	// Debounced after a hit
	clock.Advance(time.Second)
	if d.HasRecentActivity() {
		t.Error("Expected debounce to suppress the signal")
	}

	clock.Advance(2 * time.Second)
	if !d.HasRecentActivity() {
		t.Error("Expected activity after the debounce window")
	}

	if got := d.GetStats().ActivitySignals; got != 2 {
		t.Errorf("Expected 2 activity signals, got %d", got)
	}
}

func TestRecentFragmentsRing(t *testing.T) {
	clock := newFakeClock()
	d := NewDetector(Config{RecentFragments: 3}, WithClock(clock.Now))

	d.FeedRecentFragment("how")
	for i := 0; i < 3; i++ {
		d.FeedRecentFragment("fine")
	}
	d.FeedRecentFragment("   ")

	if got := d.GetStats().RecentFragments; got != 3 {
		t.Errorf("Expected 3 recent fragments, got %d", got)
	}
	if d.HasRecentActivity() {
		t.Error("Evicted fragment should no longer signal activity")
	}
}

func TestClear(t *testing.T) {
	clock := newFakeClock()
	d := newTestDetector(clock)

	clock.Advance(time.Second)
	d.CheckFragment("そう")
	d.FeedRecentFragment("なぜ")
	if !d.HasRecentActivity() {
		t.Fatal("Expected activity before clear")
	}

	d.Clear()
	stats := d.GetStats()
	if stats.BufferedRunes != 0 || stats.RecentFragments != 0 {
		t.Errorf("Expected empty detector after clear, got %+v", stats)
	}

	// Clear lifts the rate limit
	if !d.CheckFragment("何ですか") {
		t.Error("Expected an immediate check right after clear")
	}
	if d.CheckFragment("何ですか") {
		t.Error("Expected the next check to be rate limited")
	}
	clock.Advance(250 * time.Millisecond)
	if !d.CheckFragment("") {
		t.Error("Expected detection once the interval elapsed")
	}
}
