package tutor

import (
	"sync"
	"time"

	"github.com/gemini-learn/voicetutor/pkg/audio"
)

// Clock reports the playback device time in seconds. A Session starts a fresh
// monotonic clock; tests inject a fake.
type Clock interface {
	Now() float64
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a Clock that starts at zero when created.
func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

type scheduledChunk struct {
	startAt float64
	endAt   float64
	timer   *time.Timer
}

// PlaybackScheduler queues synthesized speech chunks back to back. The cursor
// only moves forward and never behind the device clock, so fragments arriving
// with arbitrary network jitter neither overlap nor gap.
type PlaybackScheduler struct {
	mu    sync.Mutex
	clock Clock
	sink  PlaybackSink

	nextStartTime float64
	live          map[*scheduledChunk]struct{}
}

func NewPlaybackScheduler(clock Clock, sink PlaybackSink) *PlaybackScheduler {
	return &PlaybackScheduler{
		clock: clock,
		sink:  sink,
		live:  make(map[*scheduledChunk]struct{}),
	}
}

// Schedule assigns the chunk the earliest start that neither overlaps the
// previous chunk nor lies in the past, and arms its playback. It returns the
// assigned start time.
func (s *PlaybackScheduler) Schedule(chunk *audio.Chunk) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	start := s.nextStartTime
	if now > start {
		start = now
	}
	dur := chunk.Duration().Seconds()
	s.nextStartTime = start + dur

	sc := &scheduledChunk{startAt: start, endAt: start + dur}
	s.live[sc] = struct{}{}

	pcm := chunk.PCM16()
	delay := time.Duration((start - now) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	sc.timer = time.AfterFunc(delay, func() {
		s.fire(sc, pcm)
	})

	return start
}

func (s *PlaybackScheduler) fire(sc *scheduledChunk, pcm []byte) {
	s.mu.Lock()
	if _, ok := s.live[sc]; !ok {
		// Cancelled between arming and firing.
		s.mu.Unlock()
		return
	}
	delete(s.live, sc)
	sink := s.sink
	s.mu.Unlock()

	_ = sink.Write(pcm)
}

// StopAll force-stops every scheduled chunk, clears the live set, resets the
// cursor to zero and flushes anything already handed to the sink. The next
// utterance starts immediately instead of waiting behind stale entries.
func (s *PlaybackScheduler) StopAll() {
	s.mu.Lock()
	for sc := range s.live {
		if sc.timer != nil {
			sc.timer.Stop()
		}
	}
	s.live = make(map[*scheduledChunk]struct{})
	s.nextStartTime = 0
	sink := s.sink
	s.mu.Unlock()

	sink.Flush()
}

// Playing reports whether scheduled audio is still audible. The cursor sits
// at the end of the last scheduled chunk, so playback is in flight exactly
// while the device clock has not caught up to it.
func (s *PlaybackScheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now() < s.nextStartTime
}

// Pending returns how many chunks are scheduled but not yet played.
func (s *PlaybackScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// NextStartTime returns the current cursor position.
func (s *PlaybackScheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStartTime
}
