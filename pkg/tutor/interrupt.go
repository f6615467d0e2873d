package tutor

import (
	"sync"
	"time"
)

// InterruptController implements barge-in: a speech onset while assistant
// audio is audible cancels all queued assistant audio. Whether the assistant
// is speaking is derived from the scheduler's playback cursor, so a turn that
// finishes naturally stops counting as speaking without an explicit clear.
// Repeated onsets re-trigger the stop; it is idempotent and cheap.
type InterruptController struct {
	mu        sync.Mutex
	scheduler *PlaybackScheduler
	logger    Logger

	lastAudioAt time.Time
	guardWindow time.Duration

	now func() time.Time
}

func NewInterruptController(scheduler *PlaybackScheduler, guardWindow time.Duration, logger Logger) *InterruptController {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &InterruptController{
		scheduler:   scheduler,
		guardWindow: guardWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// MarkAssistantAudio records that assistant audio was just scheduled.
func (ic *InterruptController) MarkAssistantAudio() {
	ic.mu.Lock()
	ic.lastAudioAt = ic.now()
	ic.mu.Unlock()
}

// AssistantSpeaking reports whether assistant playback is in flight.
func (ic *InterruptController) AssistantSpeaking() bool {
	return ic.scheduler.Playing()
}

// EchoGuardActive reports whether assistant audio played recently enough that
// the mic is likely hearing the speaker, accounting for room reverb and
// output buffer delay.
func (ic *InterruptController) EchoGuardActive() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return !ic.lastAudioAt.IsZero() && ic.now().Sub(ic.lastAudioAt) < ic.guardWindow
}

// OnSpeechOnset cancels all in-flight assistant playback if any is still
// audible. Returns true when an interruption happened.
func (ic *InterruptController) OnSpeechOnset() bool {
	if !ic.scheduler.Playing() {
		return false
	}
	ic.logger.Info("user interrupt detected, stopping assistant audio")
	ic.scheduler.StopAll()
	return true
}

// Reset clears the echo guard without touching the scheduler.
func (ic *InterruptController) Reset() {
	ic.mu.Lock()
	ic.lastAudioAt = time.Time{}
	ic.mu.Unlock()
}
