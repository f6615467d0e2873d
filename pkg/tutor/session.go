package tutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gemini-learn/voicetutor/pkg/audio"
)

// Session owns one live voice discussion: the microphone stream, the remote
// connection, the playback scheduler and the watchdog. At most one Session is
// active per instance; Start while active is rejected. All resource handles
// are released on Stop, on fatal error, or on watchdog timeout, and the
// teardown is safe to invoke from any state, any number of times.
type Session struct {
	cfg    Config
	logger Logger
	device CaptureDevice
	dialer LiveDialer
	sink   PlaybackSink

	events   chan Event
	newClock func() Clock

	mu           sync.Mutex
	state        SessionState
	createdAt    time.Time
	lastActivity time.Time
	capture      CaptureSource
	conn         LiveConn
	scheduler    *PlaybackScheduler
	vad          *EnergyVAD
	interrupts   *InterruptController
	transcript   *TranscriptAssembler
	watchdog     *InactivityWatchdog
	sendCtx      context.Context
	sendCancel   context.CancelFunc
}

func NewSession(device CaptureDevice, dialer LiveDialer, sink PlaybackSink, cfg Config, logger Logger) *Session {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Session{
		cfg:        cfg,
		logger:     logger,
		device:     device,
		dialer:     dialer,
		sink:       sink,
		events:     make(chan Event, 256),
		newClock:   NewMonotonicClock,
		state:      StateIdle,
		transcript: NewTranscriptAssembler(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the event channel for UI consumption.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Transcript returns a copy of the committed conversation log. It survives
// teardown so feedback can be generated after the discussion ends.
func (s *Session) Transcript() []TranscriptTurn {
	s.mu.Lock()
	transcript := s.transcript
	s.mu.Unlock()
	return transcript.Turns()
}

// LivePartials returns the uncommitted transcription text for both speakers.
func (s *Session) LivePartials() (user, assistant string) {
	s.mu.Lock()
	transcript := s.transcript
	s.mu.Unlock()
	return transcript.LivePartials()
}

// Start acquires the microphone, dials the live endpoint with the given
// system instruction and begins streaming. Rejected with ErrSessionActive
// unless the session is idle.
func (s *Session) Start(ctx context.Context, systemInstruction string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.logger.Warn("start rejected, session already active", "state", s.state)
		return ErrSessionActive
	}
	s.state = StateConnecting
	s.createdAt = time.Now()
	s.mu.Unlock()

	capture, err := s.device.AcquireCapture(ctx, s.cfg.InputSampleRate, s.cfg.Channels)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrMicUnavailable, err)
		s.teardown(wrapped)
		return wrapped
	}

	liveCfg := LiveConfig{
		SystemInstruction: systemInstruction,
		Voice:             s.cfg.Voice,
		InputSampleRate:   s.cfg.InputSampleRate,
		SilenceDuration:   s.cfg.SilenceDuration,
		PrefixPadding:     s.cfg.PrefixPadding,
	}
	conn, err := s.dialer.Dial(ctx, liveCfg, s.handleServerMessage, s.handleConnError)
	if err != nil {
		_ = capture.Stop()
		wrapped := fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		s.teardown(wrapped)
		return wrapped
	}

	sendCtx, sendCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.state != StateConnecting {
		// Stopped while the handshake was in flight.
		s.mu.Unlock()
		sendCancel()
		_ = capture.Stop()
		_ = conn.Close()
		return errors.New("session stopped while connecting")
	}
	clock := s.newClock()
	s.capture = capture
	s.conn = conn
	s.scheduler = NewPlaybackScheduler(clock, s.sink)
	s.vad = NewEnergyVAD(s.cfg.VADThresholdDB, s.cfg.VADSmoothing)
	s.interrupts = NewInterruptController(s.scheduler, s.cfg.EchoGuardWindow, s.logger)
	s.transcript = NewTranscriptAssembler()
	s.watchdog = NewInactivityWatchdog(s.cfg.WarnAfter, s.cfg.CloseAfter, s.onInactivityWarn, s.onInactivityClose)
	s.sendCtx = sendCtx
	s.sendCancel = sendCancel
	watchdog := s.watchdog
	s.mu.Unlock()

	if err := capture.Start(s.onCaptureFrame); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrMicUnavailable, err)
		s.teardown(wrapped)
		return wrapped
	}

	s.mu.Lock()
	s.state = StateListening
	s.lastActivity = time.Now()
	s.mu.Unlock()

	watchdog.Arm()
	s.emit(SessionListening, nil)
	s.logger.Info("live session listening",
		"inputRate", s.cfg.InputSampleRate, "outputRate", s.cfg.OutputSampleRate)
	return nil
}

// Stop tears the session down and returns it to idle. Safe from any state
// and safe to call repeatedly, including concurrently with in-flight work.
func (s *Session) Stop() {
	s.teardown(nil)
}

// DismissInactivityWarning acknowledges the first-stage warning, which
// restarts the watchdog.
func (s *Session) DismissInactivityWarning() {
	s.mu.Lock()
	watchdog := s.watchdog
	s.mu.Unlock()
	if watchdog != nil {
		watchdog.Reset()
	}
}

// onCaptureFrame runs once per capture delivery: VAD, barge-in check, then
// the frame goes out encoded.
func (s *Session) onCaptureFrame(samples []float32) {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	vad := s.vad
	interrupts := s.interrupts
	conn := s.conn
	ctx := s.sendCtx
	s.mu.Unlock()

	threshold := s.cfg.VADThresholdDB
	if interrupts.EchoGuardActive() {
		threshold += s.cfg.EchoGuardBoostDB
	}
	vad.SetThreshold(threshold)

	state := vad.Process(samples)
	if vad.Onset() {
		s.emit(UserSpeaking, state.LevelDB)
		if interrupts.OnSpeechOnset() {
			s.emit(Interrupted, nil)
		}
	} else if vad.Offset() {
		s.emit(UserStopped, nil)
	}

	pcm := audio.EncodePCM16(samples)
	if err := conn.SendAudio(ctx, pcm); err != nil {
		if ctx.Err() == nil {
			s.teardown(fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
	}
}

// handleServerMessage dispatches one remote message. Each branch is a pure
// state update; messages may carry several kinds at once.
func (s *Session) handleServerMessage(msg ServerMessage) {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return
	}
	transcript := s.transcript
	watchdog := s.watchdog
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if msg.InputTranscription != "" {
		transcript.AppendUser(msg.InputTranscription)
		watchdog.Reset()
		user, _ := transcript.LivePartials()
		s.emit(TranscriptUser, user)
	}

	if msg.OutputTranscription != "" {
		transcript.AppendAssistant(msg.OutputTranscription)
		_, assistant := transcript.LivePartials()
		s.emit(TranscriptAssistant, assistant)
	}

	if len(msg.Audio) > 0 {
		s.scheduleAssistantAudio(msg.Audio)
	}

	if msg.TurnComplete {
		if added := transcript.CommitTurn(); len(added) > 0 {
			s.emit(TurnCommitted, added)
		}
	}
}

func (s *Session) scheduleAssistantAudio(payload []byte) {
	chunk, err := audio.DecodeChunk(payload, s.cfg.OutputSampleRate, s.cfg.Channels)
	if err != nil || chunk.Frames() == 0 {
		// A malformed payload costs one chunk, never the session.
		s.logger.Warn("dropping assistant audio chunk", "error", fmt.Sprintf("%v: %v", ErrDecodeFailed, err))
		return
	}

	// Scheduling happens under the session lock so it cannot interleave with
	// teardown: either the chunk lands before StopAll and gets cancelled with
	// the rest, or the state check sees the session closing and drops it.
	s.mu.Lock()
	if s.state != StateListening || s.scheduler == nil {
		s.mu.Unlock()
		return
	}
	s.interrupts.MarkAssistantAudio()
	start := s.scheduler.Schedule(chunk)
	s.mu.Unlock()
	s.emit(AssistantSpeaking, start)
}

func (s *Session) handleConnError(err error) {
	s.teardown(fmt.Errorf("%w: %v", ErrConnectionFailed, err))
}

func (s *Session) onInactivityWarn() {
	s.logger.Info("inactivity warning raised")
	s.emit(InactivityWarning, "No speech detected for a while. Are you still there?")
}

func (s *Session) onInactivityClose() {
	s.logger.Info("closing session due to inactivity")
	s.teardown(ErrInactivityTimeout)
}

// teardown releases every acquired handle exactly once and resets to idle.
// Each release guards an already-nil handle, so overlapping calls and calls
// racing in-flight suspended operations are no-ops.
func (s *Session) teardown(cause error) {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	capture := s.capture
	conn := s.conn
	scheduler := s.scheduler
	watchdog := s.watchdog
	cancel := s.sendCancel
	s.capture = nil
	s.conn = nil
	s.scheduler = nil
	s.watchdog = nil
	s.sendCtx = nil
	s.sendCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watchdog != nil {
		watchdog.Disarm()
	}
	if scheduler != nil {
		scheduler.StopAll()
	}
	if capture != nil {
		if err := capture.Stop(); err != nil {
			s.logger.Warn("capture stop failed", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn("connection close failed", "error", err)
		}
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	if cause != nil {
		s.logger.Error("session ended", "error", cause)
		s.emit(ErrorEvent, UserMessage(cause))
	}
	s.emit(SessionClosed, nil)
}

func (s *Session) emit(eventType EventType, data interface{}) {
	select {
	case s.events <- Event{Type: eventType, Data: data}:
	default:
		s.logger.Debug("event dropped, channel full", "type", eventType)
	}
}
