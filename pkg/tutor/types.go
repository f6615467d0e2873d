package tutor

import (
	"context"
	"time"
)

type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// SessionState tracks the live-session lifecycle.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateConnecting SessionState = "connecting"
	StateListening  SessionState = "listening"
	StateClosing    SessionState = "closing"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// TranscriptTurn is one committed utterance. Immutable once appended.
type TranscriptTurn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ServerMessage is one decoded message from the live conversational endpoint.
// Fields are not mutually exclusive: a single message may carry transcription
// text, synthesized audio, and a turn boundary at once.
type ServerMessage struct {
	InputTranscription  string
	OutputTranscription string
	Audio               []byte // raw 16-bit PCM at the output sample rate
	TurnComplete        bool
}

// LiveConfig is the connection configuration for the conversational endpoint.
type LiveConfig struct {
	SystemInstruction string
	Voice             string
	InputSampleRate   int
	SilenceDuration   time.Duration
	PrefixPadding     time.Duration
}

// LiveConn is an open bidirectional connection. Owned exclusively by the
// Session that dialed it.
type LiveConn interface {
	SendAudio(ctx context.Context, pcm []byte) error
	Close() error
}

// LiveDialer opens live connections. onMessage is invoked for every server
// message, onError once if the connection fails after opening.
type LiveDialer interface {
	Dial(ctx context.Context, cfg LiveConfig, onMessage func(ServerMessage), onError func(error)) (LiveConn, error)
}

// CaptureSource is an acquired microphone stream delivering float frames.
type CaptureSource interface {
	Start(onFrame func(samples []float32)) error
	Stop() error
}

// CaptureDevice acquires microphone streams.
type CaptureDevice interface {
	AcquireCapture(ctx context.Context, sampleRate, channels int) (CaptureSource, error)
}

// PlaybackSink accepts interleaved 16-bit PCM for immediate playback. Flush
// discards anything not yet played.
type PlaybackSink interface {
	Write(pcm []byte) error
	Flush()
}

// TTSProvider synthesizes speech for the read-aloud and shadowing features.
// The returned bytes are mono 16-bit PCM at the output sample rate.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Name() string
}

type EventType string

const (
	UserSpeaking        EventType = "USER_SPEAKING"
	UserStopped         EventType = "USER_STOPPED"
	TranscriptUser      EventType = "TRANSCRIPT_USER"
	TranscriptAssistant EventType = "TRANSCRIPT_ASSISTANT"
	TurnCommitted       EventType = "TURN_COMMITTED"
	AssistantSpeaking   EventType = "ASSISTANT_SPEAKING"
	Interrupted         EventType = "INTERRUPTED"
	InactivityWarning   EventType = "INACTIVITY_WARNING"
	SessionListening    EventType = "SESSION_LISTENING"
	SessionClosed       EventType = "SESSION_CLOSED"
	ErrorEvent          EventType = "ERROR"
)

// Event is emitted by a Session for UI consumption.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type Config struct {
	InputSampleRate  int
	OutputSampleRate int
	Channels         int

	Voice string

	// VAD tuning. The threshold is in dBFS; the smoothing factor damps
	// frame-to-frame level flicker. Empirical constants, not adaptive.
	VADThresholdDB float64
	VADSmoothing   float64

	// While assistant audio played within EchoGuardWindow, the VAD threshold
	// is raised by EchoGuardBoostDB so the mic picking up the speaker does
	// not read as a barge-in.
	EchoGuardWindow  time.Duration
	EchoGuardBoostDB float64

	// Remote automatic voice-activity detection.
	SilenceDuration time.Duration
	PrefixPadding   time.Duration

	// Inactivity watchdog: warn after WarnAfter of silence, close after a
	// further CloseAfter with no dismissal.
	WarnAfter  time.Duration
	CloseAfter time.Duration

	CacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
		Channels:         1,
		Voice:            "Zephyr",
		VADThresholdDB:   -45,
		VADSmoothing:     0.8,
		EchoGuardWindow:  250 * time.Millisecond,
		EchoGuardBoostDB: 15,
		SilenceDuration:  800 * time.Millisecond,
		PrefixPadding:    100 * time.Millisecond,
		WarnAfter:        2 * time.Minute,
		CloseAfter:       1 * time.Minute,
		CacheTTL:         30 * time.Minute,
	}
}

// Briefing is the generated news briefing that seeds a lesson.
type Briefing struct {
	Topic   string `json:"topic"`
	Article struct {
		Title           string `json:"title"`
		Source          string `json:"source"`
		PublicationDate string `json:"publication_date"`
	} `json:"article"`
	Summary      Bilingual   `json:"summary"`
	KeyInsights  []Bilingual `json:"key_insights"`
	Implications Bilingual   `json:"implications"`
	Vocabulary   []struct {
		Word    string `json:"word"`
		Meaning string `json:"meaning"`
		Example string `json:"example"`
	} `json:"vocabulary"`
	DiscussionQuestions []string `json:"discussion_questions"`
	URL                 string   `json:"url"`
}

type Bilingual struct {
	EN string `json:"en"`
	KO string `json:"ko"`
}

// Feedback is the written assessment of a finished discussion.
type Feedback struct {
	OverallAssessment string   `json:"overall_assessment"`
	PraisePoints      []string `json:"praise_points"`
	GoodExpressions   []struct {
		Expression string `json:"expression"`
		Reason     string `json:"reason"`
		Example    string `json:"example"`
	} `json:"good_expressions"`
	ImprovementSuggestions ImprovementSuggestions `json:"improvement_suggestions"`
}

type ImprovementSuggestions struct {
	Grammar    []Correction `json:"grammar"`
	Vocabulary []Correction `json:"vocabulary"`
	Fluency    []struct {
		Suggestion string `json:"suggestion"`
		Reason     string `json:"reason"`
	} `json:"fluency"`
}

type Correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Reason    string `json:"reason"`
}

// TextProvider generates the briefing, feedback and shadowing material.
type TextProvider interface {
	FetchBriefing(ctx context.Context) (*Briefing, error)
	GetFeedback(ctx context.Context, transcript []TranscriptTurn) (*Feedback, error)
	GetShadowingSentences(ctx context.Context, feedback *Feedback) ([]string, error)
	Name() string
}
