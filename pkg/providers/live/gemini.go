package live

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gemini-learn/voicetutor/pkg/tutor"
)

const (
	defaultHost  = "generativelanguage.googleapis.com"
	bidiPath     = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
)

// Dialer opens bidirectional Gemini Live sessions over a websocket.
type Dialer struct {
	apiKey string
	model  string
	host   string
	scheme string
}

func NewDialer(apiKey, model string) *Dialer {
	if model == "" {
		model = DefaultModel
	}
	return &Dialer{
		apiKey: apiKey,
		model:  model,
		host:   defaultHost,
		scheme: "wss",
	}
}

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string              `json:"model"`
	SystemInstruction        *content            `json:"systemInstruction,omitempty"`
	GenerationConfig         generationConfig    `json:"generationConfig"`
	InputAudioTranscription  struct{}            `json:"inputAudioTranscription"`
	OutputAudioTranscription struct{}            `json:"outputAudioTranscription"`
	RealtimeInputConfig      realtimeInputConfig `json:"realtimeInputConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type realtimeInputConfig struct {
	AutomaticActivityDetection automaticActivityDetection `json:"automaticActivityDetection"`
}

type automaticActivityDetection struct {
	Disabled          bool `json:"disabled"`
	SilenceDurationMs int  `json:"silenceDurationMs"`
	PrefixPaddingMs   int  `json:"prefixPaddingMs"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

// Dial opens the websocket, sends the session setup and spawns the read loop.
// onMessage fires for every decoded server message; onError fires once if the
// connection breaks after opening.
func (d *Dialer) Dial(ctx context.Context, cfg tutor.LiveConfig, onMessage func(tutor.ServerMessage), onError func(error)) (tutor.LiveConn, error) {
	u := url.URL{Scheme: d.scheme, Host: d.host, Path: bidiPath, RawQuery: "key=" + d.apiKey}
	wsConn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to live endpoint: %w", err)
	}
	wsConn.SetReadLimit(10 * 1024 * 1024)

	setup := setupMessage{Setup: setupPayload{
		Model: "models/" + d.model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
		RealtimeInputConfig: realtimeInputConfig{
			AutomaticActivityDetection: automaticActivityDetection{
				Disabled:          false,
				SilenceDurationMs: int(cfg.SilenceDuration.Milliseconds()),
				PrefixPaddingMs:   int(cfg.PrefixPadding.Milliseconds()),
			},
		},
	}}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}
	if err := wsjson.Write(ctx, wsConn, setup); err != nil {
		wsConn.Close(websocket.StatusAbnormalClosure, "setup write failed")
		return nil, fmt.Errorf("failed to send session setup: %w", err)
	}

	// The endpoint acknowledges setup before any content flows.
	var ack serverMessage
	if err := wsjson.Read(ctx, wsConn, &ack); err != nil {
		wsConn.Close(websocket.StatusAbnormalClosure, "setup ack failed")
		return nil, fmt.Errorf("failed to read setup acknowledgement: %w", err)
	}
	if ack.SetupComplete == nil {
		wsConn.Close(websocket.StatusProtocolError, "unexpected setup response")
		return nil, fmt.Errorf("endpoint did not acknowledge setup")
	}

	readCtx, cancel := context.WithCancel(context.Background())
	conn := &Conn{
		ws:       wsConn,
		cancel:   cancel,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", cfg.InputSampleRate),
	}
	go conn.readLoop(readCtx, onMessage, onError)
	return conn, nil
}

// Conn is one open live session.
type Conn struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	mimeType string

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// SendAudio streams one captured PCM frame to the endpoint.
func (c *Conn) SendAudio(ctx context.Context, pcm []byte) error {
	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{{
			MimeType: c.mimeType,
			Data:     base64.StdEncoding.EncodeToString(pcm),
		}},
	}}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.ws.Close(websocket.StatusNormalClosure, "")
	})
	return err
}

func (c *Conn) readLoop(ctx context.Context, onMessage func(tutor.ServerMessage), onError func(error)) {
	for {
		var msg serverMessage
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			if ctx.Err() == nil && onError != nil {
				onError(err)
			}
			return
		}
		if msg.ServerContent == nil {
			continue
		}
		out, ok := decodeServerContent(msg.ServerContent)
		if ok {
			onMessage(out)
		}
	}
}

// decodeServerContent maps the wire shape onto the dispatcher's message. The
// second return is false when the message carries nothing actionable.
func decodeServerContent(sc *serverContent) (tutor.ServerMessage, bool) {
	var out tutor.ServerMessage
	actionable := false

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		out.InputTranscription = sc.InputTranscription.Text
		actionable = true
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out.OutputTranscription = sc.OutputTranscription.Text
		actionable = true
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				// Undecodable parts are dropped; the rest of the message
				// still dispatches.
				continue
			}
			out.Audio = append(out.Audio, pcm...)
			actionable = true
		}
	}
	if sc.TurnComplete {
		out.TurnComplete = true
		actionable = true
	}
	return out, actionable
}
