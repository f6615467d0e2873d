package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	baseURL          = "https://generativelanguage.googleapis.com/v1beta/models/"
	DefaultTextModel = "gemini-2.5-flash"
	DefaultTTSModel  = "gemini-2.5-flash-preview-tts"
	DefaultVoice     = "Zephyr"
)

// Client talks to the Gemini generateContent REST endpoint. It covers both
// text generation and single-shot speech synthesis.
type Client struct {
	apiKey     string
	textModel  string
	ttsModel   string
	voice      string
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

func NewClient(apiKey string, textModel string) *Client {
	if textModel == "" {
		textModel = DefaultTextModel
	}
	return &Client{
		apiKey:     apiKey,
		textModel:  textModel,
		ttsModel:   DefaultTTSModel,
		voice:      DefaultVoice,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		retries:    3,
		backoff:    time.Second,
	}
}

type requestContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Contents         []requestContent  `json:"contents"`
	Tools            []map[string]any  `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
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

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, model string, payload generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := c.doGenerate(ctx, model, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doGenerate(ctx context.Context, model string, body []byte) (*generateResponse, error) {
	url := c.baseURL + model + ":generateContent?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateText runs a single text prompt. When withSearch is set, Google
// Search grounding is enabled so the model can cite recent sources.
func (c *Client) GenerateText(ctx context.Context, prompt string, withSearch bool) (string, error) {
	payload := generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
	}
	if withSearch {
		payload.Tools = []map[string]any{{"googleSearch": map[string]any{}}}
	}

	resp, err := c.generate(ctx, c.textModel, payload)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from model %s", c.textModel)
	}
	// Search-grounded answers may split text across parts.
	var text string
	for _, p := range resp.Candidates[0].Content.Parts {
		text += p.Text
	}
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.textModel)
	}
	return text, nil
}

// Synthesize renders text as raw 16-bit PCM at 24 kHz mono.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: c.voice},
				},
			},
		},
	}

	resp, err := c.generate(ctx, c.ttsModel, payload)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no audio in response from model %s", c.ttsModel)
	}
	data := resp.Candidates[0].Content.Parts[0].InlineData
	if data == nil || data.Data == "" {
		return nil, fmt.Errorf("response from model %s carried no inline audio", c.ttsModel)
	}
	pcm, err := base64.StdEncoding.DecodeString(data.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}
	return pcm, nil
}

// CheckStatus verifies the API key with a minimal text request.
func (c *Client) CheckStatus(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("api key is not provided")
	}
	_, err := c.GenerateText(ctx, "test", false)
	return err
}

func (c *Client) Name() string {
	return "google-genai"
}
