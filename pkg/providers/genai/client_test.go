package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gemini-learn/voicetutor/pkg/tutor"
)

func testClient(serverURL string) *Client {
	c := NewClient("test-key", "gemini-test")
	c.baseURL = serverURL + "/"
	c.retries = 0
	c.backoff = time.Millisecond
	return c
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "key=test-key") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(textResponse("hello from the model"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	text, err := c.GenerateText(context.Background(), "say hello", false)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if text != "hello from the model" {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestGenerateTextWithSearchSendsTool(t *testing.T) {
	var gotTools bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tools []map[string]any `json:"tools"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, tool := range req.Tools {
			if _, ok := tool["googleSearch"]; ok {
				gotTools = true
			}
		}
		json.NewEncoder(w).Encode(textResponse("grounded answer"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	if _, err := c.GenerateText(context.Background(), "find news", true); err != nil {
		t.Fatal(err)
	}
	if !gotTools {
		t.Error("Expected googleSearch tool in the request")
	}
}

func TestGenerateTextAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "API key not valid"},
		})
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.GenerateText(context.Background(), "hi", false)
	if err == nil {
		t.Fatal("Expected error on 400 response")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Unexpected status: %d", apiErr.StatusCode)
	}
	if got := UserMessage(err); !strings.Contains(got, "API key") {
		t.Errorf("Expected key guidance, got %q", got)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(textResponse("recovered"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	c.retries = 2

	text, err := c.GenerateText(context.Background(), "hi", false)
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if text != "recovered" {
		t.Errorf("Unexpected text: %q", text)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestGenerateDoesNotRetryAuthErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := testClient(server.URL)
	c.retries = 3

	if _, err := c.GenerateText(context.Background(), "hi", false); err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt for a 403, got %d", attempts)
	}
}

func TestSynthesizeDecodesAudio(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			GenerationConfig struct {
				ResponseModalities []string `json:"responseModalities"`
			} `json:"generationConfig"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.GenerationConfig.ResponseModalities) != 1 || req.GenerationConfig.ResponseModalities[0] != "AUDIO" {
			t.Errorf("Expected AUDIO modality, got %v", req.GenerationConfig.ResponseModalities)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					}},
				},
			}},
		})
	}))
	defer server.Close()

	c := testClient(server.URL)
	got, err := c.Synthesize(context.Background(), "read this")
	if err != nil {
		t.Fatalf("Expected synthesis, got %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("Unexpected PCM: %v", got)
	}
}

func TestSynthesizeWithoutAudioFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse("no audio here"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	if _, err := c.Synthesize(context.Background(), "read this"); err == nil {
		t.Error("Expected error when response carries no audio")
	}
}

func TestFetchBriefingParsesFencedJSON(t *testing.T) {
	briefingJSON := `{"topic":"AI in Farming","summary":{"en":"Robots help.","ko":"로봇."},"discussion_questions":["Why?"],"url":"https://example.com/a"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse("```json\n" + briefingJSON + "\n```"))
	}))
	defer server.Close()

	c := testClient(server.URL)
	briefing, err := c.FetchBriefing(context.Background())
	if err != nil {
		t.Fatalf("Expected briefing, got %v", err)
	}
	if briefing.Topic != "AI in Farming" {
		t.Errorf("Unexpected topic: %q", briefing.Topic)
	}
	if briefing.Summary.EN != "Robots help." {
		t.Errorf("Unexpected summary: %+v", briefing.Summary)
	}
}

func TestFetchBriefingInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse("So, about today's news..."))
	}))
	defer server.Close()

	c := testClient(server.URL)
	if _, err := c.FetchBriefing(context.Background()); err == nil {
		t.Error("Expected invalid JSON to fail")
	}
}

func TestGetFeedbackFormatsTranscript(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		json.NewEncoder(w).Encode(textResponse(`{"overall_assessment":"Good work."}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	transcript := []tutor.TranscriptTurn{
		{Speaker: tutor.SpeakerUser, Text: "I agree with the article."},
		{Speaker: tutor.SpeakerAssistant, Text: "Tell me more."},
	}
	feedback, err := c.GetFeedback(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Expected feedback, got %v", err)
	}
	if feedback.OverallAssessment != "Good work." {
		t.Errorf("Unexpected feedback: %+v", feedback)
	}
	if !strings.Contains(prompt, "User: I agree with the article.") {
		t.Error("Expected user line in the prompt")
	}
	if !strings.Contains(prompt, "Alex: Tell me more.") {
		t.Error("Expected assistant line labeled Alex in the prompt")
	}
}

func TestGetShadowingSentences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse(`["One.","Two.","Three."]`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	feedback := &tutor.Feedback{}
	sentences, err := c.GetShadowingSentences(context.Background(), feedback)
	if err != nil {
		t.Fatalf("Expected sentences, got %v", err)
	}
	if len(sentences) != 3 || sentences[0] != "One." {
		t.Errorf("Unexpected sentences: %v", sentences)
	}
}
