package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gemini-learn/voicetutor/pkg/tutor"
)

const briefingPrompt = `You are Alex, an intelligent English discussion partner at the CEFR B1-B2 level. Your task is to find a recent English news article (published within the last 3 months) using Google Search on a diverse and new topic (e.g., IT, AI, finance, economic trends, self-development, or in-depth interviews with figures like Peter Thiel or Elon Musk). After finding and verifying the URL, generate a briefing in the following JSON format. Ensure all English text is at a B1-B2 level. Provide both English and Korean for the specified fields. Do not include markdown formatting in the JSON output.

{
  "topic": "A concise title for the topic, including both an English version and a Korean translation on a new line. e.g., The Future of AI in Healthcare\n(헬스케어 분야 AI의 미래)",
  "article": { "title": "...", "source": "...", "publication_date": "YYYY-MM-DD" },
  "summary": { "en": "...", "ko": "..." },
  "key_insights": [
    { "en": "...", "ko": "..." },
    { "en": "...", "ko": "..." },
    { "en": "...", "ko": "..." }
  ],
  "implications": { "en": "...", "ko": "..." },
  "vocabulary": [
    { "word": "...", "meaning": "...", "example": "..." },
    { "word": "...", "meaning": "...", "example": "..." },
    { "word": "...", "meaning": "...", "example": "..." },
    { "word": "...", "meaning": "...", "example": "..." },
    { "word": "...", "meaning": "...", "example": "..." }
  ],
  "discussion_questions": ["...", "...", "...", "...", "..."],
  "url": "..."
}

Find a different topic than any previous ones. The URL must be the full, valid, and unchanged URL found via search. The publication_date must be accurate.`

const feedbackPromptFormat = `You are Alex, an intelligent English discussion partner. Analyze the following conversation transcript. Provide comprehensive and objective feedback based on the user's performance. Structure your feedback in the exact JSON format below.

**Conversation Transcript:**
%s

**Required JSON Output Format:**
{
  "overall_assessment": "...",
  "praise_points": ["...", "..."],
  "good_expressions": [
    { "expression": "...", "reason": "...", "example": "..." }
  ],
  "improvement_suggestions": {
    "grammar": [
      { "original": "...", "corrected": "...", "reason": "..." }
    ],
    "vocabulary": [
      { "original": "...", "corrected": "...", "reason": "..." }
    ],
    "fluency": [
      { "suggestion": "...", "reason": "..." }
    ]
  }
}`

const shadowingPromptFormat = `You are Alex, an English tutor. From the 'corrected' sentences in the 'grammar' and 'vocabulary' sections of the feedback JSON below, select the 3 most important and impactful sentences for the user to practice for shadowing. Return them as a JSON array of strings.

**Feedback JSON:**
%s

**Required JSON Output Format:**
["sentence 1", "sentence 2", "sentence 3"]`

// decodeJSONResponse strips an optional markdown code fence before decoding.
// Models wrap JSON in fences often enough that this cannot be left to chance.
func decodeJSONResponse(text string, v any) error {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return nil
}

// FetchBriefing asks for a fresh news briefing with search grounding enabled.
func (c *Client) FetchBriefing(ctx context.Context) (*tutor.Briefing, error) {
	text, err := c.GenerateText(ctx, briefingPrompt, true)
	if err != nil {
		return nil, err
	}
	var briefing tutor.Briefing
	if err := decodeJSONResponse(text, &briefing); err != nil {
		return nil, fmt.Errorf("briefing: %w", err)
	}
	return &briefing, nil
}

// GetFeedback grades the learner's side of a finished discussion.
func (c *Client) GetFeedback(ctx context.Context, transcript []tutor.TranscriptTurn) (*tutor.Feedback, error) {
	lines := make([]string, 0, len(transcript))
	for _, t := range transcript {
		name := "Alex"
		if t.Speaker == tutor.SpeakerUser {
			name = "User"
		}
		lines = append(lines, name+": "+t.Text)
	}

	prompt := fmt.Sprintf(feedbackPromptFormat, strings.Join(lines, "\n"))
	text, err := c.GenerateText(ctx, prompt, false)
	if err != nil {
		return nil, err
	}
	var feedback tutor.Feedback
	if err := decodeJSONResponse(text, &feedback); err != nil {
		return nil, fmt.Errorf("feedback: %w", err)
	}
	return &feedback, nil
}

// GetShadowingSentences picks practice sentences out of the feedback's
// corrections.
func (c *Client) GetShadowingSentences(ctx context.Context, feedback *tutor.Feedback) ([]string, error) {
	suggestions, err := json.Marshal(feedback.ImprovementSuggestions)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(shadowingPromptFormat, string(suggestions))
	text, err := c.GenerateText(ctx, prompt, false)
	if err != nil {
		return nil, err
	}
	var sentences []string
	if err := decodeJSONResponse(text, &sentences); err != nil {
		return nil, fmt.Errorf("shadowing sentences: %w", err)
	}
	return sentences, nil
}
