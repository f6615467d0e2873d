package tutor

import (
	"context"
	"fmt"
)

// Lesson is a high-level, user-friendly API for one guided study session:
// briefing, live discussion, written feedback, then a shadowing drill. It
// wraps the Session and the text/TTS collaborators so callers drive the flow
// step by step.
type Lesson struct {
	text     TextProvider
	narrator *Narrator
	session  *Session
	logger   Logger

	briefing  *Briefing
	feedback  *Feedback
	sentences []string
}

func NewLesson(text TextProvider, narrator *Narrator, session *Session, logger Logger) *Lesson {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Lesson{
		text:     text,
		narrator: narrator,
		session:  session,
		logger:   logger,
	}
}

// FetchBriefing generates today's news briefing and preloads its read-aloud
// sections into the TTS cache. Preload failures are non-fatal.
func (l *Lesson) FetchBriefing(ctx context.Context, onPreload func(done, total int)) (*Briefing, error) {
	briefing, err := l.text.FetchBriefing(ctx)
	if err != nil {
		return nil, fmt.Errorf("briefing generation failed: %w", err)
	}
	l.briefing = briefing

	texts := []string{briefing.Summary.EN}
	insights := ""
	for i, ins := range briefing.KeyInsights {
		if i > 0 {
			insights += ". "
		}
		insights += ins.EN
	}
	if insights != "" {
		texts = append(texts, insights)
	}
	if briefing.Implications.EN != "" {
		texts = append(texts, briefing.Implications.EN)
	}
	l.narrator.Preload(ctx, texts, onPreload)

	return briefing, nil
}

// Briefing returns the current briefing, if fetched.
func (l *Lesson) Briefing() *Briefing {
	return l.briefing
}

// Session exposes the underlying live session for state queries and
// watchdog dismissal.
func (l *Lesson) Session() *Session {
	return l.session
}

// ReadAloud plays one briefing section through the narrator.
func (l *Lesson) ReadAloud(ctx context.Context, text string) error {
	return l.narrator.Speak(ctx, text)
}

// StartDiscussion opens the live session seeded with the first discussion
// question. Requires a fetched briefing.
func (l *Lesson) StartDiscussion(ctx context.Context) error {
	if l.briefing == nil {
		return fmt.Errorf("no briefing fetched")
	}
	firstQuestion := "What's your first impression?"
	if len(l.briefing.DiscussionQuestions) > 0 {
		firstQuestion = l.briefing.DiscussionQuestions[0]
	}
	prompt := fmt.Sprintf(
		`You are Alex, a discussion partner. Ask: %q Then naturally discuss the topic. After good conversation, ask if user wants feedback.`,
		firstQuestion)
	return l.session.Start(ctx, prompt)
}

// EndDiscussion tears down the live session if one is running.
func (l *Lesson) EndDiscussion() {
	l.session.Stop()
}

// GetFeedback ends the discussion and generates the written assessment from
// the committed transcript.
func (l *Lesson) GetFeedback(ctx context.Context) (*Feedback, error) {
	l.session.Stop()

	transcript := l.session.Transcript()
	if len(transcript) == 0 {
		return nil, fmt.Errorf("no conversation to analyze")
	}
	feedback, err := l.text.GetFeedback(ctx, transcript)
	if err != nil {
		return nil, fmt.Errorf("feedback generation failed: %w", err)
	}
	l.feedback = feedback
	return feedback, nil
}

// PrepareShadowing selects the most impactful corrected sentences from the
// feedback for the shadowing drill.
func (l *Lesson) PrepareShadowing(ctx context.Context) ([]string, error) {
	if l.feedback == nil {
		return nil, fmt.Errorf("no feedback available")
	}
	sentences, err := l.text.GetShadowingSentences(ctx, l.feedback)
	if err != nil {
		return nil, fmt.Errorf("shadowing preparation failed: %w", err)
	}
	l.sentences = sentences
	return sentences, nil
}

// ShadowingSentences returns the prepared drill sentences.
func (l *Lesson) ShadowingSentences() []string {
	return l.sentences
}

// PlayShadowingSentence speaks drill sentence i.
func (l *Lesson) PlayShadowingSentence(ctx context.Context, i int) error {
	if i < 0 || i >= len(l.sentences) {
		return fmt.Errorf("no shadowing sentence at index %d", i)
	}
	return l.narrator.Speak(ctx, l.sentences[i])
}
