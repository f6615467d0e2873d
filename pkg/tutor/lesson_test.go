package tutor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockTextProvider struct {
	briefing     *Briefing
	briefingErr  error
	feedback     *Feedback
	feedbackErr  error
	sentences    []string
	sentencesErr error

	feedbackTranscript []TranscriptTurn
}

func (m *mockTextProvider) FetchBriefing(ctx context.Context) (*Briefing, error) {
	return m.briefing, m.briefingErr
}

func (m *mockTextProvider) GetFeedback(ctx context.Context, transcript []TranscriptTurn) (*Feedback, error) {
	m.feedbackTranscript = transcript
	return m.feedback, m.feedbackErr
}

func (m *mockTextProvider) GetShadowingSentences(ctx context.Context, feedback *Feedback) ([]string, error) {
	return m.sentences, m.sentencesErr
}

func (m *mockTextProvider) Name() string {
	return "mock-text"
}

func testBriefing() *Briefing {
	b := &Briefing{
		Topic:               "Test Topic",
		Summary:             Bilingual{EN: "A summary.", KO: "요약."},
		KeyInsights:         []Bilingual{{EN: "Insight one.", KO: "첫 번째."}},
		Implications:        Bilingual{EN: "It matters.", KO: "중요하다."},
		DiscussionQuestions: []string{"What do you think?"},
	}
	return b
}

func newTestLesson(text *mockTextProvider) (*Lesson, *mockDialer, *countingTTS, *recordSink) {
	device := &mockCaptureDevice{}
	dialer := &mockDialer{}
	sink := &recordSink{}
	session := NewSession(device, dialer, sink, DefaultConfig(), nil)
	tts := &countingTTS{result: []byte{1}}
	narrator := NewNarrator(tts, NewTTSCache(time.Minute), sink, nil)
	return NewLesson(text, narrator, session, nil), dialer, tts, sink
}

func TestFetchBriefingPreloadsAudio(t *testing.T) {
	text := &mockTextProvider{briefing: testBriefing()}
	lesson, _, tts, _ := newTestLesson(text)

	var progress int
	briefing, err := lesson.FetchBriefing(context.Background(), func(done, total int) { progress = done })
	if err != nil {
		t.Fatalf("Expected briefing fetch to succeed, got %v", err)
	}
	if briefing.Topic != "Test Topic" {
		t.Errorf("Unexpected briefing: %+v", briefing)
	}
	if tts.calls == 0 {
		t.Error("Expected briefing sections preloaded into the TTS cache")
	}
	if progress == 0 {
		t.Error("Expected preload progress callbacks")
	}
	if lesson.Briefing() != briefing {
		t.Error("Expected lesson to retain the fetched briefing")
	}
}

func TestFetchBriefingPropagatesError(t *testing.T) {
	text := &mockTextProvider{briefingErr: errors.New("search failed")}
	lesson, _, _, _ := newTestLesson(text)

	if _, err := lesson.FetchBriefing(context.Background(), nil); err == nil {
		t.Error("Expected briefing error to propagate")
	}
}

func TestReadAloudUsesNarrator(t *testing.T) {
	text := &mockTextProvider{briefing: testBriefing()}
	lesson, _, _, sink := newTestLesson(text)

	if err := lesson.ReadAloud(context.Background(), "A summary."); err != nil {
		t.Fatalf("Expected read aloud to succeed, got %v", err)
	}
	if sink.WriteCount() == 0 {
		t.Error("Expected narration written to the sink")
	}
}

func TestStartDiscussionRequiresBriefing(t *testing.T) {
	lesson, _, _, _ := newTestLesson(&mockTextProvider{})

	if err := lesson.StartDiscussion(context.Background()); err == nil {
		t.Error("Expected start without briefing to fail")
	}
}

func TestDiscussionAndFeedbackFlow(t *testing.T) {
	text := &mockTextProvider{
		briefing:  testBriefing(),
		feedback:  &Feedback{OverallAssessment: "Solid effort."},
		sentences: []string{"One.", "Two.", "Three."},
	}
	lesson, dialer, tts, _ := newTestLesson(text)

	if _, err := lesson.FetchBriefing(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if err := lesson.StartDiscussion(context.Background()); err != nil {
		t.Fatalf("Expected discussion to start, got %v", err)
	}
	if lesson.Session().State() != StateListening {
		t.Fatalf("Expected listening session, got %s", lesson.Session().State())
	}

	dialer.Deliver(ServerMessage{InputTranscription: "My view is simple.", TurnComplete: true})

	feedback, err := lesson.GetFeedback(context.Background())
	if err != nil {
		t.Fatalf("Expected feedback, got %v", err)
	}
	if feedback.OverallAssessment != "Solid effort." {
		t.Errorf("Unexpected feedback: %+v", feedback)
	}
	if lesson.Session().State() != StateIdle {
		t.Error("Expected session closed before feedback generation")
	}
	if len(text.feedbackTranscript) != 1 || text.feedbackTranscript[0].Text != "My view is simple." {
		t.Errorf("Expected committed transcript passed to provider, got %+v", text.feedbackTranscript)
	}

	sentences, err := lesson.PrepareShadowing(context.Background())
	if err != nil {
		t.Fatalf("Expected shadowing sentences, got %v", err)
	}
	if len(sentences) != 3 {
		t.Fatalf("Expected 3 sentences, got %d", len(sentences))
	}

	ttsCallsBefore := tts.calls
	if err := lesson.PlayShadowingSentence(context.Background(), 1); err != nil {
		t.Fatalf("Expected shadowing playback, got %v", err)
	}
	if tts.calls != ttsCallsBefore+1 {
		t.Error("Expected shadowing sentence synthesized")
	}
}

func TestGetFeedbackWithEmptyTranscript(t *testing.T) {
	text := &mockTextProvider{briefing: testBriefing(), feedback: &Feedback{}}
	lesson, _, _, _ := newTestLesson(text)

	if _, err := lesson.FetchBriefing(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if err := lesson.StartDiscussion(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := lesson.GetFeedback(context.Background()); err == nil {
		t.Error("Expected feedback on an empty transcript to fail")
	}
}

func TestPlayShadowingSentenceOutOfRange(t *testing.T) {
	lesson, _, _, _ := newTestLesson(&mockTextProvider{})

	if err := lesson.PlayShadowingSentence(context.Background(), 0); err == nil {
		t.Error("Expected out-of-range index to fail")
	}
}
