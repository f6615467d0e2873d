package tutor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingTTS struct {
	calls  int
	result []byte
	err    error
}

func (m *countingTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.calls++
	return m.result, m.err
}

func (m *countingTTS) Name() string {
	return "counting-tts"
}

func TestNarratorSpeakWritesToSink(t *testing.T) {
	tts := &countingTTS{result: []byte{1, 2}}
	sink := &recordSink{}
	n := NewNarrator(tts, NewTTSCache(time.Minute), sink, nil)

	if err := n.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Expected speak to succeed, got %v", err)
	}
	if sink.WriteCount() != 1 {
		t.Errorf("Expected 1 sink write, got %d", sink.WriteCount())
	}
}

func TestNarratorCacheSkipsSynthesis(t *testing.T) {
	tts := &countingTTS{result: []byte{1}}
	sink := &recordSink{}
	n := NewNarrator(tts, NewTTSCache(time.Minute), sink, nil)

	ctx := context.Background()
	n.Speak(ctx, "same text")
	n.Speak(ctx, "same text")
	n.Speak(ctx, "same text")

	if tts.calls != 1 {
		t.Errorf("Expected a single synthesis for repeated text, got %d", tts.calls)
	}
	if sink.WriteCount() != 3 {
		t.Errorf("Expected 3 sink writes, got %d", sink.WriteCount())
	}
}

func TestNarratorSpeakWrapsProviderError(t *testing.T) {
	tts := &countingTTS{err: errors.New("backend down")}
	n := NewNarrator(tts, NewTTSCache(time.Minute), &recordSink{}, nil)

	err := n.Speak(context.Background(), "hello")
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Errorf("Expected ErrSynthesisFailed, got %v", err)
	}
}

func TestNarratorPreloadReportsProgress(t *testing.T) {
	tts := &countingTTS{result: []byte{1}}
	n := NewNarrator(tts, NewTTSCache(time.Minute), &recordSink{}, nil)

	var progress [][2]int
	n.Preload(context.Background(), []string{"a", "b", "c"}, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})

	if tts.calls != 3 {
		t.Errorf("Expected 3 syntheses, got %d", tts.calls)
	}
	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(progress) != len(want) {
		t.Fatalf("Expected %d progress callbacks, got %d", len(want), len(progress))
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("Progress %d: expected %v, got %v", i, want[i], progress[i])
		}
	}
}

func TestNarratorPreloadContinuesPastFailures(t *testing.T) {
	tts := &countingTTS{err: errors.New("backend down")}
	n := NewNarrator(tts, NewTTSCache(time.Minute), &recordSink{}, nil)

	calls := 0
	n.Preload(context.Background(), []string{"a", "b"}, func(done, total int) { calls++ })

	if tts.calls != 2 {
		t.Errorf("Expected both texts attempted despite failures, got %d", tts.calls)
	}
	if calls != 2 {
		t.Errorf("Expected progress for both texts, got %d", calls)
	}
}

func TestNarratorStopFlushesSink(t *testing.T) {
	sink := &recordSink{}
	n := NewNarrator(&countingTTS{result: []byte{1}}, NewTTSCache(time.Minute), sink, nil)

	n.Stop()
	if sink.FlushCount() != 1 {
		t.Errorf("Expected a sink flush on stop, got %d", sink.FlushCount())
	}
}
