package tutor

import (
	"strings"
	"sync"
)

// TranscriptAssembler accumulates streamed partial transcription fragments
// per speaker and commits them to an ordered, append-only log when the remote
// endpoint signals a turn boundary.
type TranscriptAssembler struct {
	mu sync.Mutex

	userPartial      strings.Builder
	assistantPartial strings.Builder
	turns            []TranscriptTurn
}

func NewTranscriptAssembler() *TranscriptAssembler {
	return &TranscriptAssembler{}
}

// AppendUser adds a user transcription fragment to the live buffer.
func (a *TranscriptAssembler) AppendUser(text string) {
	a.mu.Lock()
	a.userPartial.WriteString(text)
	a.mu.Unlock()
}

// AppendAssistant adds an assistant transcription fragment to the live buffer.
func (a *TranscriptAssembler) AppendAssistant(text string) {
	a.mu.Lock()
	a.assistantPartial.WriteString(text)
	a.mu.Unlock()
}

// LivePartials returns the current uncommitted text for both speakers.
func (a *TranscriptAssembler) LivePartials() (user, assistant string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userPartial.String(), a.assistantPartial.String()
}

// CommitTurn closes the current turn: each non-empty accumulator becomes a
// TranscriptTurn (user first), whitespace trimmed, and both accumulators are
// cleared. An all-whitespace accumulator appends nothing. The newly appended
// turns are returned.
func (a *TranscriptAssembler) CommitTurn() []TranscriptTurn {
	a.mu.Lock()
	defer a.mu.Unlock()

	var added []TranscriptTurn
	if text := strings.TrimSpace(a.userPartial.String()); text != "" {
		added = append(added, TranscriptTurn{Speaker: SpeakerUser, Text: text})
	}
	if text := strings.TrimSpace(a.assistantPartial.String()); text != "" {
		added = append(added, TranscriptTurn{Speaker: SpeakerAssistant, Text: text})
	}
	a.turns = append(a.turns, added...)
	a.userPartial.Reset()
	a.assistantPartial.Reset()
	return added
}

// Turns returns a copy of the committed log in turn-completion order.
func (a *TranscriptAssembler) Turns() []TranscriptTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]TranscriptTurn, len(a.turns))
	copy(out, a.turns)
	return out
}

// Reset discards the log and both live buffers.
func (a *TranscriptAssembler) Reset() {
	a.mu.Lock()
	a.turns = nil
	a.userPartial.Reset()
	a.assistantPartial.Reset()
	a.mu.Unlock()
}
