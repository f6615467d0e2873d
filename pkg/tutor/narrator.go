package tutor

import (
	"context"
	"fmt"
)

// Narrator plays synthesized speech for the read-aloud and shadowing
// features, going through the TTS cache so repeated prompts skip synthesis.
// Narrator failures never affect a live discussion session.
type Narrator struct {
	tts    TTSProvider
	cache  *TTSCache
	sink   PlaybackSink
	logger Logger
}

func NewNarrator(tts TTSProvider, cache *TTSCache, sink PlaybackSink, logger Logger) *Narrator {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Narrator{
		tts:    tts,
		cache:  cache,
		sink:   sink,
		logger: logger,
	}
}

// Speak synthesizes text (or serves it from cache) and writes it to the sink.
func (n *Narrator) Speak(ctx context.Context, text string) error {
	pcm, err := n.fetch(ctx, text)
	if err != nil {
		return err
	}
	return n.sink.Write(pcm)
}

// Stop discards any narration not yet played.
func (n *Narrator) Stop() {
	n.sink.Flush()
}

// Preload synthesizes each text into the cache ahead of playback. Individual
// failures are logged and skipped; onProgress reports completed count.
func (n *Narrator) Preload(ctx context.Context, texts []string, onProgress func(done, total int)) {
	for i, text := range texts {
		if _, err := n.fetch(ctx, text); err != nil {
			n.logger.Warn("preload failed", "index", i, "error", err)
		}
		if onProgress != nil {
			onProgress(i+1, len(texts))
		}
	}
}

func (n *Narrator) fetch(ctx context.Context, text string) ([]byte, error) {
	if pcm, ok := n.cache.Get(text); ok {
		n.logger.Debug("tts served from cache", "chars", len(text))
		return pcm, nil
	}
	pcm, err := n.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	n.cache.Set(text, pcm)
	return pcm, nil
}
