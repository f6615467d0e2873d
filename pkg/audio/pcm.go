package audio

import (
	"fmt"
	"math"
	"time"
)

// Chunk is an immutable buffer of decoded playback samples, one float slice
// per channel, all the same length.
type Chunk struct {
	Channels   [][]float32
	SampleRate int
}

// Frames returns the number of sample frames per channel.
func (c *Chunk) Frames() int {
	if len(c.Channels) == 0 {
		return 0
	}
	return len(c.Channels[0])
}

// Duration returns the playback length of the chunk.
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// Interleave flattens the per-channel frames back into interleaved order.
func (c *Chunk) Interleave() []float32 {
	frames := c.Frames()
	out := make([]float32, 0, frames*len(c.Channels))
	for i := 0; i < frames; i++ {
		for _, ch := range c.Channels {
			out = append(out, ch[i])
		}
	}
	return out
}

// PCM16 returns the chunk re-encoded as interleaved 16-bit little-endian PCM.
func (c *Chunk) PCM16() []byte {
	return EncodePCM16(c.Interleave())
}

// EncodePCM16 converts float samples in [-1, 1] to signed 16-bit little-endian
// PCM. Out-of-range samples are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := math.Round(float64(s) * 32768.0)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		n := int16(v)
		out[i*2] = byte(n)
		out[i*2+1] = byte(uint16(n) >> 8)
	}
	return out
}

// DecodePCM16 is the inverse of EncodePCM16. A trailing partial sample is
// ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out
}

// DecodeChunk deinterleaves 16-bit little-endian PCM into a playable Chunk at
// the given rate. A trailing partial frame is dropped.
func DecodeChunk(data []byte, sampleRate, channels int) (*Chunk, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	samples := DecodePCM16(data)
	frames := len(samples) / channels
	chans := make([][]float32, channels)
	for ch := range chans {
		chans[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			chans[ch][i] = samples[i*channels+ch]
		}
	}
	return &Chunk{Channels: chans, SampleRate: sampleRate}, nil
}
