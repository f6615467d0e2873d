package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/gemini-learn/voicetutor/pkg/audio"
	"github.com/gemini-learn/voicetutor/pkg/tutor"
)

// audioEngine owns the malgo context and the playback device. Capture devices
// are acquired per session; playback runs for the life of the process.
type audioEngine struct {
	ctx  *malgo.AllocatedContext
	sink *playbackSink

	recorder *recorder
}

func newAudioEngine(outputSampleRate, channels int) (*audioEngine, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	sink := &playbackSink{}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(outputSampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			sink.fill(pOutput)
		},
	})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("failed to init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	sink.device = device

	return &audioEngine{ctx: mctx, sink: sink}, nil
}

func (e *audioEngine) Sink() tutor.PlaybackSink { return e.sink }

// RecordTo copies every captured frame into an in-memory WAV written at Close.
func (e *audioEngine) RecordTo(path string, sampleRate, channels int) {
	e.recorder = &recorder{path: path, sampleRate: sampleRate, channels: channels}
}

func (e *audioEngine) Close() error {
	var err error
	if e.recorder != nil {
		err = e.recorder.save()
	}
	if e.sink.device != nil {
		e.sink.device.Uninit()
	}
	e.ctx.Uninit()
	return err
}

// AcquireCapture opens the microphone. The device is initialized here so a
// missing or busy microphone fails the session start, not the first frame.
func (e *audioEngine) AcquireCapture(ctx context.Context, sampleRate, channels int) (tutor.CaptureSource, error) {
	src := &captureSource{
		frames:   make(chan []float32, 16),
		done:     make(chan struct{}),
		recorder: e.recorder,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(e.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			src.push(pInput)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	src.device = device
	return src, nil
}

// captureSource converts the device's S16 frames to floats and hands them to
// the session on a dedicated goroutine. The audio callback itself only copies
// and converts, so it never blocks on downstream work.
type captureSource struct {
	device   *malgo.Device
	frames   chan []float32
	done     chan struct{}
	recorder *recorder

	stopOnce sync.Once
}

func (c *captureSource) push(pInput []byte) {
	if len(pInput) < 2 {
		return
	}
	if c.recorder != nil {
		c.recorder.append(pInput)
	}
	samples := make([]float32, len(pInput)/2)
	for i := range samples {
		s := int16(pInput[2*i]) | int16(pInput[2*i+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	select {
	case c.frames <- samples:
	default:
		// Downstream is behind; dropping a frame beats stalling the device.
	}
}

func (c *captureSource) Start(onFrame func(samples []float32)) error {
	go func() {
		for {
			select {
			case samples := <-c.frames:
				onFrame(samples)
			case <-c.done:
				return
			}
		}
	}()
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start microphone: %w", err)
	}
	return nil
}

func (c *captureSource) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)
		c.device.Uninit()
	})
	return nil
}

// playbackSink buffers interleaved S16 PCM for the playback callback.
// Flush drops whatever has not reached the speaker yet.
type playbackSink struct {
	device *malgo.Device

	mu  sync.Mutex
	buf []byte
}

func (p *playbackSink) Write(pcm []byte) error {
	p.mu.Lock()
	p.buf = append(p.buf, pcm...)
	p.mu.Unlock()
	return nil
}

func (p *playbackSink) Flush() {
	p.mu.Lock()
	p.buf = nil
	p.mu.Unlock()
}

func (p *playbackSink) fill(pOutput []byte) {
	p.mu.Lock()
	n := copy(pOutput, p.buf)
	p.buf = p.buf[n:]
	p.mu.Unlock()
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// recorder accumulates raw capture PCM and saves it as a WAV file.
type recorder struct {
	path       string
	sampleRate int
	channels   int

	mu  sync.Mutex
	pcm []byte
}

func (r *recorder) append(pcm []byte) {
	r.mu.Lock()
	r.pcm = append(r.pcm, pcm...)
	r.mu.Unlock()
}

func (r *recorder) save() error {
	r.mu.Lock()
	pcm := r.pcm
	r.mu.Unlock()
	if len(pcm) == 0 {
		return nil
	}
	wav := audio.NewWavBuffer(pcm, r.sampleRate, r.channels)
	if err := os.WriteFile(r.path, wav, 0o644); err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}
