package miniaudio

import (
	"fmt"
	"sync"

	"github.com/allybot/ally-core/core/audio"
	"github.com/gen2brain/malgo"
)

// Sink renders PCM through a miniaudio playback device.
//
// Samples queue into one contiguous buffer the device callback drains in
// ~100ms periods. Completion callbacks are positional: each Play registers the
// end offset of its sample, and the callback fires once the drain position
// passes it.
type Sink struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	encodingInfo audio.EncodingInfo

	mu       sync.Mutex
	buffered []byte
	pending  []pendingSample
}

type pendingSample struct {
	remaining int
	onPlayed  func()
}

func NewSink(encodingInfo audio.EncodingInfo) (*Sink, error) {
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	sink := &Sink{
		audioContext: audioCtx,
		encodingInfo: encodingInfo,
	}

	channels := encodingInfo.Channels
	if channels == 0 {
		channels = 1
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encodingInfo.SampleRate) / 10 // ~100ms of audio
	config.Periods = 4

	bytesPerFrame := malgo.SampleSizeInBytes(config.Playback.Format) * channels
	if sink.device, err = malgo.InitDevice(
		audioCtx.Context,
		config,
		malgo.DeviceCallbacks{Data: sink.drain(bytesPerFrame)},
	); err != nil {
		_ = audioCtx.Uninit()
		audioCtx.Free()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := sink.device.Start(); err != nil {
		sink.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return sink, nil
}

func (s *Sink) Play(pcm []byte, onPlayed func()) error {
	if s.device == nil {
		return fmt.Errorf("playback device not initialized")
	} else if !s.device.IsStarted() {
		return fmt.Errorf("playback device not started")
	}

	s.mu.Lock()
	s.buffered = append(s.buffered, pcm...)
	s.pending = append(s.pending, pendingSample{remaining: len(s.buffered), onPlayed: onPlayed})
	s.mu.Unlock()
	return nil
}

func (s *Sink) Halt() {
	s.mu.Lock()
	s.buffered = nil
	s.pending = nil
	s.mu.Unlock()
}

func (s *Sink) EncodingInfo() audio.EncodingInfo {
	return s.encodingInfo
}

func (s *Sink) Close() {
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.audioContext != nil {
		_ = s.audioContext.Uninit()
		s.audioContext.Free()
		s.audioContext = nil
	}
}

// drain builds the device data callback that feeds the hardware buffer and
// fires positional completion callbacks as their samples finish.
func (s *Sink) drain(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		s.mu.Lock()
		consumed := min(need, len(s.buffered))
		copy(pOutput, s.buffered[:consumed])
		s.buffered = s.buffered[consumed:]

		var played []func()
		completed := 0
		for i := range s.pending {
			s.pending[i].remaining -= consumed
			if s.pending[i].remaining <= 0 && completed == i {
				completed++
				if s.pending[i].onPlayed != nil {
					played = append(played, s.pending[i].onPlayed)
				}
			}
		}
		s.pending = s.pending[completed:]
		s.mu.Unlock()

		if len(played) > 0 {
			go func() {
				for _, onPlayed := range played {
					onPlayed()
				}
			}()
		}
	}
}
