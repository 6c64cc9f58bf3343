package portaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/allybot/ally-core/core/audio"
	"github.com/gordonklaus/portaudio"
)

// Sink renders PCM through a blocking PortAudio output stream.
//
// PortAudio writes block until the device accepts the frames, so samples are
// handed to a single writer goroutine; Play itself never blocks. A generation
// counter makes Halt effective mid-sample: the writer re-checks it between
// device-buffer sized slices and abandons the rest of a halted sample.
type Sink struct {
	bufferSize int
	stream     *portaudio.Stream
	out        []int16

	mu         sync.Mutex
	queue      []queuedSample
	signal     chan struct{}
	generation int
	closed     bool
}

type queuedSample struct {
	pcm        []byte
	onPlayed   func()
	generation int
}

func NewSink(bufferSize int) (*Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, audio.DefaultSampleRate, bufferSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	sink := &Sink{
		bufferSize: bufferSize,
		stream:     stream,
		out:        out,
		signal:     make(chan struct{}, 1),
	}
	go sink.writeLoop()

	return sink, nil
}

func (s *Sink) Play(pcm []byte, onPlayed func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("sink is closed")
	}
	s.queue = append(s.queue, queuedSample{pcm: pcm, onPlayed: onPlayed, generation: s.generation})
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return nil
}

func (s *Sink) Halt() {
	s.mu.Lock()
	s.generation++
	s.queue = nil
	s.mu.Unlock()
}

func (s *Sink) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Channels:   1,
		Format:     audio.EncodingLinear16,
	}
}

func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.queue = nil
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}

	_ = s.stream.Close()
	_ = portaudio.Terminate()
}

func (s *Sink) writeLoop() {
	for range s.signal {
		for {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			sample := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			if s.renderSample(sample) && sample.onPlayed != nil {
				sample.onPlayed()
			}
		}
	}
}

// renderSample writes one sample to the device in bufferSize slices. It
// reports false when the sample was halted partway through.
func (s *Sink) renderSample(sample queuedSample) bool {
	frameBytes := s.bufferSize * 2
	pcm := sample.pcm
	for offset := 0; offset < len(pcm); offset += frameBytes {
		s.mu.Lock()
		halted := s.closed || sample.generation != s.generation
		s.mu.Unlock()
		if halted {
			return false
		}

		end := min(offset+frameBytes, len(pcm))
		slice := pcm[offset:end]
		for i := range s.out {
			s.out[i] = 0
		}
		_ = binary.Read(bytes.NewReader(slice), binary.LittleEndian, s.out[:len(slice)/2])
		if err := s.stream.Write(); err != nil {
			logger.Warn("portaudio write failed", "error", err)
		}
	}
	return true
}
