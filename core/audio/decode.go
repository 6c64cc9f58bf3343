package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/wav"
)

// DecodeBase64WAV decodes one transport-encoded synthesis payload into raw
// 16-bit little-endian PCM plus the encoding it was synthesized with.
//
// The speech service ships each chunk as a complete WAV file, base64 encoded
// for the JSON envelope. Malformed payloads return an error so callers can
// skip the chunk and keep playing.
func DecodeBase64WAV(payload string) ([]byte, EncodingInfo, error) {
	container, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, EncodingInfo{}, fmt.Errorf("failed to decode chunk payload: %w", err)
	}

	return DecodeWAV(container)
}

// DecodeWAV extracts PCM samples from a WAV container.
func DecodeWAV(container []byte) ([]byte, EncodingInfo, error) {
	decoder := wav.NewDecoder(bytes.NewReader(container))
	if !decoder.IsValidFile() {
		return nil, EncodingInfo{}, fmt.Errorf("chunk payload is not a valid wav container")
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, EncodingInfo{}, fmt.Errorf("failed to read pcm samples: %w", err)
	}

	encodingInfo := EncodingInfo{
		SampleRate: buffer.Format.SampleRate,
		Channels:   buffer.Format.NumChannels,
		Format:     EncodingLinear16,
	}

	pcm := make([]byte, 0, len(buffer.Data)*2)
	shift := 0
	if decoder.BitDepth > 16 {
		shift = int(decoder.BitDepth) - 16
	}
	for _, sample := range buffer.Data {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(sample>>shift)))
	}

	return pcm, encodingInfo, nil
}
