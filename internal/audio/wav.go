package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/foxseedlab/streameval/internal/pipeline"
)

const wavHeaderSize = 44

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV wraps mono PCM16 samples in a canonical 44-byte RIFF header.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	dataSize := uint32(len(samples) * BytesPerSample)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * BytesPerSample,
		BlockAlign:    BytesPerSample,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+int(dataSize)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write wav samples: %w", err)
	}
	return buf.Bytes(), nil
}

func EncodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

// EncodeChunk renders a chunk in the wire format named by the first stage's
// audioFormat.
func EncodeChunk(c Chunk, sampleRate int, format string) ([]byte, error) {
	switch format {
	case pipeline.AudioFormatPCM:
		return EncodePCM(c.Samples), nil
	case pipeline.AudioFormatWAV, "":
		return EncodeWAV(c.Samples, sampleRate)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

// DecodeWAV reads a 16-bit PCM WAV file. Multi-channel input is down-mixed to mono.
func DecodeWAV(r io.Reader) (samples []int16, sampleRate int, err error) {
	var riff struct {
		ID     [4]byte
		Size   uint32
		Format [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Format[:]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}

	var (
		channels      int
		bitsPerSample int
		gotFormat     bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, 0, errors.New("wav data chunk not found")
			}
			return nil, 0, fmt.Errorf("read wav chunk header: %w", err)
		}
		switch string(chunk.ID[:]) {
		case "fmt ":
			var f struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return nil, 0, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			if rest := int64(chunk.Size) - 16; rest > 0 {
				if _, err := io.CopyN(io.Discard, r, rest); err != nil {
					return nil, 0, fmt.Errorf("skip wav fmt extension: %w", err)
				}
			}
			if f.AudioFormat != 1 {
				return nil, 0, fmt.Errorf("unsupported wav audio format %d", f.AudioFormat)
			}
			channels = int(f.NumChannels)
			bitsPerSample = int(f.BitsPerSample)
			sampleRate = int(f.SampleRate)
			gotFormat = true
		case "data":
			if !gotFormat {
				return nil, 0, errors.New("wav data chunk precedes fmt chunk")
			}
			if bitsPerSample != 16 || channels < 1 {
				return nil, 0, fmt.Errorf("unsupported wav layout: %d channels, %d bits", channels, bitsPerSample)
			}
			raw := make([]int16, chunk.Size/BytesPerSample)
			if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
				return nil, 0, fmt.Errorf("read wav samples: %w", err)
			}
			return Downmix(raw, channels), sampleRate, nil
		default:
			skip := int64(chunk.Size) + int64(chunk.Size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, 0, fmt.Errorf("skip wav chunk %q: %w", string(chunk.ID[:]), err)
			}
		}
	}
}

// Downmix averages interleaved frames into a mono signal.
func Downmix(interleaved []int16, channels int) []int16 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(interleaved[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}
