package audio

import (
	"fmt"
	"time"
)

const DefaultChunkDuration = 2 * time.Second

type Chunk struct {
	Index       int
	StartSample int
	EndSample   int
	Samples     []int16
	Final       bool
}

func (c Chunk) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(c.Samples)) * int64(time.Second) / int64(sampleRate))
}

// ChunkSource slices an utterance into fixed-duration chunks in playback
// order. It is not safe for concurrent use and cannot be restarted.
type ChunkSource struct {
	utt             Utterance
	samplesPerChunk int
	offset          int
	index           int
}

func NewChunkSource(utt Utterance, chunkDuration time.Duration) (*ChunkSource, error) {
	if utt.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", utt.SampleRate)
	}
	if chunkDuration <= 0 {
		chunkDuration = DefaultChunkDuration
	}
	perChunk := int(int64(utt.SampleRate) * int64(chunkDuration) / int64(time.Second))
	if perChunk < 1 {
		return nil, fmt.Errorf("chunk duration %s is shorter than one sample at %d Hz", chunkDuration, utt.SampleRate)
	}
	return &ChunkSource{utt: utt, samplesPerChunk: perChunk}, nil
}

// Next returns the next chunk, or false once the utterance is exhausted.
func (s *ChunkSource) Next() (Chunk, bool) {
	total := len(s.utt.Samples)
	if s.offset >= total {
		return Chunk{}, false
	}
	end := s.offset + s.samplesPerChunk
	if end > total {
		end = total
	}
	c := Chunk{
		Index:       s.index,
		StartSample: s.offset,
		EndSample:   end,
		Samples:     s.utt.Samples[s.offset:end:end],
		Final:       end == total,
	}
	s.offset = end
	s.index++
	return c, true
}

// Total is the number of chunks the source produces over its lifetime.
func (s *ChunkSource) Total() int {
	total := len(s.utt.Samples)
	return (total + s.samplesPerChunk - 1) / s.samplesPerChunk
}

func (s *ChunkSource) SamplesPerChunk() int {
	return s.samplesPerChunk
}
