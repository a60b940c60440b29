package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChunkSource_FiveSecondsInTwoSecondChunks(t *testing.T) {
	utt := Utterance{ID: "u1", Samples: make([]int16, 5*16000), SampleRate: 16000}
	src, err := NewChunkSource(utt, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var durations []time.Duration
	var finals []bool
	for {
		c, ok := src.Next()
		if !ok {
			break
		}
		durations = append(durations, c.Duration(utt.SampleRate))
		finals = append(finals, c.Final)
	}

	want := []time.Duration{2 * time.Second, 2 * time.Second, time.Second}
	if len(durations) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(durations))
	}
	for i := range want {
		if durations[i] != want[i] {
			t.Fatalf("chunk %d: expected %s, got %s", i, want[i], durations[i])
		}
	}
	if finals[0] || finals[1] || !finals[2] {
		t.Fatalf("only the last chunk should be final, got %v", finals)
	}
	if _, ok := src.Next(); ok {
		t.Fatal("exhausted source must stay exhausted")
	}
}

func TestChunkSource_ShortUtteranceYieldsOneFinalChunk(t *testing.T) {
	utt := Utterance{Samples: make([]int16, 100), SampleRate: 16000}
	src, err := NewChunkSource(utt, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, ok := src.Next()
	if !ok || !c.Final || len(c.Samples) != 100 {
		t.Fatalf("expected one final chunk of 100 samples, got ok=%v chunk=%+v", ok, c)
	}
	if _, ok := src.Next(); ok {
		t.Fatal("expected exactly one chunk")
	}
}

func TestChunkSource_EmptyUtteranceYieldsNothing(t *testing.T) {
	src, err := NewChunkSource(Utterance{SampleRate: 8000}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.Next(); ok {
		t.Fatal("expected no chunks for an empty utterance")
	}
	if src.Total() != 0 {
		t.Fatalf("expected total 0, got %d", src.Total())
	}
}

func TestNewChunkSource_RejectsSubSampleDuration(t *testing.T) {
	if _, err := NewChunkSource(Utterance{SampleRate: 8000, Samples: make([]int16, 10)}, time.Microsecond); err == nil {
		t.Fatal("expected error for a duration shorter than one sample")
	}
	if _, err := NewChunkSource(Utterance{Samples: make([]int16, 10)}, time.Second); err == nil {
		t.Fatal("expected error for a zero sample rate")
	}
}

func TestProperty_ChunkSourceCoversUtteranceExactly(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sampleRate := rapid.SampledFrom([]int{8000, 16000, 22050, 48000}).Draw(rt, "sampleRate")
		n := rapid.IntRange(1, sampleRate*7).Draw(rt, "samples")
		chunkMs := rapid.IntRange(1, 3000).Draw(rt, "chunkMs")

		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(i % 32768)
		}
		utt := Utterance{Samples: samples, SampleRate: sampleRate}
		src, err := NewChunkSource(utt, time.Duration(chunkMs)*time.Millisecond)
		require.NoError(rt, err)

		perChunk := src.SamplesPerChunk()
		wantCount := (n + perChunk - 1) / perChunk
		require.Equal(rt, wantCount, src.Total())

		var rebuilt []int16
		count := 0
		expectedStart := 0
		for {
			c, ok := src.Next()
			if !ok {
				break
			}
			require.Equal(rt, count, c.Index, "indexes are monotonically increasing")
			require.Equal(rt, expectedStart, c.StartSample, "no gaps or overlaps")
			require.Equal(rt, count == wantCount-1, c.Final, "only the last chunk is final")
			rebuilt = append(rebuilt, c.Samples...)
			expectedStart = c.EndSample
			count++
		}
		require.Equal(rt, wantCount, count)
		require.Equal(rt, samples, rebuilt)
	})
}
