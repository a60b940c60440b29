package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/foxseedlab/streameval/internal/pipeline"
)

func TestEncodeWAV_HeaderAndDecode(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	b, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != wavHeaderSize+len(samples)*BytesPerSample {
		t.Fatalf("unexpected length %d", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[36:40]) != "data" {
		t.Fatalf("malformed header: %q", b[:44])
	}

	got, rate, err := DecodeWAV(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("expected 16000 Hz, got %d", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestDecodeWAV_StereoIsDownmixedAndUnknownChunksSkipped(t *testing.T) {
	var buf bytes.Buffer
	write := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	interleaved := []int16{100, 300, -200, -400}

	buf.WriteString("RIFF")
	write(uint32(0))
	buf.WriteString("WAVE")
	buf.WriteString("LIST")
	write(uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	buf.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1))
	write(uint16(2))
	write(uint32(8000))
	write(uint32(8000 * 4))
	write(uint16(4))
	write(uint16(16))
	buf.WriteString("data")
	write(uint32(len(interleaved) * BytesPerSample))
	write(interleaved)

	got, rate, err := DecodeWAV(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rate != 8000 {
		t.Fatalf("expected 8000 Hz, got %d", rate)
	}
	if len(got) != 2 || got[0] != 200 || got[1] != -300 {
		t.Fatalf("unexpected mono samples %v", got)
	}
}

func TestDecodeWAV_RejectsNonRIFF(t *testing.T) {
	if _, _, err := DecodeWAV(bytes.NewReader([]byte("OggS and some more bytes"))); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}

func TestEncodeChunk_Formats(t *testing.T) {
	c := Chunk{Samples: []int16{1, 2, 3}}

	pcm, err := EncodeChunk(c, 16000, pipeline.AudioFormatPCM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pcm) != 6 || pcm[0] != 1 || pcm[2] != 2 {
		t.Fatalf("unexpected pcm bytes %v", pcm)
	}

	wav, err := EncodeChunk(c, 16000, pipeline.AudioFormatWAV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wav) != wavHeaderSize+6 {
		t.Fatalf("unexpected wav length %d", len(wav))
	}

	if _, err := EncodeChunk(c, 16000, "flac"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
