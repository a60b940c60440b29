//go:build opus

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/hraban/opus"
)

const (
	opusSampleRate = 48000
	frameSizeMs    = 120
	samplesPerRead = opusSampleRate * frameSizeMs / 1000
)

// decodeOggOpus decodes a mono Ogg Opus file. libopusfile always decodes at
// 48 kHz; the loader resamples afterwards.
func decodeOggOpus(r io.Reader) ([]int16, int, error) {
	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open opus stream: %w", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	var samples []int16
	pcm := make([]int16, samplesPerRead)
	for {
		n, err := stream.Read(pcm)
		if n > 0 {
			samples = append(samples, pcm[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read opus stream: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return samples, opusSampleRate, nil
}
