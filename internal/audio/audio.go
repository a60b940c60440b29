package audio

import "time"

const BytesPerSample = 2

// Utterance is mono 16-bit PCM owned by the caller. The streaming core only
// slices it and never modifies the samples.
type Utterance struct {
	ID         string
	Path       string
	Samples    []int16
	SampleRate int
}

func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(u.Samples)) * int64(time.Second) / int64(u.SampleRate))
}

type Loader interface {
	Load(path string) (Utterance, error)
}
