package transcriber

import "context"

type StreamOptions struct {
	Language        string
	SampleRateHertz int
	Channels        int
}

type StreamWriter interface {
	Write(pcm []byte) error
	// CloseSend signals end of audio; results keep arriving until OnDone.
	CloseSend() error
	Close() error
}

type ResultReceiver interface {
	OnResult(segmentIndex int, text string, isFinal bool)
	OnError(err error)
	OnDone()
}

type Transcriber interface {
	StartStreaming(ctx context.Context, sessionID string, opts StreamOptions, receiver ResultReceiver) (StreamWriter, error)
}
