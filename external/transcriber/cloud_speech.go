package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/streameval/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	defaultLocation       = "global"
	defaultSampleRate     = 16000
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = defaultLocation
	}
	return &CloudSpeechTranscriber{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
	}
}

// StartStreaming opens one recognition stream for one utterance. The stream
// is not reconnected: evaluation utterances are far below the five minute
// stream limit, and a dropped stream is reported as a failed utterance.
func (t *CloudSpeechTranscriber) StartStreaming(ctx context.Context, sessionID string, opts transcriber.StreamOptions, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	if opts.Language == "" {
		return nil, errors.New("recognition language is required")
	}
	slog.Debug("starting cloud speech streaming", "session_id", sessionID, "location", t.location, "language", opts.Language, "model", t.model)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	clientOpts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.location != defaultLocation {
		clientOpts = append(clientOpts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}
	if err := stream.Send(t.configRequest(opts)); err != nil {
		_ = stream.CloseSend()
		_ = client.Close()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	w := newStreamWriter(stream, client.Close)
	w.startReceiver(receiver)
	return w, nil
}

func (t *CloudSpeechTranscriber) configRequest(opts transcriber.StreamOptions) *speechpb.StreamingRecognizeRequest {
	rate := opts.SampleRateHertz
	if rate <= 0 {
		rate = defaultSampleRate
	}
	channels := opts.Channels
	if channels <= 0 {
		channels = 1
	}
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, t.location),
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         t.model,
					LanguageCodes: []string{opts.Language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(rate),
							AudioChannelCount: int32(channels),
						},
					},
					Features: &speechpb.RecognitionFeatures{},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	}
}

type streamWriter struct {
	mu         sync.Mutex
	sendClosed bool
	closed     bool
	stream     speechpb.Speech_StreamingRecognizeClient
	closeFn    func() error
}

func newStreamWriter(stream speechpb.Speech_StreamingRecognizeClient, closeFn func() error) *streamWriter {
	return &streamWriter{stream: stream, closeFn: closeFn}
}

func (w *streamWriter) Write(pcm []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.sendClosed {
		return io.ErrClosedPipe
	}
	return w.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	})
}

func (w *streamWriter) CloseSend() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.sendClosed {
		return nil
	}
	w.sendClosed = true
	return w.stream.CloseSend()
}

func (w *streamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if !w.sendClosed {
		w.sendClosed = true
		_ = w.stream.CloseSend()
	}
	if w.closeFn == nil {
		return nil
	}
	return w.closeFn()
}

func (w *streamWriter) startReceiver(receiver transcriber.ResultReceiver) {
	go func() {
		for {
			resp, err := w.stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					receiver.OnDone()
					return
				}
				if isCanceled(err) {
					slog.Debug("transcriber receive loop stopped", "reason", err.Error())
				}
				receiver.OnError(err)
				return
			}
			for i, result := range resp.GetResults() {
				if len(result.GetAlternatives()) == 0 {
					continue
				}
				receiver.OnResult(i, result.GetAlternatives()[0].GetTranscript(), result.GetIsFinal())
			}
		}
	}()
}

func isCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}
