package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type CloudSpeechConfig struct {
	CredentialsJSON string
	CredentialsFile string
	Endpoint        string
	Language        string
	SampleRateHertz int
}

// CloudSpeechTranscriber opens Speech-to-Text v1 streaming sessions. The gRPC
// client is created lazily and shared by every stream.
type CloudSpeechTranscriber struct {
	cfg CloudSpeechConfig

	mu     sync.Mutex
	client *speech.Client
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) *CloudSpeechTranscriber {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	return &CloudSpeechTranscriber{cfg: cfg}
}

func (t *CloudSpeechTranscriber) StartStreaming(ctx context.Context, connectionID string) (transcriber.Stream, error) {
	client, err := t.speechClient()
	if err != nil {
		return nil, err
	}
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: t.streamingConfig(),
		},
	}); err != nil {
		_ = stream.CloseSend()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}
	slog.Debug("cloud speech stream initialized", "connection_id", connectionID, "language", t.cfg.Language, "sample_rate_hertz", t.cfg.SampleRateHertz)
	return &cloudStream{stream: stream}, nil
}

func (t *CloudSpeechTranscriber) streamingConfig() *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(t.cfg.SampleRateHertz),
			LanguageCode:    t.cfg.Language,
			MaxAlternatives: 1,
		},
		InterimResults: true,
	}
}

func (t *CloudSpeechTranscriber) speechClient() (*speech.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}

	credsJSON := []byte(t.cfg.CredentialsJSON)
	if len(credsJSON) == 0 && t.cfg.CredentialsFile != "" {
		b, err := os.ReadFile(t.cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credsJSON = b
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: credsJSON,
		Scopes:          []string{cloudPlatformScope},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(t.cfg.Endpoint))
	}
	// The client outlives any single connection, so it is not bound to a request context.
	client, err := speech.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	t.client = client
	return client, nil
}

type cloudStream struct {
	stream speechpb.Speech_StreamingRecognizeClient

	mu         sync.Mutex
	sendClosed bool
}

func (s *cloudStream) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendClosed {
		return io.ErrClosedPipe
	}
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
}

func (s *cloudStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendClosed {
		return nil
	}
	s.sendClosed = true
	return s.stream.CloseSend()
}

func (s *cloudStream) Recv() (*transcriber.Response, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if isStreamLimitError(err) {
			return nil, fmt.Errorf("%w: %v", transcriber.ErrStreamLimit, err)
		}
		return nil, err
	}
	if e := resp.GetError(); e != nil && e.GetCode() != 0 {
		return nil, fmt.Errorf("recognition error %d: %s", e.GetCode(), e.GetMessage())
	}
	return toResponse(resp), nil
}

// Close releases the send side. The stream context owned by the caller tears
// down the receive side.
func (s *cloudStream) Close() error {
	return s.CloseSend()
}

func toResponse(resp *speechpb.StreamingRecognizeResponse) *transcriber.Response {
	out := &transcriber.Response{Results: make([]transcriber.Result, 0, len(resp.GetResults()))}
	for _, r := range resp.GetResults() {
		result := transcriber.Result{
			IsFinal:   r.GetIsFinal(),
			EndOffset: r.GetResultEndTime().AsDuration(),
		}
		for _, alt := range r.GetAlternatives() {
			result.Alternatives = append(result.Alternatives, transcriber.Alternative{Transcript: alt.GetTranscript()})
		}
		out.Results = append(out.Results, result)
	}
	return out
}

func isStreamLimitError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	if st.Code() != codes.OutOfRange && st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "maximum allowed stream duration") ||
		strings.Contains(msg, "max duration")
}
