package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	SocketFramingRaw         = "raw"
	SocketFramingAudioSocket = "audiosocket"

	bytesPerSample = 2
)

type Config struct {
	Env                        string
	ListenHost                 string
	ListenPort                 int
	SocketFraming              string
	HeaderReadBytes            int
	StreamingLimitMs           int64
	SampleRateHertz            int
	TranscribeLanguage         string
	ExitKeywords               []string
	GoogleCloudCredentialsJSON string
	GoogleCloudCredentialsFile string
	GoogleCloudSpeechEndpoint  string
	MetricsAddr                string
	DatabaseURL                string
	ConnectionWebhookURL       string
	NATSURL                    string
	NATSSubject                string
}

func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("LISTEN_PORT must be between 1 and 65535, got %d", c.ListenPort)
	}
	switch c.SocketFraming {
	case SocketFramingRaw, SocketFramingAudioSocket:
	default:
		return fmt.Errorf("SOCKET_FRAMING must be %q or %q, got %q", SocketFramingRaw, SocketFramingAudioSocket, c.SocketFraming)
	}
	if c.SocketFraming == SocketFramingRaw && c.HeaderReadBytes < 0 {
		return fmt.Errorf("HEADER_READ_BYTES must not be negative, got %d", c.HeaderReadBytes)
	}
	if c.StreamingLimitMs <= 0 {
		return fmt.Errorf("STREAMING_LIMIT_MS must be positive, got %d", c.StreamingLimitMs)
	}
	if c.SampleRateHertz < 10 {
		return fmt.Errorf("SAMPLE_RATE_HERTZ must be at least 10, got %d", c.SampleRateHertz)
	}
	if strings.TrimSpace(c.TranscribeLanguage) == "" {
		return fmt.Errorf("TRANSCRIBE_LANGUAGE is required")
	}
	if c.GoogleCloudCredentialsJSON == "" && c.GoogleCloudCredentialsFile == "" {
		return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS is required")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_URL is set")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

func (c *Config) StreamingLimit() time.Duration {
	return time.Duration(c.StreamingLimitMs) * time.Millisecond
}

// ChunkBytes is the size of one 100ms chunk of 16-bit mono PCM.
func (c *Config) ChunkBytes() int {
	return c.SampleRateHertz / 10 * bytesPerSample
}
