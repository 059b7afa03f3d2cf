package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/speechrelay/internal/config"
)

type envConfig struct {
	Env                        string   `env:"ENV" envDefault:"production"`
	ListenHost                 string   `env:"LISTEN_HOST"`
	ListenPort                 int      `env:"LISTEN_PORT" envDefault:"12345"`
	SocketFraming              string   `env:"SOCKET_FRAMING" envDefault:"raw"`
	HeaderReadBytes            int      `env:"HEADER_READ_BYTES" envDefault:"1024"`
	StreamingLimitMs           int64    `env:"STREAMING_LIMIT_MS" envDefault:"240000"`
	SampleRateHertz            int      `env:"SAMPLE_RATE_HERTZ" envDefault:"8000"`
	TranscribeLanguage         string   `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-IN"`
	ExitKeywords               []string `env:"EXIT_KEYWORDS" envDefault:"exit,quit" envSeparator:","`
	GoogleCloudCredentialsJSON string   `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudCredentialsFile string   `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleCloudSpeechEndpoint  string   `env:"GOOGLE_CLOUD_SPEECH_ENDPOINT"`
	MetricsAddr                string   `env:"METRICS_ADDR"`
	DatabaseURL                string   `env:"DATABASE_URL"`
	ConnectionWebhookURL       string   `env:"CONNECTION_WEBHOOK_URL"`
	NATSURL                    string   `env:"NATS_URL"`
	NATSSubject                string   `env:"NATS_SUBJECT" envDefault:"speechrelay.transcripts"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenHost:                 raw.ListenHost,
		ListenPort:                 raw.ListenPort,
		SocketFraming:              raw.SocketFraming,
		HeaderReadBytes:            raw.HeaderReadBytes,
		StreamingLimitMs:           raw.StreamingLimitMs,
		SampleRateHertz:            raw.SampleRateHertz,
		TranscribeLanguage:         raw.TranscribeLanguage,
		ExitKeywords:               raw.ExitKeywords,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudCredentialsFile: raw.GoogleCloudCredentialsFile,
		GoogleCloudSpeechEndpoint:  raw.GoogleCloudSpeechEndpoint,
		MetricsAddr:                raw.MetricsAddr,
		DatabaseURL:                raw.DatabaseURL,
		ConnectionWebhookURL:       raw.ConnectionWebhookURL,
		NATSURL:                    raw.NATSURL,
		NATSSubject:                raw.NATSSubject,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
