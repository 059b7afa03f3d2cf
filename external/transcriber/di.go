package transcriber

import (
	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudSpeechTranscriber(CloudSpeechConfig{
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			CredentialsFile: c.GoogleCloudCredentialsFile,
			Endpoint:        c.GoogleCloudSpeechEndpoint,
			Language:        c.TranscribeLanguage,
			SampleRateHertz: c.SampleRateHertz,
		}), nil
	})
}
