package session

import (
	"github.com/foxseedlab/speechrelay/internal/audio"
	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/foxseedlab/speechrelay/internal/repository"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/foxseedlab/speechrelay/internal/transcript"
	"github.com/foxseedlab/speechrelay/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		sink := do.MustInvoke[transcript.Sink](i)
		wh := do.MustInvoke[webhook.Sender](i)
		rec := do.MustInvoke[metrics.Recorder](i)
		newSource := do.MustInvoke[audio.SourceFactory](i)
		return NewManager(cfg, repo, stt, sink, wh, rec, newSource), nil
	})
}
