package audio

import (
	"io"

	"github.com/foxseedlab/speechrelay/internal/audio"
	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.SourceFactory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewSourceFactory(cfg), nil
	})
}

func NewSourceFactory(cfg *config.Config) audio.SourceFactory {
	if cfg.SocketFraming == config.SocketFramingAudioSocket {
		return func(conn io.ReadWriter) audio.Source {
			return NewAudioSocketSource(conn)
		}
	}
	headerBytes := cfg.HeaderReadBytes
	return func(conn io.ReadWriter) audio.Source {
		return NewRawSource(conn, headerBytes)
	}
}
