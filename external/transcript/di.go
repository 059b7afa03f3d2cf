package transcript

import (
	"os"

	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/transcript"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcript.Sink, error) {
		cfg := do.MustInvoke[*config.Config](i)
		sinks := transcript.MultiSink{NewConsoleSink(os.Stdout)}
		if cfg.NATSURL != "" {
			conn, err := ConnectNATS(cfg.NATSURL)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, NewNATSSink(conn, cfg.NATSSubject))
		}
		return sinks, nil
	})
}
