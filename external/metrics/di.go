package metrics

import (
	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*PrometheusRecorder, error) {
		return NewPrometheusRecorder(), nil
	})
	do.Provide(injector, func(i do.Injector) (metrics.Recorder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.MetricsAddr == "" {
			return metrics.Nop{}, nil
		}
		return do.MustInvoke[*PrometheusRecorder](i), nil
	})
}
