package webhook

import (
	"log/slog"

	"github.com/foxseedlab/speechrelay/internal/config"
	"github.com/foxseedlab/speechrelay/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (webhook.Sender, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.ConnectionWebhookURL == "" {
			slog.Info("connection summary webhook disabled: CONNECTION_WEBHOOK_URL is empty")
		}
		return NewHTTPSender(cfg.ConnectionWebhookURL), nil
	})
}
