package email

import (
	"github.com/smallbiznis/tracklight/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Provider {
		if cfg.Email.Enabled {
			return NewSMTPProvider(cfg.Email)
		}
		return NewNoopProvider(log)
	}),
)
