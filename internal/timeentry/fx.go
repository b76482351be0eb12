package timeentry

import (
	"github.com/smallbiznis/tracklight/internal/timeentry/repository"
	"github.com/smallbiznis/tracklight/internal/timeentry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("timeentry.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
