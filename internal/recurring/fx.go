package recurring

import (
	"github.com/smallbiznis/tracklight/internal/recurring/repository"
	"github.com/smallbiznis/tracklight/internal/recurring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurring.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
