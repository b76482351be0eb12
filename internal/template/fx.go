package template

import (
	"github.com/smallbiznis/tracklight/internal/template/repository"
	"github.com/smallbiznis/tracklight/internal/template/service"
	"go.uber.org/fx"
)

var Module = fx.Module("template.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
