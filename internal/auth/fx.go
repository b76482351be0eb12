package auth

import (
	"github.com/smallbiznis/tracklight/internal/auth/repository"
	"github.com/smallbiznis/tracklight/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(repository.NewSessionRepository),
	fx.Provide(service.NewService),
)
