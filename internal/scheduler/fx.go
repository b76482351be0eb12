package scheduler

import (
	"context"

	"github.com/smallbiznis/tracklight/internal/clock"
	recurringdomain "github.com/smallbiznis/tracklight/internal/recurring/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(func(svc recurringdomain.Service, clk clock.Clock, log *zap.Logger) *Scheduler {
		return New(svc, clk, log)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return s.Stop(ctx)
			},
		})
	}),
)
