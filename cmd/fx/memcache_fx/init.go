package memcache_fx

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"sajupia/internal/config"
	"sajupia/internal/infra"
	mem "sajupia/pkg/memcache"
)

var Module = fx.Provide(provideLeaseStore)

// provideLeaseStore shares leases through Redis when configured. The
// in-process store only guards a single replica.
func provideLeaseStore(lc fx.Lifecycle, cfg config.Config, log logrus.FieldLogger) (mem.LeaseStore, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, using in-process leases")
		return mem.NewMemoryLeases(), nil
	}

	client, err := infra.InitRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	log.Info("connected to redis")
	return mem.NewRedisLeases(client, "sajupia:lease:"), nil
}
