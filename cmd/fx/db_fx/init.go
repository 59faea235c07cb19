package db_fx

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"sajupia/internal/config"
	"sajupia/internal/infra"
)

var Module = fx.Provide(
	provideDB)

func provideDB(lc fx.Lifecycle, cfg config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := infra.InitPostgresql(cfg.PostgresURL, log)
	if err != nil {
		return nil, err
	}
	if err := infra.Migrate(db); err != nil {
		infra.ClosePostgresql(db, log)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			infra.ClosePostgresql(db, log)
			return nil
		},
	})
	return db, nil
}
