package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/migrate"
	pgstorage "github.com/jisotalo/codesys-client/internal/storage/pg"
)

// ConnectDBAndMigrate 建立 pgx 连接池并执行向上迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, migrateDir string, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, log)
	if err != nil {
		if log != nil {
			log.Error("db connect error", zap.Error(err))
		}
		return nil, err
	}
	if err = (migrate.Runner{Dir: migrateDir}).Up(ctx, dbpool); err != nil {
		if log != nil {
			log.Error("db migrate error", zap.Error(err))
		}
		return dbpool, err
	}
	if log != nil {
		log.Info("db migrations applied")
	}
	return dbpool, nil
}

// OpenGorm 在同一 DSN 上打开 GORM 连接（业务仓储用）
func OpenGorm(dsn string) (*gorm.DB, error) {
	return gorm.Open(gormpg.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}
