package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jisotalo/codesys-client/internal/api"
	"github.com/jisotalo/codesys-client/internal/api/middleware"
	"github.com/jisotalo/codesys-client/internal/app"
	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/liststate"
	"github.com/jisotalo/codesys-client/internal/metrics"
	"github.com/jisotalo/codesys-client/internal/storage"
	"github.com/jisotalo/codesys-client/internal/storage/gormrepo"
	pgstorage "github.com/jisotalo/codesys-client/internal/storage/pg"
)

// Run 统一启动流程。
// 启动顺序保证依赖先就绪：声明与存储在前，UDP 收发最后打开。
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	serverID := app.GenerateServerID()
	log.Info("starting nvl gateway",
		zap.String("server_id", serverID),
		zap.String("env", cfg.App.Env))

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// ========== 阶段1: 基础组件 ==========
	reg, gwm := app.NewMetrics()
	metricsHandler := metrics.Handler(reg)
	ready := app.NewReady()
	tracker := liststate.New(0)

	defs, err := app.LoadDeclarations(cfg.NVL, log)
	if err != nil {
		log.Error("declarations load failed", zap.Error(err))
		return err
	}
	log.Info("basic components initialized", zap.Int("lists", len(defs)))

	// ========== 阶段2: 数据库（可选，启用后失败直接返回）==========
	var repo storage.CoreRepo
	var rawRepo *pgstorage.Repository
	if cfg.Database.Enabled {
		dbpool, err := app.ConnectDBAndMigrate(rootCtx, cfg.Database, "db/migrations", log)
		if err != nil {
			log.Error("database initialization failed", zap.Error(err))
			return err
		}
		defer dbpool.Close()

		gdb, err := app.OpenGorm(cfg.Database.DSN)
		if err != nil {
			log.Error("gorm open failed", zap.Error(err))
			return err
		}
		repo = gormrepo.New(gdb)
		rawRepo = &pgstorage.Repository{Pool: dbpool}

		if err := app.SyncListDeclarations(rootCtx, repo, defs); err != nil {
			log.Error("declaration sync failed", zap.Error(err))
			return err
		}
		ready.SetDBReady(true)
		log.Info("database ready", zap.String("dsn", maskDSN(cfg.Database.DSN)))

		defer func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
	} else {
		ready.SetDBReady(true) // 无数据库依赖时不阻塞就绪
		log.Info("database disabled")
	}

	// ========== 阶段3: Redis 缓存（可选）==========
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := app.NewValueCache(redisClient, cfg.Redis)

	// ========== 阶段4: Webhook 通知（可选）==========
	notifyQueue := app.NewNotifyQueue(cfg.Notify, log)
	if notifyQueue != nil {
		notifyQueue.StartWorkers(rootCtx, 2)
		defer notifyQueue.Stop()
	}

	// ========== 阶段5: 网关装配 ==========
	gw := app.NewGateway(cfg.UDP, defs, tracker, log)
	sink := app.NewSink(defs, repo, rawRepo, cache, notifyQueue, log)
	gw.SetSink(sink)
	gw.WireMetrics(gwm)
	sink.Start(rootCtx)
	defer sink.Stop()

	// ========== 阶段6: HTTP 服务（非阻塞）==========
	var dbpoolForHealth = rawRepoPool(rawRepo)
	healthAgg := app.NewHealthAggregator(dbpoolForHealth)
	app.AddRedisChecker(healthAgg, redisClient)

	httpSrv := app.NewHTTPServer(cfg.HTTP, cfg.Metrics.Path, metricsHandler, ready.Ready)
	authCfg := middleware.AuthConfig{
		APIKeys: cfg.API.Auth.APIKeys,
		Enabled: cfg.API.Auth.Enabled,
	}
	handler := api.NewHandler(defs, tracker, repo, cache, gw, log)
	api.RegisterRoutes(httpSrv.Engine(), handler, authCfg, log)
	app.RegisterHealthRoutes(httpSrv.Engine(), healthAgg)

	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段7: 最后打开 UDP 收发 ==========
	if err := gw.Start(); err != nil {
		log.Error("gateway start failed", zap.Error(err))
		return err
	}
	ready.SetUDPReady(true)
	app.AddUDPChecker(healthAgg, gw.Receiver())
	log.Info("gateway ready",
		zap.Int("listen_port", cfg.UDP.ListenPort),
		zap.String("target", cfg.UDP.TargetAddress))

	// ========== 阶段8: 等待关闭信号 ==========
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("received shutdown signal, gracefully shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = gw.Shutdown(ctx)
	log.Info("gateway stopped")

	_ = httpSrv.Shutdown(ctx)
	log.Info("http server stopped")

	log.Info("shutdown complete")
	return nil
}

// rawRepoPool 从原生仓储取连接池，仓储为 nil 时返回 nil
func rawRepoPool(r *pgstorage.Repository) *pgxpool.Pool {
	if r == nil {
		return nil
	}
	return r.Pool
}

// maskDSN 脱敏数据库连接字符串（隐藏密码）
func maskDSN(dsn string) string {
	if idx := strings.Index(dsn, "@"); idx > 0 {
		if pwdIdx := strings.LastIndex(dsn[:idx], ":"); pwdIdx > 0 {
			return dsn[:pwdIdx+1] + "****" + dsn[idx:]
		}
	}
	return dsn
}
