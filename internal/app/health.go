package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jisotalo/codesys-client/internal/health"
	"github.com/jisotalo/codesys-client/internal/udpserver"
)

// NewReady 创建就绪状态聚合
func NewReady() *health.Readiness {
	return health.New()
}

// NewHealthAggregator 创建健康检查聚合器。数据库未启用时为空聚合器
func NewHealthAggregator(dbpool *pgxpool.Pool) *health.Aggregator {
	agg := health.NewAggregator()
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddUDPChecker 添加接收会话检查器到聚合器
func AddUDPChecker(aggregator *health.Aggregator, receiver *udpserver.Receiver) {
	aggregator.AddChecker(health.NewUDPChecker(receiver))
}
