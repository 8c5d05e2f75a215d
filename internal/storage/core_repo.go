package storage

import (
	"context"

	"github.com/jisotalo/codesys-client/internal/storage/models"
)

// CoreRepo 网关核心的存储抽象。
// 约束：
// - 上层不直接写 SQL，统一通过本接口访问
// - 实现提供事务封装 WithTx，保证核心路径原子性
// - 接口保持 DB-agnostic（面向模型与基础类型）
type CoreRepo interface {
	// ---------- 事务 ----------
	// WithTx 在单个事务中执行 fn；实现需正确复用当前事务。
	WithTx(ctx context.Context, fn func(repo CoreRepo) error) error

	// ---------- 变量列表 ----------
	// EnsureList 按 list_id upsert 列表声明
	EnsureList(ctx context.Context, list *models.NetvarList) error
	// ListLists 返回全部已声明列表
	ListLists(ctx context.Context) ([]models.NetvarList, error)

	// ---------- 变量值 ----------
	// UpsertValues 批量写入最新值（list_id+name 冲突覆盖）
	UpsertValues(ctx context.Context, values []models.NetvarValue) error
	// LatestValues 读取某列表全部变量的最新值
	LatestValues(ctx context.Context, listID int32) ([]models.NetvarValue, error)

	// ---------- 报文日志 ----------
	// AppendMessage 追加一条收/发报文记录
	AppendMessage(ctx context.Context, msg *models.NetvarMessage) error
	// RecentMessages 最近 limit 条报文记录（按时间倒序）
	RecentMessages(ctx context.Context, listID int32, limit int) ([]models.NetvarMessage, error)
}
