package gormrepo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jisotalo/codesys-client/internal/storage"
	"github.com/jisotalo/codesys-client/internal/storage/models"
)

// Repository 基于 GORM 的 CoreRepo 实现。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// New 返回一个使用给定 *gorm.DB 的 CoreRepo 实例。
func New(db *gorm.DB) storage.CoreRepo {
	return &Repository{db: db}
}

// WithTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) WithTx(ctx context.Context, fn func(storage.CoreRepo) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// EnsureList 按 list_id upsert 列表声明（改名/改长度时覆盖）。
func (r *Repository) EnsureList(ctx context.Context, list *models.NetvarList) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "list_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"name":        list.Name,
				"byte_length": list.ByteLength,
				"updated_at":  gorm.Expr("NOW()"),
			}),
		}).
		Create(list).Error
}

// ListLists 返回全部已声明列表（按 list_id 升序）。
func (r *Repository) ListLists(ctx context.Context) ([]models.NetvarList, error) {
	var lists []models.NetvarList
	err := r.db.WithContext(ctx).Order("list_id ASC").Find(&lists).Error
	return lists, err
}

// UpsertValues 批量写入最新值，list_id+name 冲突时覆盖。
func (r *Repository) UpsertValues(ctx context.Context, values []models.NetvarValue) error {
	if len(values) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "list_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "value", "counter", "received_at", "updated_at",
			}),
		}).
		Create(&values).Error
}

// LatestValues 读取某列表全部变量的最新值（按变量名升序）。
func (r *Repository) LatestValues(ctx context.Context, listID int32) ([]models.NetvarValue, error) {
	var values []models.NetvarValue
	err := r.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("name ASC").
		Find(&values).Error
	return values, err
}

// AppendMessage 追加一条收/发报文记录。
func (r *Repository) AppendMessage(ctx context.Context, msg *models.NetvarMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// RecentMessages 最近 limit 条报文记录。
func (r *Repository) RecentMessages(ctx context.Context, listID int32, limit int) ([]models.NetvarMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []models.NetvarMessage
	err := r.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
