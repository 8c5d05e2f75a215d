package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository 提供高频写入路径的最小持久化能力（原生 SQL，绕过 ORM）
type Repository struct {
	Pool *pgxpool.Pool
}

// InsertLossEvent 记录一次丢包事件
func (r *Repository) InsertLossEvent(ctx context.Context, listID int32, expected, received int32) error {
	const q = `INSERT INTO netvar_loss_events (list_id, expected_counter, received_counter, at)
               VALUES ($1,$2,$3,NOW())`
	_, err := r.Pool.Exec(ctx, q, listID, expected, received)
	return err
}

// CountMessages 统计指定方向的报文总数（direction: rx/tx）
func (r *Repository) CountMessages(ctx context.Context, direction string) (int64, error) {
	const q = `SELECT COUNT(*) FROM netvar_messages WHERE direction = $1`
	var n int64
	err := r.Pool.QueryRow(ctx, q, direction).Scan(&n)
	return n, err
}

// CountLossEvents 统计某个变量列表的丢包事件数，listID<0 时统计全部
func (r *Repository) CountLossEvents(ctx context.Context, listID int32) (int64, error) {
	var n int64
	var err error
	if listID < 0 {
		err = r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM netvar_loss_events`).Scan(&n)
	} else {
		err = r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM netvar_loss_events WHERE list_id = $1`, listID).Scan(&n)
	}
	return n, err
}
