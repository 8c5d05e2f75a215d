package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	// Redis Key格式
	listValuesKey = "nvl:list:%d:values" // 最新变量值（Hash，变量名 -> JSON）
	listMetaKey   = "nvl:list:%d:meta"   // 列表元信息（Hash：counter / received_at）
)

// ValueCache 变量列表最新值缓存
type ValueCache struct {
	client *Client
	ttl    time.Duration
}

// NewValueCache 创建最新值缓存。ttl 为 0 表示不过期
func NewValueCache(client *Client, ttl time.Duration) *ValueCache {
	return &ValueCache{client: client, ttl: ttl}
}

// StoreValues 写入某个列表的最新变量值快照
func (c *ValueCache) StoreValues(ctx context.Context, listID uint16, counter uint16, values map[string]any) error {
	valKey := fmt.Sprintf(listValuesKey, listID)
	metaKey := fmt.Sprintf(listMetaKey, listID)

	fields := make(map[string]interface{}, len(values))
	for name, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal value %q: %w", name, err)
		}
		fields[name] = data
	}

	pipe := c.client.Pipeline()
	if len(fields) > 0 {
		pipe.HSet(ctx, valKey, fields)
	}
	pipe.HSet(ctx, metaKey, map[string]interface{}{
		"counter":     int(counter),
		"received_at": time.Now().UnixMilli(),
	})
	if c.ttl > 0 {
		pipe.Expire(ctx, valKey, c.ttl)
		pipe.Expire(ctx, metaKey, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetValues 读取某个列表缓存的全部最新值
func (c *ValueCache) GetValues(ctx context.Context, listID uint16) (map[string]any, error) {
	raw, err := c.client.HGetAll(ctx, fmt.Sprintf(listValuesKey, listID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(raw))
	for name, data := range raw {
		var v any
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshal value %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// GetMeta 读取列表元信息（最后计数器与接收时间），不存在时返回 ok=false
func (c *ValueCache) GetMeta(ctx context.Context, listID uint16) (counter uint16, receivedAt time.Time, ok bool, err error) {
	raw, err := c.client.HGetAll(ctx, fmt.Sprintf(listMetaKey, listID)).Result()
	if err != nil {
		return 0, time.Time{}, false, err
	}
	if len(raw) == 0 {
		return 0, time.Time{}, false, nil
	}
	if s, exists := raw["counter"]; exists {
		n, perr := strconv.Atoi(s)
		if perr != nil {
			return 0, time.Time{}, false, fmt.Errorf("parse counter: %w", perr)
		}
		counter = uint16(n)
	}
	if s, exists := raw["received_at"]; exists {
		ms, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			return 0, time.Time{}, false, fmt.Errorf("parse received_at: %w", perr)
		}
		receivedAt = time.UnixMilli(ms)
	}
	return counter, receivedAt, true, nil
}

// Invalidate 删除某个列表的缓存
func (c *ValueCache) Invalidate(ctx context.Context, listID uint16) error {
	return c.client.Del(ctx,
		fmt.Sprintf(listValuesKey, listID),
		fmt.Sprintf(listMetaKey, listID),
	).Err()
}
