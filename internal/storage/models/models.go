package models

import (
	"time"
)

// 注意：
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt
// - list_id 在线缆上是 uint16，这里用 int32 方便数据库映射

// NetvarList 映射 netvar_lists 表：已声明的网络变量列表
type NetvarList struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ListID     int32  `gorm:"column:list_id;not null;uniqueIndex"`
	Name       string `gorm:"column:name;type:text;not null"`
	ByteLength int32  `gorm:"column:byte_length;not null"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (NetvarList) TableName() string { return "netvar_lists" }

// NetvarValue 映射 netvar_values 表：每个变量的最新值
// （复合唯一键：list_id + name，收到新报文时 upsert 覆盖）
type NetvarValue struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ListID int32  `gorm:"column:list_id;not null;uniqueIndex:idx_netvar_values_list_name"`
	Name   string `gorm:"column:name;type:text;not null;uniqueIndex:idx_netvar_values_list_name"`
	Type   string `gorm:"column:type;type:text;not null"`
	// 值以 JSON 文本存储，保持与 API 输出一致
	Value      string    `gorm:"column:value;type:text;not null"`
	Counter    int32     `gorm:"column:counter;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (NetvarValue) TableName() string { return "netvar_values" }

// NetvarMessage 映射 netvar_messages 表：收发报文日志
type NetvarMessage struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ListID    int32     `gorm:"column:list_id;not null;index"`
	Counter   int32     `gorm:"column:counter;not null"`
	Direction string    `gorm:"column:direction;type:text;not null"` // rx / tx
	Fragments int32     `gorm:"column:fragments;not null"`
	Bytes     int32     `gorm:"column:bytes;not null"`
	At        time.Time `gorm:"column:at;not null;index"`
}

func (NetvarMessage) TableName() string { return "netvar_messages" }
