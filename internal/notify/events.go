package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventValuesUpdated EventType = "netvars.updated" // 收到完整变量列表报文
	EventPacketLoss    EventType = "netvars.loss"    // 检测到丢包并丢弃缓冲
)

// Event 推送给下游系统的标准事件
type Event struct {
	EventID   string         `json:"eventId"`
	EventType EventType      `json:"eventType"`
	ListID    uint16         `json:"listId"`
	Counter   uint16         `json:"counter"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewValuesEvent 构造变量更新事件
func NewValuesEvent(listID, counter uint16, values map[string]any) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		EventType: EventValuesUpdated,
		ListID:    listID,
		Counter:   counter,
		Timestamp: time.Now().Unix(),
		Data:      values,
	}
}

// NewLossEvent 构造丢包事件
func NewLossEvent(listID, expected, received uint16) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		EventType: EventPacketLoss,
		ListID:    listID,
		Counter:   received,
		Timestamp: time.Now().Unix(),
		Data: map[string]any{
			"expectedCounter": expected,
			"receivedCounter": received,
		},
	}
}
