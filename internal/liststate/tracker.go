package liststate

import (
	"sync"
	"time"
)

// State 单个变量列表的运行时统计
type State struct {
	ListID       uint16     `json:"listId"`
	LastCounter  uint16     `json:"lastCounter"`
	LastReceived *time.Time `json:"lastReceived,omitempty"`
	LastSent     *time.Time `json:"lastSent,omitempty"`
	Messages     uint64     `json:"messages"`     // 重组完成的报文数
	SentMessages uint64     `json:"sentMessages"` // 发送完成的报文数
	LossEvents   uint64     `json:"lossEvents"`   // 丢包丢弃次数
}

// Tracker 按列表 ID 记录收发活动，供 API 与诊断查询。
// PLC 停止广播一段时间后列表视为失联。
type Tracker struct {
	mu      sync.RWMutex
	states  map[uint16]*State
	timeout time.Duration
}

func New(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tracker{states: make(map[uint16]*State), timeout: timeout}
}

func (t *Tracker) state(listID uint16) *State {
	s, ok := t.states[listID]
	if !ok {
		s = &State{ListID: listID}
		t.states[listID] = s
	}
	return s
}

// OnMessage 记录一条重组完成的报文
func (t *Tracker) OnMessage(listID uint16, counter uint16, at time.Time) {
	t.mu.Lock()
	s := t.state(listID)
	s.LastCounter = counter
	s.LastReceived = &at
	s.Messages++
	t.mu.Unlock()
}

// OnLoss 记录一次丢包丢弃
func (t *Tracker) OnLoss(listID uint16) {
	t.mu.Lock()
	t.state(listID).LossEvents++
	t.mu.Unlock()
}

// OnSent 记录一条发送完成的报文
func (t *Tracker) OnSent(listID uint16, at time.Time) {
	t.mu.Lock()
	s := t.state(listID)
	s.LastSent = &at
	s.SentMessages++
	t.mu.Unlock()
}

// IsAlive 该列表最近是否有数据到达
func (t *Tracker) IsAlive(listID uint16, now time.Time) bool {
	t.mu.RLock()
	s, ok := t.states[listID]
	t.mu.RUnlock()
	if !ok || s.LastReceived == nil {
		return false
	}
	return now.Sub(*s.LastReceived) <= t.timeout
}

// Get 返回单个列表的统计快照
func (t *Tracker) Get(listID uint16) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[listID]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// Snapshot 返回全部列表的统计快照
func (t *Tracker) Snapshot() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]State, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, *s)
	}
	return out
}
