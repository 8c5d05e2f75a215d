package nvl

import "sync"

// Callback 报文重组完成后的值回调
type Callback func(value any)

// Listener 一条监听注册：列表 ID + 结构定义 + 回调
type Listener struct {
	Handle   uint64
	ListID   uint16
	Def      Definition
	Callback Callback
}

// ExpectedBytes 该监听期望的逻辑报文字节数
func (l *Listener) ExpectedBytes() int { return l.Def.ByteLength() }

// Registry 监听注册表。
// 同一列表 ID 允许注册多个监听，互相独立不去重；
// Lookup 按注册顺序返回，完整性判定以第一个匹配为准。
type Registry struct {
	mu         sync.RWMutex
	nextHandle uint64
	listeners  []*Listener
}

func NewRegistry() *Registry { return &Registry{} }

// Register 注册监听，返回句柄
func (r *Registry) Register(listID uint16, def Definition, cb Callback) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHandle++
	r.listeners = append(r.listeners, &Listener{
		Handle:   r.nextHandle,
		ListID:   listID,
		Def:      def,
		Callback: cb,
	})
	return r.nextHandle
}

// Unregister 按句柄移除监听
func (r *Registry) Unregister(handle uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.Handle == handle {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Clear 清空全部监听
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = nil
}

// Lookup 返回某列表的全部监听（注册顺序）
func (r *Registry) Lookup(listID uint16) []*Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Listener
	for _, l := range r.listeners {
		if l.ListID == listID {
			out = append(out, l)
		}
	}
	return out
}

// Len 当前监听总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
