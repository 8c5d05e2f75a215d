package health

import "sync/atomic"

// Readiness 就绪状态聚合（DB、UDP 接收会话）
type Readiness struct {
	dbReady  atomic.Bool
	udpReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetDBReady(v bool)  { r.dbReady.Store(v) }
func (r *Readiness) SetUDPReady(v bool) { r.udpReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.dbReady.Load() && r.udpReady.Load()
}
