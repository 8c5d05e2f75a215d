package nvl

import (
	"fmt"
	"sync"
)

// bufferEntry 单个列表在途报文的重组状态。
// 不变式：所有分片 counter 相同；subIndex 自 0 严格递增；
// totalBytes 为各分片载荷长度之和；handled 置位后条目失活，
// 等待下一个 subIndex==0 的分片将其替换。
type bufferEntry struct {
	counter    uint16
	fragments  []Packet
	totalBytes int
	handled    bool
}

func (e *bufferEntry) lastSubIndex() uint16 {
	return e.fragments[len(e.fragments)-1].Header.SubIndex
}

// CompleteFunc 重组完成通知。listID/counter 取自报文头，
// fragments/bytes 为该条报文的分片数与载荷总长，value 为转换结果。
// 在重组锁内调用，钩子里只做轻量转发。
type CompleteFunc func(listID, counter uint16, fragments, bytes int, value any)

// Assembler 接收侧分片重组器，按列表 ID 维护状态机。
// 丢包策略：发现序号空洞即丢弃整条报文，不做部分投递。
type Assembler struct {
	mu         sync.Mutex
	registry   *Registry
	entries    map[uint16]*bufferEntry
	onComplete CompleteFunc
}

func NewAssembler(registry *Registry) *Assembler {
	return &Assembler{
		registry: registry,
		entries:  make(map[uint16]*bufferEntry),
	}
}

// SetOnComplete 设置重组完成钩子，在监听回调之后触发
func (a *Assembler) SetOnComplete(fn CompleteFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onComplete = fn
}

// Ingest 按到达顺序喂入一个分片。
// 返回 completed=true 表示一条逻辑报文重组完成且监听已回调；
// 错误仅用于观测（丢包/未注册/长度不符/转换失败），均不中断接收循环。
func (a *Assembler) Ingest(p Packet) (completed bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	listID := p.Header.Index
	entry, ok := a.entries[listID]

	// 规则1：无条目或条目已失活，只接受 subIndex==0 的新起点
	if !ok || entry.handled {
		if p.Header.SubIndex != 0 {
			return false, nil // 无前序分片可挂靠，静默丢弃
		}
		return a.startEntry(listID, p)
	}

	// 规则3：counter 变化，PLC 已开始新报文，旧条目作废
	if p.Header.Counter != entry.counter {
		delete(a.entries, listID)
		if p.Header.SubIndex != 0 {
			return false, nil
		}
		return a.startEntry(listID, p)
	}

	// 规则2：同一 counter，序号必须严格连续
	if p.Header.SubIndex != entry.lastSubIndex()+1 {
		delete(a.entries, listID)
		return false, &LossError{
			ListID:   listID,
			Counter:  entry.counter,
			Expected: entry.lastSubIndex() + 1,
			Received: p.Header.SubIndex,
		}
	}

	entry.fragments = append(entry.fragments, p)
	entry.totalBytes += p.PayloadLength()
	return a.checkComplete(listID, entry)
}

func (a *Assembler) startEntry(listID uint16, p Packet) (bool, error) {
	entry := &bufferEntry{
		counter:    p.Header.Counter,
		fragments:  []Packet{p},
		totalBytes: p.PayloadLength(),
	}
	a.entries[listID] = entry
	return a.checkComplete(listID, entry)
}

// checkComplete 每次成功接纳分片后执行完整性判定。
// 完整性只对照第一个匹配监听的期望长度（行为与原实现一致，见 DESIGN.md）。
func (a *Assembler) checkComplete(listID uint16, entry *bufferEntry) (bool, error) {
	listeners := a.registry.Lookup(listID)
	if len(listeners) == 0 {
		delete(a.entries, listID)
		return false, fmt.Errorf("list %d: %w", listID, ErrUnregisteredList)
	}

	expected := listeners[0].ExpectedBytes()
	switch {
	case entry.totalBytes < expected:
		return false, nil // 继续等待后续分片
	case entry.totalBytes > expected:
		// 长度超限：条目原样保留，只能被下一个 subIndex==0 的新报文替换
		return false, fmt.Errorf("list %d got %d want %d: %w",
			listID, entry.totalBytes, expected, ErrSizeMismatch)
	}

	buf := make([]byte, 0, entry.totalBytes)
	for _, f := range entry.fragments {
		buf = append(buf, f.Payload...)
	}

	value, err := listeners[0].Def.ConvertFromBuffer(buf)
	entry.handled = true
	if err != nil {
		return false, fmt.Errorf("list %d: %w: %v", listID, ErrConvert, err)
	}

	for _, l := range listeners {
		l.Callback(value)
	}
	if a.onComplete != nil {
		a.onComplete(listID, entry.counter, len(entry.fragments), entry.totalBytes, value)
	}
	return true, nil
}

// Pending 当前在途（未失活）条目数
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if !e.handled {
			n++
		}
	}
	return n
}

// Has 某列表当前是否存在条目（含已失活），测试与诊断用
func (a *Assembler) Has(listID uint16) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.entries[listID]
	return ok
}

// Clear 丢弃全部在途状态
func (a *Assembler) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[uint16]*bufferEntry)
}
