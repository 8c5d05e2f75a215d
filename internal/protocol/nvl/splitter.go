package nvl

import "sync"

// MaxPayload 单包最大载荷（线缆常量，256 字节）。
// 单个字段超过该值时不再细分，所在包允许超长。
const MaxPayload = 256

// Splitter 发送侧分包器。
// 每次 Split 调用对应一条逻辑报文，counter 分配一次并模 65536 递增。
type Splitter struct {
	mu      sync.Mutex
	counter uint16
}

func NewSplitter() *Splitter { return &Splitter{} }

// SetCounter 设置下一条逻辑报文的 counter（测试与恢复用）
func (s *Splitter) SetCounter(c uint16) {
	s.mu.Lock()
	s.counter = c
	s.mu.Unlock()
}

// Counter 当前 counter 值
func (s *Splitter) Counter() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Split 将一条逻辑报文按字段边界切分为若干包。
// data 为整条原始字节，elems 为按线缆顺序的叶子字段描述；
// elems 为空时整条数据视为单个字段。
// 所有包共享同一 counter，subIndex 自 0 递增。
func (s *Splitter) Split(listID uint16, data []byte, elems []Element) ([]Packet, error) {
	if len(elems) == 0 {
		elems = []Element{{Start: 0, Length: len(data)}}
	}

	s.mu.Lock()
	counter := s.counter
	s.counter++ // uint16 自然回绕 65535→0
	s.mu.Unlock()

	var packets []Packet
	cur := s.openPacket(listID, 0, counter)

	for _, e := range elems {
		if e.Start < 0 || e.Length < 0 || e.Start+e.Length > len(data) {
			return nil, ErrElementRange
		}
		// 当前包已有内容且装不下，封包换下一片
		if len(cur.Payload) > 0 && len(cur.Payload)+e.Length > MaxPayload {
			packets = append(packets, s.closePacket(cur))
			cur = s.openPacket(listID, cur.Header.SubIndex+1, counter)
		}
		cur.Payload = append(cur.Payload, data[e.Start:e.Start+e.Length]...)
		cur.Header.Items++
	}

	packets = append(packets, s.closePacket(cur))
	return packets, nil
}

func (s *Splitter) openPacket(listID, subIndex, counter uint16) Packet {
	return Packet{
		Header: Header{
			Identity: ProtocolIdentity,
			Type:     TypeNetvar,
			Index:    listID,
			SubIndex: subIndex,
			Counter:  counter,
		},
	}
}

func (s *Splitter) closePacket(p Packet) Packet {
	p.Header.Length = uint16(HeaderSize + len(p.Payload))
	return p
}
