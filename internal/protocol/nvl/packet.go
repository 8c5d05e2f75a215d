package nvl

// Packet 单个 UDP 数据报：报文头 + 载荷切片
type Packet struct {
	Header  Header
	Payload []byte
}

// PayloadLength 载荷长度
func (p Packet) PayloadLength() int { return len(p.Payload) }

// Bytes 编码为线缆字节（头 + 载荷）
func (p Packet) Bytes() []byte {
	buf := make([]byte, 0, HeaderSize+len(p.Payload))
	buf = append(buf, EncodeHeader(p.Header)...)
	buf = append(buf, p.Payload...)
	return buf
}

// ParsePacket 从收到的数据报解析报文。
// 载荷按头部 length 截取；length 异常时退化为整个数据报剩余部分。
// 载荷会拷贝一份，调用方可复用读缓冲。
func ParsePacket(b []byte) (Packet, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Packet{}, err
	}
	end := int(h.Length)
	if end < HeaderSize || end > len(b) {
		end = len(b)
	}
	payload := make([]byte, end-HeaderSize)
	copy(payload, b[HeaderSize:end])
	return Packet{Header: h, Payload: payload}, nil
}
