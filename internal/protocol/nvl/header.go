package nvl

import "encoding/binary"

// HeaderSize 报文头固定长度（字节）
const HeaderSize = 20

// 协议常量
const (
	// ProtocolIdentity 协议标识（identity 字段，收包时不校验）
	ProtocolIdentity uint32 = 0
	// TypeNetvar 报文类型：网络变量
	TypeNetvar uint32 = 0
)

// Flags 位定义
const (
	FlagAckRequested     uint8 = 0x01 // bit0: 请求应答
	FlagChecksumIncluded uint8 = 0x02 // bit1: 含校验和
	FlagInvalidChecksum  uint8 = 0x04 // bit2: 校验和无效
)

// Header NVL 报文头
// 格式（小端）：identity(4) + type(4) + index(2) + subIndex(2) + items(2) + length(2) + counter(2) + flags(1) + checksum(1)
type Header struct {
	Identity uint32 // 协议标识
	Type     uint32 // 报文类型，0=网络变量
	Index    uint16 // 变量列表 ID（PLC 侧 Listidentifier）
	SubIndex uint16 // 分片序号，同一逻辑报文内从 0 递增
	Items    uint16 // 本分片携带的叶子变量个数
	Length   uint16 // 包总长度，含报文头
	Counter  uint16 // 逻辑报文流水号，同一报文的所有分片共享，65535 后回绕
	Flags    uint8  // 标志位，仅解码观测
	Checksum uint8  // 校验和占位，不计算不校验
}

// PayloadLength 载荷长度（包总长减去报文头）
func (h Header) PayloadLength() int {
	if int(h.Length) < HeaderSize {
		return 0
	}
	return int(h.Length) - HeaderSize
}

// EncodeHeader 按固定偏移编码报文头
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Identity)
	binary.LittleEndian.PutUint32(buf[4:8], h.Type)
	binary.LittleEndian.PutUint16(buf[8:10], h.Index)
	binary.LittleEndian.PutUint16(buf[10:12], h.SubIndex)
	binary.LittleEndian.PutUint16(buf[12:14], h.Items)
	binary.LittleEndian.PutUint16(buf[14:16], h.Length)
	binary.LittleEndian.PutUint16(buf[16:18], h.Counter)
	buf[18] = h.Flags
	buf[19] = h.Checksum
	return buf
}

// DecodeHeader 解码报文头；不足 20 字节返回 ErrShortHeader。
// 除长度外不做任何校验（identity/magic 由调用方按需检查）。
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		Identity: binary.LittleEndian.Uint32(b[0:4]),
		Type:     binary.LittleEndian.Uint32(b[4:8]),
		Index:    binary.LittleEndian.Uint16(b[8:10]),
		SubIndex: binary.LittleEndian.Uint16(b[10:12]),
		Items:    binary.LittleEndian.Uint16(b[12:14]),
		Length:   binary.LittleEndian.Uint16(b[14:16]),
		Counter:  binary.LittleEndian.Uint16(b[16:18]),
		Flags:    b[18],
		Checksum: b[19],
	}, nil
}
