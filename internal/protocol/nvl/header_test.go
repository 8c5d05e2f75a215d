package nvl

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Identity: ProtocolIdentity,
		Type:     TypeNetvar,
		Index:    3,
		SubIndex: 2,
		Items:    5,
		Length:   276,
		Counter:  65535,
		Flags:    FlagAckRequested,
		Checksum: 0x7f,
	}
	b := EncodeHeader(h)
	if len(b) != HeaderSize {
		t.Fatalf("len=%d", len(b))
	}
	got, err := DecodeHeader(b)
	if err != nil || got != h {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestHeaderLayout(t *testing.T) {
	h := Header{Index: 0x0102, SubIndex: 0x0304, Items: 0x0506, Length: 0x0708, Counter: 0x090a, Flags: 0x0b, Checksum: 0x0c}
	b := EncodeHeader(h)
	// 固定偏移，小端
	if binary.LittleEndian.Uint16(b[8:]) != 0x0102 {
		t.Fatalf("index at 8")
	}
	if binary.LittleEndian.Uint16(b[10:]) != 0x0304 {
		t.Fatalf("subIndex at 10")
	}
	if binary.LittleEndian.Uint16(b[14:]) != 0x0708 {
		t.Fatalf("length at 14")
	}
	if binary.LittleEndian.Uint16(b[16:]) != 0x090a {
		t.Fatalf("counter at 16")
	}
	if b[18] != 0x0b || b[19] != 0x0c {
		t.Fatalf("flags/checksum at 18/19")
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatalf("want ErrShortHeader")
	}
}

func TestParsePacket(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	h := Header{Index: 1, Length: uint16(HeaderSize + len(payload))}
	raw := append(EncodeHeader(h), payload...)

	p, err := ParsePacket(raw)
	if err != nil || !bytes.Equal(p.Payload, payload) {
		t.Fatalf("payload=%v err=%v", p.Payload, err)
	}
	if p.PayloadLength() != 4 {
		t.Fatalf("payloadLength=%d", p.PayloadLength())
	}

	// Payload 是拷贝，复用读缓冲不得影响已解析的包
	raw[HeaderSize] = 0xff
	if p.Payload[0] != 1 {
		t.Fatalf("payload aliases read buffer")
	}
}

func TestParsePacketLengthClamp(t *testing.T) {
	payload := []byte{9, 9}
	h := Header{Index: 1, Length: uint16(HeaderSize + 100)} // 头声明超出实际
	raw := append(EncodeHeader(h), payload...)

	p, err := ParsePacket(raw)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !bytes.Equal(p.Payload, payload) {
		t.Fatalf("payload=%v", p.Payload)
	}
}

func TestParsePacketShort(t *testing.T) {
	if _, err := ParsePacket([]byte{0, 1, 2}); err == nil {
		t.Fatalf("want error")
	}
}
