package nvl

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// testDef 固定长度的结构定义桩，转换返回原始字节拷贝
type testDef struct {
	size    int
	failCvt bool
}

func (d testDef) ByteLength() int     { return d.size }
func (d testDef) Elements() []Element { return []Element{{Start: 0, Length: d.size}} }
func (d testDef) ConvertToBuffer(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok || len(b) != d.size {
		return nil, fmt.Errorf("bad value")
	}
	return append([]byte{}, b...), nil
}
func (d testDef) ConvertFromBuffer(b []byte) (any, error) {
	if d.failCvt {
		return nil, fmt.Errorf("conversion refused")
	}
	return append([]byte{}, b...), nil
}

func fragment(listID, subIndex, counter uint16, payload []byte) Packet {
	return Packet{
		Header: Header{
			Index:    listID,
			SubIndex: subIndex,
			Counter:  counter,
			Length:   uint16(HeaderSize + len(payload)),
		},
		Payload: payload,
	}
}

func TestIngestSingleFragment(t *testing.T) {
	reg := NewRegistry()
	var got []byte
	reg.Register(1, testDef{size: 4}, func(v any) { got = v.([]byte) })
	a := NewAssembler(reg)

	done, err := a.Ingest(fragment(1, 0, 0, []byte{1, 2, 3, 4}))
	if err != nil || !done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("got=%v", got)
	}
}

func TestIngestMultiFragment(t *testing.T) {
	reg := NewRegistry()
	var got []byte
	reg.Register(1, testDef{size: 300}, func(v any) { got = v.([]byte) })
	a := NewAssembler(reg)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	if done, err := a.Ingest(fragment(1, 0, 5, data[:256])); done || err != nil {
		t.Fatalf("first fragment done=%v err=%v", done, err)
	}
	done, err := a.Ingest(fragment(1, 1, 5, data[256:]))
	if err != nil || !done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("reassembly mangled")
	}
}

func TestIngestGapDiscardsWholeMessage(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register(1, testDef{size: 600}, func(v any) { calls++ })
	a := NewAssembler(reg)

	_, _ = a.Ingest(fragment(1, 0, 9, make([]byte, 256)))
	_, _ = a.Ingest(fragment(1, 1, 9, make([]byte, 256)))
	// 序号 2 丢失，直接来 3
	done, err := a.Ingest(fragment(1, 3, 9, make([]byte, 88)))
	if done || !errors.Is(err, ErrPacketLoss) {
		t.Fatalf("done=%v err=%v", done, err)
	}
	var lossErr *LossError
	if !errors.As(err, &lossErr) || lossErr.ListID != 1 || lossErr.Expected != 2 || lossErr.Received != 3 {
		t.Fatalf("lossErr=%+v", lossErr)
	}
	if calls != 0 || a.Has(1) {
		t.Fatalf("calls=%d pending=%v", calls, a.Has(1))
	}
}

func TestIngestCounterChangeStartsOver(t *testing.T) {
	reg := NewRegistry()
	var got []byte
	reg.Register(1, testDef{size: 300}, func(v any) { got = v.([]byte) })
	a := NewAssembler(reg)

	// 旧报文只到一半，PLC 已换新 counter
	_, _ = a.Ingest(fragment(1, 0, 1, make([]byte, 256)))
	_, _ = a.Ingest(fragment(1, 0, 2, make([]byte, 256)))
	done, err := a.Ingest(fragment(1, 1, 2, bytes.Repeat([]byte{0xAA}, 44)))
	if err != nil || !done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if len(got) != 300 || got[299] != 0xAA {
		t.Fatalf("wrong message delivered")
	}
}

func TestIngestCounterChangeMidStream(t *testing.T) {
	// counter 变了但新分片不是起点：旧条目作废，新分片也丢
	reg := NewRegistry()
	reg.Register(1, testDef{size: 300}, func(v any) {})
	a := NewAssembler(reg)

	_, _ = a.Ingest(fragment(1, 0, 1, make([]byte, 256)))
	done, err := a.Ingest(fragment(1, 1, 2, make([]byte, 44)))
	if done || err != nil {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if a.Has(1) {
		t.Fatalf("stale entry kept")
	}
}

func TestIngestNonZeroStartDropped(t *testing.T) {
	reg := NewRegistry()
	reg.Register(1, testDef{size: 300}, func(v any) {})
	a := NewAssembler(reg)

	done, err := a.Ingest(fragment(1, 1, 0, make([]byte, 44)))
	if done || err != nil || a.Has(1) {
		t.Fatalf("done=%v err=%v has=%v", done, err, a.Has(1))
	}
}

func TestIngestUnregisteredList(t *testing.T) {
	reg := NewRegistry()
	a := NewAssembler(reg)

	done, err := a.Ingest(fragment(77, 0, 0, []byte{1}))
	if done || !errors.Is(err, ErrUnregisteredList) {
		t.Fatalf("done=%v err=%v", done, err)
	}
	// 不留任何残余状态
	if a.Has(77) || a.Pending() != 0 {
		t.Fatalf("residue left")
	}
}

func TestIngestSizeMismatch(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register(1, testDef{size: 4}, func(v any) { calls++ })
	a := NewAssembler(reg)

	done, err := a.Ingest(fragment(1, 0, 0, make([]byte, 8)))
	if done || !errors.Is(err, ErrSizeMismatch) || calls != 0 {
		t.Fatalf("done=%v err=%v calls=%d", done, err, calls)
	}
	// 超限条目保留，非起点分片不能接续
	if !a.Has(1) {
		t.Fatalf("entry dropped")
	}
	if done, _ := a.Ingest(fragment(1, 1, 0, make([]byte, 4))); done {
		t.Fatalf("appended to oversized entry")
	}
	// 新 counter 起点正常接收
	done, err = a.Ingest(fragment(1, 0, 1, []byte{1, 2, 3, 4}))
	if err != nil || !done || calls != 1 {
		t.Fatalf("done=%v err=%v calls=%d", done, err, calls)
	}
}

func TestIngestHandledEntryInert(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register(1, testDef{size: 4}, func(v any) { calls++ })
	a := NewAssembler(reg)

	_, _ = a.Ingest(fragment(1, 0, 0, []byte{1, 2, 3, 4}))
	// 同 counter 的后续分片对已投递条目无效
	done, err := a.Ingest(fragment(1, 1, 0, []byte{9}))
	if done || err != nil || calls != 1 {
		t.Fatalf("done=%v err=%v calls=%d", done, err, calls)
	}
	// 新报文正常开始
	done, err = a.Ingest(fragment(1, 0, 1, []byte{5, 6, 7, 8}))
	if err != nil || !done || calls != 2 {
		t.Fatalf("done=%v err=%v calls=%d", done, err, calls)
	}
}

func TestIngestConvertFailureMarksHandled(t *testing.T) {
	reg := NewRegistry()
	reg.Register(1, testDef{size: 4, failCvt: true}, func(v any) { t.Fatal("callback on failed conversion") })
	a := NewAssembler(reg)

	done, err := a.Ingest(fragment(1, 0, 0, []byte{1, 2, 3, 4}))
	if done || !errors.Is(err, ErrConvert) {
		t.Fatalf("done=%v err=%v", done, err)
	}
	// 条目已失活，等待下一条新报文
	if a.Pending() != 0 {
		t.Fatalf("pending=%d", a.Pending())
	}
}

func TestIngestMultipleListeners(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register(1, testDef{size: 4}, func(v any) { calls++ })
	reg.Register(1, testDef{size: 999}, func(v any) { calls++ }) // 完整性只看第一个
	a := NewAssembler(reg)

	done, err := a.Ingest(fragment(1, 0, 0, []byte{1, 2, 3, 4}))
	if err != nil || !done || calls != 2 {
		t.Fatalf("done=%v err=%v calls=%d", done, err, calls)
	}
}

func TestIngestOnCompleteHook(t *testing.T) {
	reg := NewRegistry()
	reg.Register(1, testDef{size: 300}, func(v any) {})
	a := NewAssembler(reg)

	var hookList, hookCounter uint16
	var hookFrags, hookBytes int
	a.SetOnComplete(func(listID, counter uint16, fragments, bytes int, value any) {
		hookList, hookCounter, hookFrags, hookBytes = listID, counter, fragments, bytes
	})

	_, _ = a.Ingest(fragment(1, 0, 42, make([]byte, 256)))
	_, _ = a.Ingest(fragment(1, 1, 42, make([]byte, 44)))
	if hookList != 1 || hookCounter != 42 || hookFrags != 2 || hookBytes != 300 {
		t.Fatalf("hook=%d/%d/%d/%d", hookList, hookCounter, hookFrags, hookBytes)
	}
}

func TestClear(t *testing.T) {
	reg := NewRegistry()
	reg.Register(1, testDef{size: 300}, func(v any) {})
	a := NewAssembler(reg)

	_, _ = a.Ingest(fragment(1, 0, 0, make([]byte, 256)))
	if a.Pending() != 1 {
		t.Fatalf("pending=%d", a.Pending())
	}
	a.Clear()
	if a.Pending() != 0 || a.Has(1) {
		t.Fatalf("state survived clear")
	}
}
