package udpserver

import (
	"context"
	"fmt"
	"testing"
	"time"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/protocol/nvl"
)

// rawDef 固定长度定义桩，值形态为 []byte
type rawDef struct{ size int }

func (d rawDef) ByteLength() int { return d.size }
func (d rawDef) Elements() []nvl.Element {
	// 4 字节字段粒度，便于跨包
	n := d.size / 4
	out := make([]nvl.Element, n)
	for i := range out {
		out[i] = nvl.Element{Start: i * 4, Length: 4}
	}
	return out
}
func (d rawDef) ConvertToBuffer(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok || len(b) != d.size {
		return nil, fmt.Errorf("bad value")
	}
	return append([]byte{}, b...), nil
}
func (d rawDef) ConvertFromBuffer(b []byte) (any, error) {
	return append([]byte{}, b...), nil
}

func TestSendReceiveLoopback(t *testing.T) {
	registry := nvl.NewRegistry()
	assembler := nvl.NewAssembler(registry)

	recvCfg := cfgpkg.UDPConfig{ListenPort: 0, LocalAddress: "127.0.0.1", ReadBuffer: 2048}
	recv := NewReceiver(recvCfg, registry, assembler, nil)
	if err := recv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = recv.Shutdown(ctx)
	}()

	if err := recv.Start(); err != ErrAlreadyListening {
		t.Fatalf("second start err=%v", err)
	}

	def := rawDef{size: 300} // 两个分片
	done := make(chan []byte, 1)
	registry.Register(9, def, func(v any) { done <- v.([]byte) })

	addr := recv.LocalAddr()
	sendCfg := cfgpkg.UDPConfig{
		TargetAddress: "127.0.0.1",
		TargetPort:    addr.Port,
		PacketDelay:   time.Millisecond,
	}
	snd := NewSender(sendCfg, nil)
	if err := snd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snd.Close()

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 3)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := snd.Send(ctx, 9, def, data); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-done:
		if len(got) != 300 || got[299] != data[299] {
			t.Fatalf("reassembled %d bytes", len(got))
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("message not delivered")
	}
}

func TestSendWithoutOpen(t *testing.T) {
	snd := NewSender(cfgpkg.UDPConfig{}, nil)
	err := snd.Send(context.Background(), 1, rawDef{size: 4}, []byte{1, 2, 3, 4})
	if err != ErrSenderClosed {
		t.Fatalf("err=%v", err)
	}
}

func TestReceiverShutdownClearsState(t *testing.T) {
	registry := nvl.NewRegistry()
	assembler := nvl.NewAssembler(registry)
	registry.Register(1, rawDef{size: 8}, func(v any) {})

	recv := NewReceiver(cfgpkg.UDPConfig{ListenPort: 0, LocalAddress: "127.0.0.1"}, registry, assembler, nil)
	if err := recv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := recv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if recv.Running() || registry.Len() != 0 || assembler.Pending() != 0 {
		t.Fatalf("state survived shutdown")
	}
	// 幂等
	if err := recv.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestSenderPacing(t *testing.T) {
	registry := nvl.NewRegistry()
	assembler := nvl.NewAssembler(registry)
	recv := NewReceiver(cfgpkg.UDPConfig{ListenPort: 0, LocalAddress: "127.0.0.1"}, registry, assembler, nil)
	if err := recv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = recv.Shutdown(ctx)
	}()

	def := rawDef{size: 1024} // 4 个分片
	got := make(chan struct{}, 1)
	registry.Register(2, def, func(v any) { got <- struct{}{} })

	delay := 20 * time.Millisecond
	snd := NewSender(cfgpkg.UDPConfig{
		TargetAddress: "127.0.0.1",
		TargetPort:    recv.LocalAddr().Port,
		PacketDelay:   delay,
	}, nil)
	if err := snd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snd.Close()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := snd.Send(ctx, 2, def, make([]byte, 1024)); err != nil {
		t.Fatalf("send: %v", err)
	}
	elapsed := time.Since(start)
	// 4 个分片、第 1 个立即发出，至少 3 个间隔
	if elapsed < 3*delay {
		t.Fatalf("pacing too fast: %v", elapsed)
	}

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatalf("message not delivered")
	}
}

func TestSendCancelledContext(t *testing.T) {
	snd := NewSender(cfgpkg.UDPConfig{
		TargetAddress: "127.0.0.1",
		TargetPort:    9, // discard 端口，不需要有监听者
		PacketDelay:   50 * time.Millisecond,
	}, nil)
	if err := snd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer snd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	def := rawDef{size: 1024}
	if err := snd.Send(ctx, 1, def, make([]byte, 1024)); err == nil {
		t.Fatalf("want pacing abort")
	}
}
