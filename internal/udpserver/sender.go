package udpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/protocol/nvl"
)

var (
	// ErrSenderClosed 发送会话未打开或已关闭
	ErrSenderClosed = errors.New("udpserver: sender not open")
)

// DefaultPacketDelay PLC 运行时要求的最小包间隔
const DefaultPacketDelay = 5 * time.Millisecond

// Sender NVL 发送会话。
// 一条逻辑报文的全部分片按 subIndex 顺序串行发出，分片之间
// 用令牌桶保持固定间隔；互斥锁保证同一实例上的 Send 串行，
// counter/subIndex 分配不会交错。
type Sender struct {
	cfg      cfgpkg.UDPConfig
	splitter *nvl.Splitter
	log      *zap.Logger

	mu      sync.Mutex
	conn    net.PacketConn
	target  *net.UDPAddr
	limiter *rate.Limiter

	// 可选指标回调
	onPacket  func(n int)
	onMessage func(listID uint16, packets int)
}

// NewSender 创建发送会话
func NewSender(cfg cfgpkg.UDPConfig, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{cfg: cfg, splitter: nvl.NewSplitter(), log: log}
}

// SetMetricsCallbacks 设置指标回调
func (s *Sender) SetMetricsCallbacks(onPacket func(int), onMessage func(uint16, int)) {
	s.onPacket, s.onMessage = onPacket, onMessage
}

// Splitter 暴露分包器（诊断与测试用）
func (s *Sender) Splitter() *nvl.Splitter { return s.splitter }

// Open 创建发送 socket 并解析目标地址。
// 目标为广播地址时需要 SO_BROADCAST。
func (s *Sender) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	target := s.cfg.TargetAddress
	if target == "" {
		target = "255.255.255.255"
	}
	port := s.cfg.TargetPort
	if port == 0 {
		port = 1202
	}
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(target, fmt.Sprintf("%d", port)))
	if err != nil {
		return fmt.Errorf("udpserver: resolve target %s: %w", target, err)
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			}); err != nil {
				return err
			}
			return opErr
		},
	}
	conn, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return fmt.Errorf("udpserver: open send socket: %w", err)
	}

	delay := s.cfg.PacketDelay
	if delay <= 0 {
		delay = DefaultPacketDelay
	}

	s.conn = conn
	s.target = addr
	s.limiter = rate.NewLimiter(rate.Every(delay), 1)
	s.log.Info("nvl sender ready",
		zap.String("target", addr.String()),
		zap.Duration("packetDelay", delay))
	return nil
}

// Send 发送一条逻辑报文。
// 值先经结构定义序列化，再按字段边界分包；任一分片发送失败即
// 中止剩余分片，整条报文报告失败（已发出的分片无法撤回）。
func (s *Sender) Send(ctx context.Context, listID uint16, def nvl.Definition, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrSenderClosed
	}

	data, err := def.ConvertToBuffer(value)
	if err != nil {
		return fmt.Errorf("udpserver: convert list %d: %w", listID, err)
	}

	packets, err := s.splitter.Split(listID, data, def.Elements())
	if err != nil {
		return fmt.Errorf("udpserver: split list %d: %w", listID, err)
	}

	for i, p := range packets {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("udpserver: pacing aborted: %w", err)
		}
		wire := p.Bytes()
		if _, err := s.conn.WriteTo(wire, s.target); err != nil {
			return fmt.Errorf("udpserver: send list %d packet %d/%d: %w", listID, i+1, len(packets), err)
		}
		if s.onPacket != nil {
			s.onPacket(len(wire))
		}
	}

	if s.onMessage != nil {
		s.onMessage(listID, len(packets))
	}
	s.log.Debug("nvl message sent",
		zap.Uint16("list", listID),
		zap.Int("packets", len(packets)),
		zap.Int("bytes", len(data)))
	return nil
}

// Close 关闭发送 socket
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
