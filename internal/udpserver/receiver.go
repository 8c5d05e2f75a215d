package udpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/protocol/nvl"
)

var (
	// ErrAlreadyListening 重复调用 Start
	ErrAlreadyListening = errors.New("udpserver: already listening")
)

// Receiver NVL 接收会话。
// 独占一个 UDP socket，单 goroutine 顺序处理数据报并喂入重组器，
// 重组器状态只在该通知上下文中变更。
type Receiver struct {
	cfg       cfgpkg.UDPConfig
	registry  *nvl.Registry
	assembler *nvl.Assembler
	log       *zap.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	stopC   chan struct{}
	wg      sync.WaitGroup
	started bool

	// 可选指标回调
	onDatagram  func(n int)
	onCompleted func(listID uint16)
	onDrop      func(err error)
}

// NewReceiver 创建接收会话
func NewReceiver(cfg cfgpkg.UDPConfig, registry *nvl.Registry, assembler *nvl.Assembler, log *zap.Logger) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{
		cfg:       cfg,
		registry:  registry,
		assembler: assembler,
		log:       log,
	}
}

// SetMetricsCallbacks 设置指标回调
func (r *Receiver) SetMetricsCallbacks(onDatagram func(int), onCompleted func(uint16), onDrop func(error)) {
	r.onDatagram, r.onCompleted, r.onDrop = onDatagram, onCompleted, onDrop
}

// Start 绑定监听端口并启动接收循环（非阻塞）。
// 端口被占用或权限不足返回绑定错误；重复调用返回 ErrAlreadyListening。
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyListening
	}

	var ip net.IP
	if r.cfg.LocalAddress != "" {
		ip = net.ParseIP(r.cfg.LocalAddress)
		if ip == nil {
			return fmt.Errorf("udpserver: invalid local address %q", r.cfg.LocalAddress)
		}
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: r.cfg.ListenPort})
	if err != nil {
		return fmt.Errorf("udpserver: bind port %d: %w", r.cfg.ListenPort, err)
	}

	r.conn = conn
	r.stopC = make(chan struct{})
	r.started = true

	r.wg.Add(1)
	go r.readLoop(conn)

	r.log.Info("nvl receiver listening", zap.String("addr", conn.LocalAddr().String()))
	return nil
}

// LocalAddr 实际绑定地址（端口 0 时由内核分配）
func (r *Receiver) LocalAddr() *net.UDPAddr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// ListenerCount 当前注册的监听器数量
func (r *Receiver) ListenerCount() int {
	return r.registry.Len()
}

// Running 是否处于监听状态
func (r *Receiver) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Receiver) readLoop(conn *net.UDPConn) {
	defer r.wg.Done()

	bufSize := r.cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 4096
	}
	buf := make([]byte, bufSize)

	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.stopC:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Warn("udp read error", zap.Error(err))
			continue
		}
		if r.onDatagram != nil {
			r.onDatagram(n)
		}
		r.handleDatagram(buf[:n])
	}
}

// handleDatagram 处理单个数据报。
// 接收路径的所有错误都只影响对应列表的缓冲，绝不中断接收循环。
func (r *Receiver) handleDatagram(b []byte) {
	pkt, err := nvl.ParsePacket(b)
	if err != nil {
		r.log.Debug("malformed datagram", zap.Int("bytes", len(b)), zap.Error(err))
		if r.onDrop != nil {
			r.onDrop(err)
		}
		return
	}

	completed, err := r.assembler.Ingest(pkt)
	if err != nil {
		r.log.Debug("fragment dropped",
			zap.Uint16("list", pkt.Header.Index),
			zap.Uint16("sub", pkt.Header.SubIndex),
			zap.Uint16("counter", pkt.Header.Counter),
			zap.Error(err))
		if r.onDrop != nil {
			r.onDrop(err)
		}
		return
	}
	if completed && r.onCompleted != nil {
		r.onCompleted(pkt.Header.Index)
	}
}

// Shutdown 关闭 socket、清空监听与全部在途缓冲
func (r *Receiver) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	close(r.stopC)
	conn := r.conn
	r.conn = nil
	r.started = false
	r.mu.Unlock()

	_ = conn.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-done:
	}

	r.assembler.Clear()
	r.registry.Clear()
	return err
}
