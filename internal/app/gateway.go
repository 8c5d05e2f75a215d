package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/iec"
	"github.com/jisotalo/codesys-client/internal/liststate"
	"github.com/jisotalo/codesys-client/internal/metrics"
	"github.com/jisotalo/codesys-client/internal/protocol/nvl"
	"github.com/jisotalo/codesys-client/internal/udpserver"
)

// Gateway 把协议层、收发会话与运行状态跟踪装配为一个整体。
// 每个声明的变量列表注册一个监听，重组完成与丢包事件统一经
// Sink 扇出到存储、缓存与通知。
type Gateway struct {
	defs      map[uint16]*iec.Definition
	registry  *nvl.Registry
	assembler *nvl.Assembler
	receiver  *udpserver.Receiver
	sender    *udpserver.Sender
	tracker   *liststate.Tracker
	sink      *Sink
	metrics   *metrics.GatewayMetrics
	log       *zap.Logger
}

// NewGateway 创建网关并注册全部已声明的列表监听
func NewGateway(cfg cfgpkg.UDPConfig, defs []*iec.Definition, tracker *liststate.Tracker, log *zap.Logger) *Gateway {
	registry := nvl.NewRegistry()
	assembler := nvl.NewAssembler(registry)

	g := &Gateway{
		defs:      make(map[uint16]*iec.Definition, len(defs)),
		registry:  registry,
		assembler: assembler,
		receiver:  udpserver.NewReceiver(cfg, registry, assembler, log),
		sender:    udpserver.NewSender(cfg, log),
		tracker:   tracker,
		log:       log,
	}

	for _, d := range defs {
		g.defs[d.ListID()] = d
		def := d
		registry.Register(def.ListID(), def, func(value any) {
			log.Debug("netvars received",
				zap.Uint16("list", def.ListID()),
				zap.String("name", def.Name()))
		})
	}

	assembler.SetOnComplete(func(listID, counter uint16, fragments, bytes int, value any) {
		now := time.Now()
		tracker.OnMessage(listID, counter, now)
		if g.sink != nil {
			g.sink.OfferMessage(listID, counter, fragments, bytes, value, now)
		}
	})

	return g
}

// SetSink 挂接事件扇出。必须在 Start 之前调用
func (g *Gateway) SetSink(s *Sink) { g.sink = s }

// Receiver 暴露接收会话（健康检查用）
func (g *Gateway) Receiver() *udpserver.Receiver { return g.receiver }

// Definitions 已声明的列表定义
func (g *Gateway) Definitions() []*iec.Definition {
	out := make([]*iec.Definition, 0, len(g.defs))
	for _, d := range g.defs {
		out = append(out, d)
	}
	return out
}

// WireMetrics 把收发路径接到 Prometheus 指标
func (g *Gateway) WireMetrics(m *metrics.GatewayMetrics) {
	g.metrics = m
	g.receiver.SetMetricsCallbacks(
		func(n int) {
			m.DatagramsReceived.Inc()
			m.BytesReceived.Add(float64(n))
		},
		func(listID uint16) {
			m.MessagesCompleted.WithLabelValues(strconv.Itoa(int(listID))).Inc()
		},
		func(err error) {
			switch {
			case errors.Is(err, nvl.ErrPacketLoss):
				m.PacketLoss.Inc()
				g.handleLoss(err)
			case errors.Is(err, nvl.ErrSizeMismatch):
				m.SizeMismatch.Inc()
			case errors.Is(err, nvl.ErrUnregisteredList):
				m.UnregisteredDrops.Inc()
			case errors.Is(err, nvl.ErrShortHeader):
				m.MalformedHeaders.Inc()
			}
		},
	)
	g.sender.SetMetricsCallbacks(
		func(n int) {
			m.PacketsSent.Inc()
			m.BytesSent.Add(float64(n))
		},
		func(listID uint16, packets int) {
			m.MessagesSent.WithLabelValues(strconv.Itoa(int(listID))).Inc()
		},
	)
	m.ListenerGauge.Set(float64(g.registry.Len()))
}

// handleLoss 丢包丢弃事件：更新状态并转发 Sink
func (g *Gateway) handleLoss(err error) {
	var lossErr *nvl.LossError
	if !errors.As(err, &lossErr) {
		return
	}
	g.tracker.OnLoss(lossErr.ListID)
	if g.sink != nil {
		g.sink.OfferLoss(lossErr.ListID, lossErr.Expected, lossErr.Received)
	}
}

// Start 打开发送 socket 并启动接收循环
func (g *Gateway) Start() error {
	if err := g.sender.Open(); err != nil {
		return err
	}
	return g.receiver.Start()
}

// Publish 编码并发送一条完整的变量列表报文
func (g *Gateway) Publish(ctx context.Context, listID uint16, values map[string]any) error {
	def, ok := g.defs[listID]
	if !ok {
		return fmt.Errorf("publish: unknown list %d", listID)
	}
	if err := g.sender.Send(ctx, listID, def, values); err != nil {
		if g.metrics != nil {
			g.metrics.SendErrors.Inc()
		}
		return err
	}
	now := time.Now()
	g.tracker.OnSent(listID, now)
	if g.sink != nil {
		// Split 为本条报文分配 counter 后递增，已用值为当前值减一
		g.sink.OfferSent(listID, g.sender.Splitter().Counter()-1, def.ByteLength(), now)
	}
	return nil
}

// Shutdown 停止收发会话
func (g *Gateway) Shutdown(ctx context.Context) error {
	errRecv := g.receiver.Shutdown(ctx)
	errSend := g.sender.Close()
	if errRecv != nil {
		return errRecv
	}
	return errSend
}
