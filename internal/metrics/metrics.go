package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// GatewayMetrics NVL 网关业务指标
type GatewayMetrics struct {
	DatagramsReceived prometheus.Counter     // 收到的 UDP 数据报
	BytesReceived     prometheus.Counter     // 收到的字节数
	PacketsSent       prometheus.Counter     // 发出的分片包
	BytesSent         prometheus.Counter     // 发出的字节数
	MessagesCompleted *prometheus.CounterVec // 重组完成的逻辑报文，label: list
	MessagesSent      *prometheus.CounterVec // 发送完成的逻辑报文，label: list
	PacketLoss        prometheus.Counter     // 序号空洞导致的整报文丢弃
	SizeMismatch      prometheus.Counter     // 重组超长
	UnregisteredDrops prometheus.Counter     // 未注册列表的丢弃
	MalformedHeaders  prometheus.Counter     // 短于报文头的数据报
	SendErrors        prometheus.Counter     // 发送失败（整条报文）
	ListenerGauge     prometheus.Gauge       // 当前监听数
}

// NewGatewayMetrics 注册并返回业务指标
func NewGatewayMetrics(reg *prometheus.Registry) *GatewayMetrics {
	m := &GatewayMetrics{
		DatagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_datagrams_received_total",
			Help: "Total UDP datagrams received.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_bytes_received_total",
			Help: "Total bytes received over UDP.",
		}),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_packets_sent_total",
			Help: "Total NVL packets transmitted.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_bytes_sent_total",
			Help: "Total bytes transmitted over UDP.",
		}),
		MessagesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nvl_messages_completed_total",
			Help: "Logical messages fully reassembled and delivered.",
		}, []string{"list"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nvl_messages_sent_total",
			Help: "Logical messages fully transmitted.",
		}, []string{"list"}),
		PacketLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_packet_loss_total",
			Help: "Messages discarded due to sub-index gaps.",
		}),
		SizeMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_size_mismatch_total",
			Help: "Reassembled byte counts exceeding the expected length.",
		}),
		UnregisteredDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_unregistered_drops_total",
			Help: "Buffers dropped because no listener matched the list id.",
		}),
		MalformedHeaders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_malformed_headers_total",
			Help: "Datagrams shorter than the packet header.",
		}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nvl_send_errors_total",
			Help: "Logical messages whose transmission failed.",
		}),
		ListenerGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nvl_listeners",
			Help: "Currently registered listeners.",
		}),
	}
	reg.MustRegister(
		m.DatagramsReceived, m.BytesReceived, m.PacketsSent, m.BytesSent,
		m.MessagesCompleted, m.MessagesSent, m.PacketLoss, m.SizeMismatch,
		m.UnregisteredDrops, m.MalformedHeaders, m.SendErrors, m.ListenerGauge,
	)
	return m
}
