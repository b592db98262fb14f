package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Connector 连接器的 Prometheus 指标，nil 可用，不记录任何数据
type Connector struct {
	registry *prometheus.Registry

	FramesReceived *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	UpdatesDropped *prometheus.CounterVec
	DeltasEmitted  *prometheus.CounterVec
	SinkErrors     *prometheus.CounterVec
	Reconnects     *prometheus.CounterVec
	QueueDepth     *prometheus.GaugeVec
	DecodeLatency  prometheus.Histogram
}

// NewConnector 使用独立 registry，同一进程内可以有多个实例
func NewConnector() *Connector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Connector{
		registry: reg,
		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deltarelay_frames_received_total",
			Help: "Websocket frames received",
		}, []string{"exchange"}),
		FramesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deltarelay_frames_dropped_total",
			Help: "Frames discarded before producing deltas",
		}, []string{"exchange", "reason"}),
		UpdatesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deltarelay_updates_dropped_total",
			Help: "Individual updates dropped inside a frame",
		}, []string{"exchange", "reason"}),
		DeltasEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deltarelay_deltas_emitted_total",
			Help: "Normalized deltas published",
		}, []string{"exchange"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deltarelay_sink_errors_total",
			Help: "Publish and archive failures",
		}, []string{"exchange", "sink"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deltarelay_reconnects_total",
			Help: "Connection attempts after the first",
		}, []string{"exchange", "cause"}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deltarelay_queue_depth",
			Help: "Frames waiting for a decode worker",
		}, []string{"exchange"}),
		DecodeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "deltarelay_decode_latency_ms",
			Help:    "Time from frame receipt to publish in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// Handler Prometheus 文本格式输出
func (m *Connector) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Connector) FrameReceived(exchange string) {
	if m != nil {
		m.FramesReceived.WithLabelValues(exchange).Inc()
	}
}

func (m *Connector) FrameDropped(exchange, reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(exchange, reason).Inc()
	}
}

func (m *Connector) UpdateDropped(exchange, reason string) {
	if m != nil {
		m.UpdatesDropped.WithLabelValues(exchange, reason).Inc()
	}
}

func (m *Connector) DeltasPublished(exchange string, n int) {
	if m != nil {
		m.DeltasEmitted.WithLabelValues(exchange).Add(float64(n))
	}
}

func (m *Connector) SinkError(exchange, sink string) {
	if m != nil {
		m.SinkErrors.WithLabelValues(exchange, sink).Inc()
	}
}

func (m *Connector) Reconnect(exchange, cause string) {
	if m != nil {
		m.Reconnects.WithLabelValues(exchange, cause).Inc()
	}
}

func (m *Connector) SetQueueDepth(exchange string, n int) {
	if m != nil {
		m.QueueDepth.WithLabelValues(exchange).Set(float64(n))
	}
}

func (m *Connector) ObserveDecode(ms float64) {
	if m != nil {
		m.DecodeLatency.Observe(ms)
	}
}
