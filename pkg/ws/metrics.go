package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics собирает счётчики клиента. Nil *Metrics допустим: все методы
// превращаются в no-op.
type Metrics struct {
	opened        prometheus.Counter
	ended         *prometheus.CounterVec
	active        prometheus.Gauge
	received      prometheus.Counter
	receivedBytes prometheus.Counter
	sent          prometheus.Counter
	sendErrors    prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg
// (prometheus.DefaultRegisterer, если reg == nil).
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	const subsystem = "websocket_client"

	m := &Metrics{
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_opened_total",
			Help:      "Number of connections that completed the opening handshake.",
		}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_ended_total",
			Help:      "Number of connections that ended, by end type.",
		}, []string{"type"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_active",
			Help:      "Number of currently open connections.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "Number of messages received.",
		}),
		receivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "received_bytes_total",
			Help:      "Total payload bytes received.",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Number of messages sent.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_errors_total",
			Help:      "Number of failed sends.",
		}),
	}

	collectors := []prometheus.Collector{
		m.opened, m.ended, m.active, m.received, m.receivedBytes, m.sent, m.sendErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.opened.Inc()
	m.active.Inc()
}

func (m *Metrics) connectionEnded(end EndType) {
	if m == nil {
		return
	}
	m.ended.WithLabelValues(end.String()).Inc()
	if end == Closed {
		m.active.Dec()
	}
}

func (m *Metrics) messageReceived(size int) {
	if m == nil {
		return
	}
	m.received.Inc()
	m.receivedBytes.Add(float64(size))
}

func (m *Metrics) messageSent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sendErrors.Inc()
		return
	}
	m.sent.Inc()
}
