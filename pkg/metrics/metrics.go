// Package metrics 定义业务指标接口及其 Prometheus / 空实现。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder 业务指标记录接口
type Recorder interface {
	JobSubmitted()
	JobFinished(status, kind string, elapsed time.Duration)
	JobsReaped(reason string, n int)
	QueueDepth(n int)
	Publish(result string)
	AssignmentUpdate(result string)
	HTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Nop 空实现，用于测试和关闭指标的场景
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) JobSubmitted()                                  {}
func (Nop) JobFinished(string, string, time.Duration)      {}
func (Nop) JobsReaped(string, int)                         {}
func (Nop) QueueDepth(int)                                 {}
func (Nop) Publish(string)                                 {}
func (Nop) AssignmentUpdate(string)                        {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}

const namespace = "ob_scheduler"

// Prometheus 基于 Prometheus 的指标实现
type Prometheus struct {
	jobsSubmitted prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsReaped    *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	publishTotal  *prometheus.CounterVec
	updateTotal   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus 创建并注册全部指标；reg 为 nil 时使用默认注册表
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Total number of schedule generation jobs accepted.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total number of generation jobs reaching a terminal status.",
		}, []string{"status", "kind"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Time from job submission to terminal status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		jobsReaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "reaped_total",
			Help:      "Jobs failed for exceeding the ceiling or deleted after retention.",
		}, []string{"reason"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a generator worker.",
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "publish_total",
			Help:      "Publish attempts by result kind.",
		}, []string{"result"}),
		updateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assignments",
			Name:      "update_total",
			Help:      "Assignment update attempts by result kind.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		p.jobsSubmitted, p.jobsFinished, p.jobDuration, p.jobsReaped, p.queueDepth,
		p.publishTotal, p.updateTotal, p.httpRequests, p.httpLatency,
	)
	return p
}

func (p *Prometheus) JobSubmitted() { p.jobsSubmitted.Inc() }

func (p *Prometheus) JobFinished(status, kind string, elapsed time.Duration) {
	p.jobsFinished.WithLabelValues(status, kind).Inc()
	p.jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (p *Prometheus) JobsReaped(reason string, n int) {
	p.jobsReaped.WithLabelValues(reason).Add(float64(n))
}

func (p *Prometheus) QueueDepth(n int) { p.queueDepth.Set(float64(n)) }

func (p *Prometheus) Publish(result string) { p.publishTotal.WithLabelValues(result).Inc() }

func (p *Prometheus) AssignmentUpdate(result string) { p.updateTotal.WithLabelValues(result).Inc() }

func (p *Prometheus) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
