package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry はこのプロセスが公開するメトリクス一式
type Registry struct {
	registry *prometheus.Registry

	serviceCalls  *prometheus.CounterVec
	activeStreams prometheus.Gauge
	streamErrors  prometheus.Counter
}

// NewRegistry はカメラ状態とプロセス情報を登録したRegistryを作成する
func NewRegistry(source CameraSource) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		serviceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_calls_total",
			Help:      "サービス呼び出しの回数",
		}, []string{"service", "result"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "中継中のMJPEGストリーム数",
		}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "異常終了したMJPEGストリームの数",
		}),
	}

	r.registry.MustRegister(
		NewCollector(source),
		r.serviceCalls,
		r.activeStreams,
		r.streamErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler は /metrics 用のハンドラーを返す
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ServiceCalled はサービス呼び出しの結果を記録する
func (r *Registry) ServiceCalled(service string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.serviceCalls.WithLabelValues(service, result).Inc()
}

// StreamStarted はストリーム開始を記録し、終了時に呼ぶ関数を返す
func (r *Registry) StreamStarted() func(err error) {
	r.activeStreams.Inc()
	return func(err error) {
		r.activeStreams.Dec()
		if err != nil {
			r.streamErrors.Inc()
		}
	}
}
