package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	WebhookInbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_webhook_inbound_total", Help: "Inbound webhook callbacks"},
		[]string{"result"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	PipelineMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_pipeline_messages_total", Help: "Ingestion pipeline outcomes"},
		[]string{"result"},
	)
	ExtractionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_extraction_calls_total", Help: "Hosted-model call outcomes"},
		[]string{"result", "http_status"},
	)
	ExtractionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "respondr_extraction_latency_seconds", Help: "Hosted-model call latency"},
	)
	StorageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_storage_ops_total", Help: "Storage operations by backend"},
		[]string{"op", "backend", "result"},
	)
	Failovers = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "respondr_storage_failovers_total", Help: "Backend state transitions"},
		[]string{"from", "to"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, WebhookInbound, Enqueues, PipelineMessages,
		ExtractionCalls, ExtractionLatency, StorageOps, Failovers)
}
