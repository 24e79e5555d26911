package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PipelineMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_total",
			Help: "Total number of messages processed by the agent pipeline (count)",
		},
		[]string{"status"},
	)

	PipelineProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_ms",
			Help:    "Full pipeline run duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	AgentInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_invocations_total",
			Help: "Total number of agent invocations by agent type (count)",
		},
		[]string{"agent_type", "status"},
	)

	AgentProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_processing_duration_ms",
			Help:    "Per-agent processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"agent_type"},
	)

	ActiveAgents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_agents",
			Help: "Number of registered, enabled agents (count)",
		},
	)

	JobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_submitted_total",
			Help: "Total number of jobs submitted to the job queue (count)",
		},
		[]string{"job_type", "kind"},
	)

	JobsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_executed_total",
			Help: "Total number of jobs executed by the campaign worker (count)",
		},
		[]string{"job_type", "status"},
	)

	JobExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_execution_duration_ms",
			Help:    "Job execution duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"job_type"},
	)

	JobsQueuedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_jobs_queued",
			Help: "Current number of jobs per queue state (count)",
		},
		[]string{"state"},
	)

	CampaignsActiveGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaigns_active",
			Help: "Number of campaigns currently in active status (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	DraftsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drafts_generated_total",
			Help: "Total number of drafts generated (count)",
		},
		[]string{"source"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(PipelineMessagesTotal)
	prometheus.MustRegister(PipelineProcessingDuration)
	prometheus.MustRegister(AgentInvocationsTotal)
	prometheus.MustRegister(AgentProcessingDuration)
	prometheus.MustRegister(ActiveAgents)
}

func RegisterSchedulerMetrics() {
	prometheus.MustRegister(JobsSubmittedTotal)
	prometheus.MustRegister(JobsExecutedTotal)
	prometheus.MustRegister(JobExecutionDuration)
	prometheus.MustRegister(JobsQueuedGauge)
	prometheus.MustRegister(CampaignsActiveGauge)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterCampaignMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DraftsGeneratedTotal)
}

func ObservePipelineDuration(duration time.Duration, status string) {
	PipelineProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveAgentDuration(agentType string, duration time.Duration) {
	AgentProcessingDuration.WithLabelValues(agentType).Observe(float64(duration.Milliseconds()))
}

func SetActiveAgents(count int) {
	ActiveAgents.Set(float64(count))
}

func ObserveJobExecutionDuration(jobType string, duration time.Duration) {
	JobExecutionDuration.WithLabelValues(jobType).Observe(float64(duration.Milliseconds()))
}

func SetJobsQueued(state string, count int) {
	JobsQueuedGauge.WithLabelValues(state).Set(float64(count))
}
