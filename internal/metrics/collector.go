package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector bundles the engine's Prometheus metrics. A nil *Collector is
// valid and records nothing, so wiring metrics stays optional.
type Collector struct {
	conversationsTotal *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
	agentCallsTotal    *prometheus.CounterVec
	agentCallDuration  *prometheus.HistogramVec
	debateTurnsTotal   prometheus.Counter
	notificationsTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates and registers the metric set under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.conversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Conversations created, by mode",
		},
		[]string{"mode"},
	)

	c.decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Moderator decisions produced, by action and source",
		},
		[]string{"action", "source"},
	)

	c.agentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_calls_total",
			Help:      "Agent calls, by agent id and outcome",
		},
		[]string{"agent", "outcome"},
	)

	c.agentCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_call_duration_seconds",
			Help:      "Agent call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"agent"},
	)

	c.debateTurnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debate_turns_total",
			Help:      "Debate turns executed",
		},
	)

	c.notificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_notifications_total",
			Help:      "Conversation change notifications fired",
		},
	)

	return c
}

// ConversationCreated records a conversation creation.
func (c *Collector) ConversationCreated(mode string) {
	if c == nil {
		return
	}
	c.conversationsTotal.WithLabelValues(mode).Inc()
}

// DecisionProduced records one decision by action and source
// ("initial", "follow_up", "fallback").
func (c *Collector) DecisionProduced(action, source string) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(action, source).Inc()
}

// AgentCall records one agent call outcome and its duration.
func (c *Collector) AgentCall(agent, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.agentCallsTotal.WithLabelValues(agent, outcome).Inc()
	c.agentCallDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// DebateTurn records one executed debate turn.
func (c *Collector) DebateTurn() {
	if c == nil {
		return
	}
	c.debateTurnsTotal.Inc()
}

// NotificationFired records a conversation change notification.
func (c *Collector) NotificationFired() {
	if c == nil {
		return
	}
	c.notificationsTotal.Inc()
}
