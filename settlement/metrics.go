package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	checkoutSessions prometheus.Counter
	confirmations    *prometheus.CounterVec
	failed           prometheus.Counter
	settledAmount    prometheus.Counter
	platformFees     prometheus.Counter
}

// NewMetrics builds the settlement counters and registers them on reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkoutSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "etuition",
			Subsystem: "settlement",
			Name:      "checkout_sessions_created_total",
			Help:      "Checkout sessions opened on the payment gateway.",
		}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "etuition",
			Subsystem: "settlement",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations by result.",
		}, []string{"result"}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "etuition",
			Subsystem: "settlement",
			Name:      "payments_failed_total",
			Help:      "Pending payments failed by reconciliation.",
		}),
		settledAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "etuition",
			Subsystem: "settlement",
			Name:      "settled_amount_total",
			Help:      "Gross amount of completed payments.",
		}),
		platformFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "etuition",
			Subsystem: "settlement",
			Name:      "platform_fees_total",
			Help:      "Platform fees of completed payments.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.checkoutSessions, m.confirmations, m.failed, m.settledAmount, m.platformFees)
	}

	return m
}

const (
	confirmationCompleted = "completed"
	confirmationNoop      = "noop"
	confirmationUnpaid    = "unpaid"
)

func (m *Metrics) checkoutCreated() {
	if m == nil {
		return
	}
	m.checkoutSessions.Inc()
}

func (m *Metrics) confirmed(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

func (m *Metrics) settled(amount, fee int64) {
	if m == nil {
		return
	}
	m.settledAmount.Add(float64(amount))
	m.platformFees.Add(float64(fee))
}

func (m *Metrics) paymentFailed() {
	if m == nil {
		return
	}
	m.failed.Inc()
}
