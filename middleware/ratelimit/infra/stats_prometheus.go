package infra

import (
	"context"

	"genai-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore exporta as decisões de admissão como contador.
// A chave do cliente nunca vira label (cardinalidade).
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

// NewPrometheusStatsStore registra genai_admission_decisions_total no registerer.
func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genai",
		Subsystem: "admission",
		Name:      "decisions_total",
		Help:      "Admission decisions taken by the local rate limiter.",
	}, []string{"strategy", "decision"})

	if reg != nil {
		if err := reg.Register(decisions); err != nil {
			return nil, err
		}
	}
	return &PrometheusStatsStore{decisions: decisions}, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	decision := "denied"
	if ev.Allowed {
		decision = "allowed"
	}
	s.decisions.WithLabelValues(ev.Strategy, decision).Inc()
	return nil
}

// Decisions expõe o vetor para testes (prometheus/testutil).
func (s *PrometheusStatsStore) Decisions() *prometheus.CounterVec { return s.decisions }
