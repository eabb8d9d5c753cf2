package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão tomada para um cliente.
//
// Method/Path são strings genéricas (não dependem de net/http).
// Strategy identifica o algoritmo que decidiu ("sliding_window", "token_bucket").
//
// Observação: cuidado com cardinalidade. Key é o IP do cliente; só deve virar
// chave/label quando o store for configurado para isso (trackKeys).
type StatsEvent struct {
	Key      Key
	Allowed  bool
	Strategy string

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// Implementações: memória, Redis, Prometheus (e MultiStatsStore para combinar).
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
