// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - SlidingWindowStore: janela deslizante por cliente (padrão do proxy)
//   - Store: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo para limitar chamadas simultâneas ao upstream
//   - Memory/Redis/Prometheus/MultiStatsStore: estatísticas de admissão
//   - SystemClock/ManualClock: relógios
package infra
