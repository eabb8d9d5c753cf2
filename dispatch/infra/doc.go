// Package infra contém as implementações concretas do despacho: cliente HTTP da
// API generativa, cursor em memória, leitura de configuração por requisição
// (viper) e observadores de tentativas (Prometheus, Redis, zap).
package infra
