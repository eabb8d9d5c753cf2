// Package ratelimit fornece adapters HTTP (net/http) para o controle de admissão
// do proxy e para o limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante, token bucket, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Extrai a chave do cliente (header/XFF/X-Real-IP/RemoteAddr)
//   2) Chama a camada application para obter a decisão
//   3) Se bloqueado, responde 429 {"error","source":"local_proxy"} (ou 503 na concorrência)
//   4) Se permitido, chama o próximo handler (o handler de chat do pacote dispatch)
//
// Uma requisição rejeitada não consome vaga na janela.
package ratelimit
