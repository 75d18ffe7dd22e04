// Package ratelimit fornece adapters HTTP (net/http) para admissão por janela
// deslizante e limite de concorrência.
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
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com o tipo do limite (burst ou sustentado) ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler (cache -> coalescer -> diretório)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_BURST_LIMIT, RATE_LIMIT, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
