package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// RejectKind identifica qual limite bloqueou a requisição.
type RejectKind string

const (
	KindNone RejectKind = ""
	// KindBurst: janela curta (rajada) estourada.
	KindBurst RejectKind = "BurstLimitExceeded"
	// KindRate: janela longa (sustentada) estourada.
	KindRate RejectKind = "RateLimitExceeded"
)

// Verdict é a resposta crua de um Admitter para uma requisição.
//
// Quando Allowed=false, Limit/Window descrevem o limite violado e RetryAfter
// é o tempo até a requisição mais antiga contada sair da janela (0 = sem estimativa).
type Verdict struct {
	Allowed    bool
	Kind       RejectKind
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

// Admitter decide e registra, de forma atômica, se uma requisição de `key`
// no instante `now` pode passar.
//
// A implementação pode ser janela deslizante, token-bucket, etc.
// Requisições rejeitadas não devem ser contabilizadas.
type Admitter interface {
	CheckAndRecord(key Key, now time.Time) Verdict
}

type Decision struct {
	Allowed bool
	Kind    RejectKind
	Limit   int
	Window  time.Duration
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
