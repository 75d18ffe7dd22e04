package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas
// e podem ser usadas para web, gRPC, etc.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Allowed bool
	Kind    RejectKind

	Method string
	Path   string

	At time.Time
}

// Outcome devolve o rótulo usado em contadores: "allowed" ou o RejectKind.
func (ev StatsEvent) Outcome() string {
	if ev.Allowed {
		return "allowed"
	}
	if ev.Kind == KindNone {
		return "denied"
	}
	return string(ev.Kind)
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
