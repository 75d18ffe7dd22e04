// Package lookup monta o caminho de leitura do serviço: primeiro o cache e, no
// miss, a fila de coalescência. O que for encontrado volta para o cache.
package lookup

import (
	"context"
	"fmt"
	"time"

	"seat-gateway/lookup/cache"
)

// Store é o lado do cache no caminho de leitura.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Clear()
	Stats() cache.Stats
}

// Fetcher é o lado do backend no caminho de leitura.
type Fetcher[K comparable, V any] interface {
	Fetch(ctx context.Context, key K) (V, bool, error)
	AverageResponseTime() time.Duration
	ClearStats()
}

// Status é a resposta da consulta de status do cache.
type Status struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	// AverageResponseTime em milissegundos.
	AverageResponseTime float64 `json:"averageResponseTime"`
}

type Resolver[K comparable, V any] struct {
	store    Store[V]
	fetcher  Fetcher[K, V]
	cacheKey func(K) string
}

// NewResolver monta um Resolver. cacheKey converte a chave do backend na
// chave do cache, ex.: 7 -> "user:7".
func NewResolver[K comparable, V any](store Store[V], fetcher Fetcher[K, V], cacheKey func(K) string) *Resolver[K, V] {
	return &Resolver[K, V]{store: store, fetcher: fetcher, cacheKey: cacheKey}
}

// Get devolve o valor da chave. Ausência não vai para o cache.
func (r *Resolver[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	ck := r.cacheKey(key)
	if v, ok := r.store.Get(ck); ok {
		return v, true, nil
	}

	v, found, err := r.fetcher.Fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, false, fmt.Errorf("fetch %s: %w", ck, err)
	}
	if found {
		r.store.Set(ck, v)
	}
	return v, found, nil
}

// Put grava direto no cache, ex.: logo depois de criar o registro.
func (r *Resolver[K, V]) Put(key K, value V) {
	r.store.Set(r.cacheKey(key), value)
}

func (r *Resolver[K, V]) Status() Status {
	st := r.store.Stats()
	return Status{
		Size:                st.Size,
		Hits:                st.Hits,
		Misses:              st.Misses,
		AverageResponseTime: float64(r.fetcher.AverageResponseTime()) / float64(time.Millisecond),
	}
}

// ClearCache apaga o cache e zera os contadores.
func (r *Resolver[K, V]) ClearCache() {
	r.store.Clear()
}

// ClearLatency descarta as amostras de latência do backend. O cache fica.
func (r *Resolver[K, V]) ClearLatency() {
	r.fetcher.ClearStats()
}
