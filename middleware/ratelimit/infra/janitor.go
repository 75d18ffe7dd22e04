package infra

import (
	"sync"
	"time"
)

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}

// runJanitor executa fn a cada `every` até o ctx encerrar ou stop ser chamado.
// stop é idempotente e espera a goroutine terminar.
func runJanitor(ctx DoneContext, every time.Duration, fn func()) (stop func()) {
	if every <= 0 {
		return func() {}
	}

	quit := make(chan struct{})
	done := make(chan struct{})
	t := time.NewTicker(every)
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case <-t.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-done
	}
}
