package coalesce

import "time"

const (
	OutcomeFound  = "found"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

// Observer recebe os eventos do coalescer. Fetched e Pending são chamados com
// o lock interno seguro, então nenhum método pode bloquear nem chamar de
// volta o Coalescer.
type Observer interface {
	// Fetched: uma vez por chamada ao backend, com o resultado e o tempo
	// desde que a chave entrou na fila.
	Fetched(outcome string, elapsed time.Duration)
	// Joined: um Fetch pegou carona numa busca já em andamento.
	Joined()
	// Pending informa quantas chaves estão na fila sem resposta.
	Pending(n int)
}

type NoopObserver struct{}

func (NoopObserver) Fetched(string, time.Duration) {}
func (NoopObserver) Joined()                       {}
func (NoopObserver) Pending(int)                   {}
