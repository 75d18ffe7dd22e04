package cache

// Observer recebe os eventos do cache, por exemplo para exportar métricas.
// Os métodos são chamados com o lock do cache seguro: não podem bloquear nem
// chamar de volta o cache.
type Observer interface {
	// Hit: Get devolveu um valor ainda válido.
	Hit()
	// Miss: Get não achou nada ou achou uma entrada vencida.
	Miss()
	// Expired recebe quantas entradas saíram por idade.
	Expired(n int)
	// Evicted recebe quantas entradas saíram pelo limite de capacidade.
	Evicted(n int)
	// Size informa o total de entradas depois de cada mudança.
	Size(n int)
}

// NoopObserver ignora tudo.
type NoopObserver struct{}

func (NoopObserver) Hit()        {}
func (NoopObserver) Miss()       {}
func (NoopObserver) Expired(int) {}
func (NoopObserver) Evicted(int) {}
func (NoopObserver) Size(int)    {}
