// Package application contém os casos de uso (regras de aplicação) para admissão
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key, now) retorna uma Decision (allow/deny + tipo + retry-after).
package application
