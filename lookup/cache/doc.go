// Package cache implementa um cache genérico em memória onde o TTL é o único
// critério de expiração.
//
// Uma entrada nunca é devolvida depois que a idade passa do TTL. Entradas
// vencidas saem pela leitura que as encontra (e que conta um miss) ou pela
// varredura em background, que roda em intervalo fixo até o Close.
//
// Cada entrada guarda um número de sequência de acesso, incrementado a cada
// hit e a cada escrita. Ele só registra a recência relativa: o cache não
// descarta por ele, a menos que WithMaxEntries defina um limite. Nesse caso a
// entrada usada há mais tempo sai quando o limite é ultrapassado.
package cache
