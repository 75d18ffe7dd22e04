// Package coalesce coloca uma fila que deduplica e serializa na frente de um
// backend lento.
//
// Fetch concorrentes para a mesma chave dividem uma única chamada ao backend:
// existe no máximo uma busca por chave em andamento, e todos os que esperam
// recebem o mesmo valor ou o mesmo erro. Chaves distintas são atendidas uma
// por vez, na ordem do primeiro pedido, por um único worker que espera uma
// latência simulada fixa antes de cada chamada. O backend nunca vê mais de
// uma chamada simultânea.
//
// Falhas não ficam guardadas: resolvida a busca, o próximo Fetch daquela
// chave começa outra.
package coalesce
