// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers/mensagens.

package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSeconds arredonda para cima: Retry-After nunca deve sugerir voltar cedo demais.
func formatSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}

// formatWindow descreve uma janela para humanos: "minute", "10 seconds", "second".
func formatWindow(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "minute"
	case d == time.Second:
		return "second"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + " minutes"
	default:
		return formatFloat(d.Seconds()) + " seconds"
	}
}

// formatLimit no formato "5;w=10" (limite;janela em segundos).
func formatLimit(limit int, window time.Duration) string {
	return formatInt(limit) + ";w=" + formatFloat(window.Seconds())
}
