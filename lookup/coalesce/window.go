package coalesce

import "time"

// latencyWindow guarda as amostras mais recentes num anel, com a soma corrente.
type latencyWindow struct {
	samples []time.Duration
	next    int
	count   int
	sum     time.Duration
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &latencyWindow{samples: make([]time.Duration, size)}
}

func (w *latencyWindow) add(d time.Duration) {
	if w.count == len(w.samples) {
		w.sum -= w.samples[w.next]
	} else {
		w.count++
	}
	w.samples[w.next] = d
	w.sum += d
	w.next = (w.next + 1) % len(w.samples)
}

func (w *latencyWindow) mean() time.Duration {
	if w.count == 0 {
		return 0
	}
	return w.sum / time.Duration(w.count)
}

func (w *latencyWindow) len() int { return w.count }

func (w *latencyWindow) reset() {
	clear(w.samples)
	w.next = 0
	w.count = 0
	w.sum = 0
}
