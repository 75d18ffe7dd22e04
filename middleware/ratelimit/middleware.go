package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"seat-gateway/middleware/ratelimit/application"
	"seat-gateway/middleware/ratelimit/domain"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway/admission")

type KeyFunc func(r *http.Request) string

type Options struct {
	Admitter            domain.Admitter
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	// Clock é o relógio passado ao Admitter. Padrão: time.Now.
	Clock func() time.Time
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

type windowInfo interface {
	BurstLimit() (int, time.Duration)
	SustainedLimit() (int, time.Duration)
}

// rejectBody é o corpo JSON de uma resposta 429.
type rejectBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware é o portão de admissão: toda requisição passa por ele antes de
// chegar ao cache/coalescer. Rejeição responde 429 sem chamar o próximo handler.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	svc := application.Service{
		Admitter:   opts.Admitter,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			now := opts.Clock()

			if opts.AddRateLimitHeaders {
				setLimitHeaders(w.Header(), key, opts.Admitter)
			}

			dec := svc.Decide(domain.Key(key), now)
			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Kind:    dec.Kind,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      now,
				})
				if err != nil {
					log.Warnw("cannot record admission stats", "err", err)
				}
			}
			if !dec.Allowed {
				log.Debugw("request rejected", "client", key, "kind", dec.Kind, "path", r.URL.Path)
				writeReject(w, opts.RejectStatus, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setLimitHeaders(h http.Header, key string, adm domain.Admitter) {
	h.Set("X-RateLimit-Key", key)
	switch info := adm.(type) {
	case windowInfo:
		h.Set("X-RateLimit-Burst", formatLimit(info.BurstLimit()))
		h.Set("X-RateLimit-Limit", formatLimit(info.SustainedLimit()))
	case rateInfo:
		h.Set("X-RateLimit-RPS", formatFloat(info.RPS()))
		h.Set("X-RateLimit-Burst", formatInt(info.Burst()))
	}
}

func writeReject(w http.ResponseWriter, status int, dec domain.Decision) {
	h := w.Header()
	h.Set("Retry-After", formatSeconds(dec.RetryAfter))
	if dec.Kind != domain.KindNone {
		h.Set("X-RateLimit-Kind", string(dec.Kind))
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rejectBody{
		Error:   "Too many requests",
		Message: rejectMessage(dec),
	})
}

// rejectMessage ex.: "Burst limit exceeded: 5 requests per 10 seconds".
func rejectMessage(dec domain.Decision) string {
	var prefix string
	switch dec.Kind {
	case domain.KindBurst:
		prefix = "Burst limit exceeded"
	case domain.KindRate:
		prefix = "Rate limit exceeded"
	default:
		return "Too many requests"
	}
	if dec.Limit <= 0 || dec.Window <= 0 {
		return prefix
	}
	return prefix + ": " + formatInt(dec.Limit) + " requests per " + formatWindow(dec.Window)
}
