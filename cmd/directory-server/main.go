// Command directory-server serve por HTTP o diretório de usuários e assentos
// já populado, no papel do banco lento atrás do gateway (DIRECTORY_URL). Tem
// o próprio portão de admissão.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seat-gateway/directory"
	"seat-gateway/middleware/ratelimit"
	"seat-gateway/middleware/ratelimit/infra"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("directory-server")

func main() {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := logging.SetLogLevel("*", lvl); err != nil {
			fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// o gateway já limita os clientes; aqui o limite protege o "banco"
	store := infra.NewSlidingWindowStore(
		infra.WithBurst(50, 10*time.Second),
		infra.WithSustained(600, time.Minute),
	)
	stop := store.StartJanitor(ctx)
	defer stop()
	stats := infra.NewMemoryStatsStore()

	h := directory.NewHandler(directory.NewSeededMemory(time.Now()))
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Admitter:            store,
		Stats:               stats,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		total := stats.Total()
		log.Infow("Admission totals", "allowed", total.Allowed, "burst", total.Burst, "rate", total.Rate, "denied", total.Denied())
	}()

	log.Infow("Directory server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorw("Server error", "err", err)
		os.Exit(1)
	}
	<-done
}
