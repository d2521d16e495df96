package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomlabs/chatloom/internal/config"
	"github.com/loomlabs/chatloom/internal/db"
	"github.com/loomlabs/chatloom/internal/httpapi"
	"github.com/loomlabs/chatloom/internal/store/rabbitmq"
	"github.com/loomlabs/chatloom/internal/stream"
	"github.com/loomlabs/chatloom/internal/tasks"
	"github.com/loomlabs/chatloom/internal/turn"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	broker := stream.Context(stream.Options{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Retention:     time.Duration(cfg.StreamRetentionSecs) * time.Second,
	})

	// In-flight turns keep running after the client disconnects; the
	// registry bounds them on shutdown.
	registry := tasks.NewRegistry(10 * time.Minute)

	var events turn.EventPublisher
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, turn events disabled: %v", err)
	} else {
		events = pub
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, broker, registry, events)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Printf("tasks shutdown: %v", err)
	}
	stream.ShutdownGlobal(shutdownCtx)
}
