package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/config"
	"github.com/loomlabs/chatloom/internal/db"
	"github.com/loomlabs/chatloom/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	repo := chat.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// match publisher: main queue dead-letters to the DLQ
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d keep=%d", cfg.RabbitQueue, concurrency, cfg.StreamMarkersPerChat)

	// worker pool
	events := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range events {
				var ev rabbitmq.TurnEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ChatID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				pruned, err := repo.TrimStreamIDs(ctx, ev.ChatID, cfg.StreamMarkersPerChat)
				if err != nil {
					log.Printf("worker=%d trim chat=%s failed cost=%s err=%v", workerID, ev.ChatID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}
				if pruned > 0 {
					log.Printf("worker=%d trimmed chat=%s pruned=%d cost=%s", workerID, ev.ChatID, pruned, time.Since(start))
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed chat=%s err=%v", workerID, ev.ChatID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(events)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			events <- d
		}
	}
}
