package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rim-api/core"
)

func main() {
	cfg := core.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	queue := core.NewRedisQueue(redisClient)
	eventRepo := core.NewPgAuthEventRepository(db)
	processor := core.NewAuditProcessor(eventRepo)
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	workerID := core.NewWorkerID()
	hostname, _ := os.Hostname()
	log.Printf("audit worker started. id=%s concurrency=%d queue=%s", workerID, concurrency, core.PendingQueueKey)

	const pendingKey = core.PendingQueueKey
	const processingKey = core.ProcessingQueueKey
	visibility := core.DefaultVisibilityTimeout
	reclaimInterval := 15 * time.Second

	state := core.NewHeartbeatState(workerID, hostname, concurrency)
	go state.Start(ctx, redisClient)

	// requeue expired in-flight events periodically
	go func() {
		ticker := time.NewTicker(reclaimInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if events, err := queue.RequeueExpired(ctx, processingKey, pendingKey, time.Now()); err != nil {
					log.Printf("[reclaimer] requeue expired error: %v", err)
				} else if len(events) > 0 {
					log.Printf("[reclaimer] requeued %d expired events", len(events))
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			for {
				payload, err := queue.Reserve(ctx, pendingKey, processingKey, visibility)
				if err != nil {
					if errors.Is(err, redis.Nil) {
						// Queue is empty, wait before retrying to avoid CPU spinning
						select {
						case <-ctx.Done():
							return
						case <-time.After(100 * time.Millisecond):
							continue
						}
					}
					// context canceled -> exit
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					log.Printf("[worker %d] dequeue error: %v", workerNum, err)
					time.Sleep(time.Second)
					continue
				}

				state.EventStarted(payload)

				kind, procErr := processor.Process(ctx, payload)
				if procErr != nil {
					// Leave the payload in the processing set; the reclaimer
					// re-enqueues it once the visibility timeout lapses.
					log.Printf("[worker %d] process event failed: %v", workerNum, procErr)
					state.EventFinished(payload, procErr)
					continue
				}

				if kind != "" {
					log.Printf("[worker %d] recorded %s event", workerNum, kind)
				}
				if err := queue.Ack(ctx, processingKey, payload); err != nil {
					log.Printf("[worker %d] ack failed: %v", workerNum, err)
				}
				state.EventFinished(payload, nil)
			}
		}(i + 1)
	}

	wg.Wait()
}
