package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"schoolhub/internal/config"
	"schoolhub/internal/mailer"
	"schoolhub/internal/metrics"
	"schoolhub/internal/notify"
	"schoolhub/internal/queue"
	"schoolhub/internal/store"
)

// Worker consumes delivery jobs, resolves the recipient address and sends the
// email. Delivery is best effort: failures are logged and the job is dropped.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	retry := store.NewRetryer(cfg.RetryAttempts, cfg.RetryDelay)
	db, err := store.NewDB(cfg.DatabaseURL, retry)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, redisClient.QueueKey("notifications"))
	}

	var mail mailer.Mailer
	if cfg.SendgridKey != "" {
		mail = mailer.NewSendgrid(cfg.SendgridKey, cfg.MailFromName, cfg.MailFrom, "SchoolHub")
		log.Println("sendgrid mailer configured")
	} else {
		mail = mailer.NewConsole()
		log.Println("SENDGRID_API_KEY not set, logging mail to console")
	}

	deliverer := notify.NewDeliverer(
		notify.NewPostgresStore(db),
		notify.NewPostgresDirectory(db),
		mail,
		metrics.New(),
	)

	jobs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for jobs...")
	for job := range jobs {
		deliverer.Deliver(ctx, job)
	}

	log.Println("worker stopped")
}
