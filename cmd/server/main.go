package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"

	"mortgagewatch/internal/api"
	"mortgagewatch/internal/config"
	"mortgagewatch/internal/events"
	"mortgagewatch/internal/notify"
	"mortgagewatch/internal/pipeline"
	"mortgagewatch/internal/promotion"
	"mortgagewatch/internal/publish"
	"mortgagewatch/internal/scraper"
	"mortgagewatch/internal/store"
)

func main() {
	cfg, err := config.Load("configs/app.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	st, err := store.Open(cfg.Store.Sqlite.Path)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	pub, err := buildPublisher(cfg)
	if err != nil {
		log.Fatalf("publisher error: %v", err)
	}

	dispatcher := notify.NewDispatcher(pub, notify.Config{
		Topic:   cfg.Publish.Topic,
		Sender:  cfg.Notify.Sender,
		Subject: cfg.Notify.Subject,
		RateLimit: notify.RateLimitConfig{
			PerMinute: cfg.Notify.RateLimit.PerMinute,
			Burst:     cfg.Notify.RateLimit.Burst,
		},
	})

	engine := promotion.New(promotion.Config{MaxAttempts: cfg.Promotion.MaxAttempts}, st)
	pipe := pipeline.New(pipeline.Config{SubscriberRetries: cfg.Notify.SubscriberRetries}, st, engine, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Events.Brokers) > 0 {
		bus := events.NewPublisherBus(publish.NewKafka(cfg.Events.Brokers), cfg.Events.Topic)
		pipe.SetBus(bus)

		consumer := events.NewConsumer(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Group, pipe.HandleInserted)
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Printf("consumer close error: %v", err)
			}
		}()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Printf("consumer stopped: %v", err)
			}
		}()
	} else {
		pipe.SetBus(events.NewInline(pipe.HandleInserted))
	}

	if cfg.Scraper.Enabled && len(cfg.Scraper.Banks) > 0 {
		banks := make([]scraper.BankSource, 0, len(cfg.Scraper.Banks))
		for _, b := range cfg.Scraper.Banks {
			id, err := uuid.Parse(b.ID)
			if err != nil {
				log.Fatalf("scraper bank %q: invalid id: %v", b.Name, err)
			}
			banks = append(banks, scraper.BankSource{ID: id, Name: b.Name, URL: b.URL})
		}
		worker := scraper.NewWorker(scraper.Config{
			Banks:        banks,
			PollInterval: time.Duration(cfg.Scraper.PollIntervalSec) * time.Second,
			MaxTries:     cfg.Scraper.MaxTries,
		}, scraper.NewHTTPFetcher(10*time.Second), pipe)
		go worker.Run(ctx)
	}

	api.RegisterRoutes(h, pipe, st)

	log.Printf("server starting on %s (log.level=%s sink=%s)", addr, cfg.Log.Level, cfg.Publish.Sink)
	if err := h.Run(); err != nil {
		log.Fatalf("server run error: %v", err)
	}
}

func buildPublisher(cfg *config.Config) (publish.Publisher, error) {
	switch cfg.Publish.Sink {
	case "kafka":
		if len(cfg.Publish.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("publish sink kafka requires brokers")
		}
		return publish.NewKafka(cfg.Publish.Kafka.Brokers), nil
	case "webhook":
		if cfg.Publish.Webhook.URL == "" {
			return nil, fmt.Errorf("publish sink webhook requires url")
		}
		return publish.NewWebhook(
			cfg.Publish.Webhook.URL,
			cfg.Publish.Webhook.Secret,
			time.Duration(cfg.Publish.Webhook.TimeoutMs)*time.Millisecond,
		), nil
	case "log", "":
		return publish.Log{}, nil
	}
	return nil, fmt.Errorf("unknown publish sink: %q", cfg.Publish.Sink)
}
