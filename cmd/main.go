package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"news-stream-service/api"
	"news-stream-service/broadcaster"
	"news-stream-service/bus"
	"news-stream-service/config"
	"news-stream-service/metrics"
	"news-stream-service/model"
	"news-stream-service/processor"
	"news-stream-service/producer"
	"news-stream-service/registry"
	"news-stream-service/store"
)

const shutdownDeadline = 30 * time.Second

func main() {
	log.Println("Starting News Stream Service...")

	cfg := config.Load()
	metrics.Init("news-stream-service", "0.1.0", envOrDefault("ENVIRONMENT", "development"))

	// Startup failures are fatal; the core does not attempt self-repair.
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database("newsdb")
	log.Println("Connected to MongoDB")

	newsStore, err := store.NewNewsStore(db)
	if err != nil {
		log.Fatal("Failed to initialize news store:", err)
	}
	subStore := store.NewSubscriptionStore(db)

	ingestQueue := make(chan model.RawNewsItem, cfg.IngestQueueSize)
	processedQueue := make(chan model.NewsItem, cfg.BroadcastQueueSize)
	broadcastQueue := make(chan model.NewsItem, cfg.BroadcastQueueSize)

	reg := registry.New(cfg.IdleTimeout, cfg.ReaperInterval)
	proc := processor.New(newsStore, nil, cfg.StoreMaxRetries, cfg.StoreRetryDelay)
	bcast := broadcaster.New(reg, subStore, cfg.SendTimeout)

	producerCtx, stopProducers := context.WithCancel(context.Background())
	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopProducers()
	defer stopPipeline()

	// NATS is optional: without it only the in-process producers run.
	var bridge *bus.Bridge
	if cfg.NATSUrl != "" {
		bridge, err = bus.Connect(cfg.NATSUrl)
		if err != nil {
			log.Fatal("Failed to connect to NATS:", err)
		}
		defer bridge.Close()

		if err := bridge.StartIngest(producerCtx, ingestQueue); err != nil {
			log.Fatal("Failed to start NATS ingest bridge:", err)
		}
	}

	var producers sync.WaitGroup
	producers.Add(2)
	go func() {
		defer producers.Done()
		producer.NewNitterScraper(cfg.ScrapeInterval, cfg.RateLimit, ingestQueue).Start(producerCtx)
	}()
	go func() {
		defer producers.Done()
		producer.NewRSSFetcher(cfg.FetchInterval, ingestQueue).Start(producerCtx)
	}()

	var pipeline sync.WaitGroup
	pipeline.Add(3)
	go func() {
		defer pipeline.Done()
		proc.Start(pipelineCtx, ingestQueue, processedQueue)
	}()
	go func() {
		// Tee processed items into the broadcast queue and, when NATS is
		// up, publish high-signal items for downstream services.
		defer pipeline.Done()
		forward(pipelineCtx, processedQueue, broadcastQueue, bridge)
	}()
	go func() {
		defer pipeline.Done()
		bcast.Start(pipelineCtx, broadcastQueue)
	}()

	go reg.Start(pipelineCtx)
	go newsStore.StartCleanup(pipelineCtx, cfg.RetentionWindow, cfg.CleanupInterval)

	go api.StartServer(api.Deps{
		NewsStore:   newsStore,
		SubStore:    subStore,
		Registry:    reg,
		SendTimeout: cfg.SendTimeout,
	}, cfg.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, stopping...")

	// Producers first so no new items enter; then let the pipeline drain
	// what was accepted, bounded by a deadline.
	stopProducers()
	producers.Wait()
	stopPipeline()

	done := make(chan struct{})
	go func() {
		pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownDeadline):
		log.Println("Shutdown deadline exceeded, abandoning drain")
	}

	reg.CloseAll()
	log.Println("News stream service stopped")
}

// forward moves processed items to the broadcast queue, publishing
// high-signal items onto the bus along the way.
func forward(ctx context.Context, in <-chan model.NewsItem, out chan<- model.NewsItem, bridge *bus.Bridge) {
	for {
		var item model.NewsItem
		select {
		case <-ctx.Done():
			// Drain whatever the processor already emitted.
			select {
			case item = <-in:
			default:
				return
			}
		case item = <-in:
		}

		if bridge != nil && item.IsHighSignal {
			bridge.PublishProcessed(&item)
		}

		select {
		case out <- item:
		case <-ctx.Done():
			select {
			case out <- item:
			case <-time.After(time.Second):
				log.Printf("Broadcast queue full during shutdown, dropped id=%s", item.ID)
			}
		}
	}
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
