// Package bus bridges the pipeline to NATS: external producers can push raw
// items in through a subject, and processed high-signal items are published
// out for downstream services.
package bus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"news-stream-service/metrics"
	"news-stream-service/model"
)

const (
	RawSubject       = "news.raw"
	ProcessedSubject = "news.processed"
)

// Bridge wires a NATS connection to the ingestion queue and the processed
// stream. It is optional: the pipeline runs without NATS configured.
type Bridge struct {
	nc *nats.Conn
}

func Connect(url string) (*Bridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("news-stream-service"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("Reconnected to NATS at %s", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS connection lost: %v", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Connected to NATS at %s", nc.ConnectedUrl())
	return &Bridge{nc: nc}, nil
}

func (b *Bridge) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}

// StartIngest subscribes to the raw-item subject and pushes decoded items
// onto the ingestion queue, blocking the NATS callback when the queue is
// full so backpressure reaches external producers.
func (b *Bridge) StartIngest(ctx context.Context, output chan<- model.RawNewsItem) error {
	sub, err := b.nc.QueueSubscribe(RawSubject, "news-stream-ingest", func(msg *nats.Msg) {
		var raw model.RawNewsItem
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			metrics.NatsMessagesReceived.WithLabelValues(RawSubject, "invalid").Inc()
			log.Printf("Failed to unmarshal raw item from NATS: %v", err)
			return
		}

		select {
		case output <- raw:
			metrics.NatsMessagesReceived.WithLabelValues(RawSubject, "ok").Inc()
			metrics.ItemsIngested.WithLabelValues(string(raw.Source)).Inc()
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("Failed to unsubscribe from %s: %v", RawSubject, err)
		}
	}()

	log.Printf("NATS ingest bridge subscribed to %s", RawSubject)
	return nil
}

// processedMessage is the structure published for downstream consumers.
type processedMessage struct {
	Item      model.NewsItem `json:"item"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	RequestID string         `json:"requestId"`
}

// PublishProcessed emits one processed item for downstream services. Publish
// failures are logged and counted, never propagated into the pipeline.
func (b *Bridge) PublishProcessed(item *model.NewsItem) {
	message := processedMessage{
		Item:      *item,
		Timestamp: time.Now(),
		Source:    "news-stream-service",
		RequestID: uuid.NewString(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal processed item for NATS: %v", err)
		return
	}

	if err := b.nc.Publish(ProcessedSubject, data); err != nil {
		metrics.NatsMessagesPublished.WithLabelValues(ProcessedSubject, "error").Inc()
		log.Printf("Failed to publish processed item to NATS: %v", err)
		return
	}

	metrics.NatsMessagesPublished.WithLabelValues(ProcessedSubject, "ok").Inc()
}
