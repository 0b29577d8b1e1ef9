// Package processor is the single point of serialization between raw
// producers and the broadcast pipeline: it deduplicates by normalized URL,
// classifies, scores and persists each item, then forwards it for delivery.
package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"news-stream-service/classifier"
	"news-stream-service/metrics"
	"news-stream-service/model"
)

// Skip sentinels: expected, non-fatal reasons to drop a raw item.
var (
	ErrEmptyContent = errors.New("empty content")
	ErrEmptyURL     = errors.New("empty url")
	ErrDuplicateURL = errors.New("duplicate url")
)

// IsSkip reports whether err is an expected drop rather than a failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrEmptyURL) ||
		errors.Is(err, ErrDuplicateURL)
}

// NewsStore is the persistence contract the processor writes through.
type NewsStore interface {
	Insert(ctx context.Context, item *model.NewsItem) error
}

type Processor struct {
	store      NewsStore
	classify   classifier.Func
	maxRetries int
	retryDelay time.Duration

	mu   sync.Mutex
	seen map[string]bool
}

// New builds a processor. store may be nil (persistence disabled, items still
// flow to broadcast); classify defaults to the rule-based classifier.
func New(store NewsStore, classify classifier.Func, maxRetries int, retryDelay time.Duration) *Processor {
	if classify == nil {
		classify = classifier.Classify
	}
	p := &Processor{
		store:      store,
		classify:   classify,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		seen:       make(map[string]bool),
	}
	return p
}

// Start drains the ingestion queue until ctx is cancelled or input closes.
// Each item is processed in arrival order; a full output queue blocks the
// loop, which is the backpressure policy (block, never drop).
func (p *Processor) Start(ctx context.Context, input <-chan model.RawNewsItem, output chan<- model.NewsItem) {
	log.Println("News processor started")

	for {
		select {
		case <-ctx.Done():
			p.drain(ctx, input, output)
			log.Println("News processor stopped")
			return
		case raw, ok := <-input:
			if !ok {
				log.Println("Ingestion queue closed, news processor stopped")
				return
			}
			p.handle(ctx, raw, output)
		}
	}
}

// drain consumes whatever is already buffered on the ingestion queue so a
// graceful shutdown does not lose accepted items. It stops as soon as the
// queue is momentarily empty.
func (p *Processor) drain(ctx context.Context, input <-chan model.RawNewsItem, output chan<- model.NewsItem) {
	for {
		select {
		case raw, ok := <-input:
			if !ok {
				return
			}
			p.handle(ctx, raw, output)
		default:
			return
		}
	}
}

func (p *Processor) handle(ctx context.Context, raw model.RawNewsItem, output chan<- model.NewsItem) {
	item, err := p.Process(ctx, raw)
	if err != nil {
		if IsSkip(err) {
			metrics.ItemsSkipped.WithLabelValues(skipReason(err)).Inc()
			log.Printf("Skipped item url=%s: %v", raw.URL, err)
		} else {
			log.Printf("Failed to process item url=%s: %v", raw.URL, err)
		}
		return
	}

	metrics.ItemsProcessed.WithLabelValues(string(item.Source), string(item.Category)).Inc()

	// Blocking here is the backpressure policy: a full broadcast queue
	// stalls the processor rather than dropping the item. Once shutdown
	// has begun the wait is bounded so the drain always terminates.
	select {
	case output <- *item:
	case <-ctx.Done():
		select {
		case output <- *item:
		case <-time.After(forwardDeadline):
			log.Printf("Broadcast queue full during shutdown, dropped id=%s", item.ID)
		}
	}
}

const forwardDeadline = 10 * time.Second

// Process turns one raw item into a processed item. A skip sentinel error
// means the item was dropped on purpose; anything else is unexpected.
func (p *Processor) Process(ctx context.Context, raw model.RawNewsItem) (*model.NewsItem, error) {
	if strings.TrimSpace(raw.Content) == "" {
		return nil, ErrEmptyContent
	}
	if strings.TrimSpace(raw.URL) == "" {
		return nil, ErrEmptyURL
	}

	normalized := NormalizeURL(raw.URL)

	// Check-and-insert must be atomic with respect to concurrent callers;
	// the dedup index is the one place where the at-most-once-per-URL
	// invariant is decided.
	p.mu.Lock()
	if p.seen[normalized] {
		p.mu.Unlock()
		return nil, ErrDuplicateURL
	}
	p.seen[normalized] = true
	p.mu.Unlock()

	now := time.Now()
	item := &model.NewsItem{
		ID:            itemID(raw.Source, raw.URL),
		Source:        raw.Source,
		SourceAccount: raw.SourceAccount,
		Title:         raw.Title,
		Content:       raw.Content,
		URL:           raw.URL,
		NormalizedURL: normalized,
		PublishedAt:   parsePublishedAt(raw.PublishedAt, now),
	}

	res, err := p.classify(item.Title + " " + item.Content)
	if err != nil {
		// Classification failure is not a pipeline failure: proceed with
		// empty entities and the catch-all category.
		log.Printf("Classifier failed for id=%s: %v", item.ID, err)
		res = classifier.Result{Category: model.CategoryOther}
	}
	item.People = res.People
	item.Tickers = res.Tickers
	item.Tags = res.Tags
	item.PredictionMarkets = res.Markets
	item.Category = res.Category
	if item.Category == "" {
		item.Category = model.CategoryOther
	}

	item.ImpactScore = Score(item, ImpactWeights, now)
	item.RelevanceScore = Score(item, RelevanceWeights, now)
	item.IsHighSignal = item.ImpactScore >= model.HighSignalThreshold

	p.persist(ctx, item)

	log.Printf("Processed news item id=%s url=%s impact=%.1f category=%s",
		item.ID, item.URL, item.ImpactScore, item.Category)

	return item, nil
}

// persist writes the item through the store with bounded retries. A storage
// outage must not block delivery, so exhausted retries only log.
func (p *Processor) persist(ctx context.Context, item *model.NewsItem) {
	if p.store == nil {
		return
	}

	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return
			}
		}
		if err = p.store.Insert(ctx, item); err == nil {
			return
		}
		log.Printf("Store insert failed for id=%s (attempt %d/%d): %v",
			item.ID, attempt+1, p.maxRetries+1, err)
	}

	log.Printf("Giving up persisting id=%s, forwarding to broadcast anyway: %v", item.ID, err)
}

func itemID(source model.SourceType, url string) string {
	sum := md5.Sum([]byte(url))
	return fmt.Sprintf("%s_%s", source, hex.EncodeToString(sum[:])[:12])
}

var publishedAtLayouts = []string{
	time.RFC1123Z,               // RSS: Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC1123,                // RSS variant with zone name
	"Jan 2, 2006 · 3:04 PM UTC", // Nitter tweet-date title attribute
	time.RFC3339,                // NATS bridge producers
}

func parsePublishedAt(value string, now time.Time) float64 {
	value = strings.TrimSpace(value)
	for _, layout := range publishedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return float64(t.Unix())
		}
	}
	return float64(now.Unix())
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateURL):
		return "duplicate_url"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrEmptyURL):
		return "empty_url"
	default:
		return "other"
	}
}
