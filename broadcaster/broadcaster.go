// Package broadcaster drains the broadcast queue and fans each processed
// item out to every matching live connection.
package broadcaster

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"news-stream-service/metrics"
	"news-stream-service/model"
	"news-stream-service/registry"
)

// SubscriptionSource resolves a subscriber's filter criteria. A (nil, nil)
// result means no subscription record exists, which matches everything.
type SubscriptionSource interface {
	Subscription(ctx context.Context, userID string) (*model.Subscription, error)
}

type Broadcaster struct {
	registry    *registry.Registry
	subs        SubscriptionSource
	sendTimeout time.Duration
}

func New(reg *registry.Registry, subs SubscriptionSource, sendTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		registry:    reg,
		subs:        subs,
		sendTimeout: sendTimeout,
	}
}

// Start drains the broadcast queue in order until ctx is cancelled or the
// queue closes.
func (b *Broadcaster) Start(ctx context.Context, input <-chan model.NewsItem) {
	log.Println("Broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.drain(ctx, input)
			log.Println("Broadcaster stopped")
			return
		case item, ok := <-input:
			if !ok {
				log.Println("Broadcast queue closed, broadcaster stopped")
				return
			}
			b.Dispatch(ctx, &item)
		}
	}
}

// drain dispatches whatever is already buffered on the broadcast queue so a
// graceful shutdown delivers accepted items before connections close.
func (b *Broadcaster) drain(ctx context.Context, input <-chan model.NewsItem) {
	for {
		select {
		case item, ok := <-input:
			if !ok {
				return
			}
			b.Dispatch(ctx, &item)
		default:
			return
		}
	}
}

// Dispatch evaluates every live connection's filter against item and
// delivers concurrently to the matches. Sends to distinct connections are
// independent: one failed or slow send only evicts its own connection. The
// per-item join (bounded by the send timeout) keeps successive items to the
// same subscriber in processing order.
func (b *Broadcaster) Dispatch(ctx context.Context, item *model.NewsItem) {
	snapshot := b.registry.Active()
	if len(snapshot) == 0 {
		return
	}

	envelope := model.NewsEnvelope(item)

	// Subscription lookups outlive dispatch cancellation so the shutdown
	// drain still evaluates real filters instead of falling back to
	// match-all.
	lookupCtx := context.WithoutCancel(ctx)

	// Filter evaluation runs inside each connection's goroutine: a slow
	// subscription lookup stalls only its own connection, not the item.
	var matched atomic.Int64
	var wg sync.WaitGroup
	for _, conn := range snapshot {
		wg.Add(1)
		go func(conn *registry.Connection) {
			defer wg.Done()

			sub := b.lookupSubscription(lookupCtx, conn.UserID)
			if !Matches(item, sub) {
				return
			}
			matched.Add(1)

			if err := conn.Deliver(envelope, b.sendTimeout); err != nil {
				metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
				log.Printf("Delivery failed for user=%s id=%s: %v", conn.UserID, item.ID, err)
				b.registry.Evict(conn, "send_failed")
				return
			}
			metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
		}(conn)
	}
	wg.Wait()

	metrics.ItemsBroadcast.Inc()
	if n := matched.Load(); n > 0 {
		log.Printf("Broadcast news id=%s to %d/%d users", item.ID, n, len(snapshot))
	}
}

// lookupSubscription resolves the subscriber's filters; lookup failures fall
// back to match-all so a store outage never silences delivery.
func (b *Broadcaster) lookupSubscription(ctx context.Context, userID string) *model.Subscription {
	if b.subs == nil {
		return nil
	}
	sub, err := b.subs.Subscription(ctx, userID)
	if err != nil {
		log.Printf("Subscription lookup failed for user=%s: %v", userID, err)
		return nil
	}
	return sub
}

// Matches reports whether item passes all of sub's filter rules. A nil sub
// matches everything; each rule with an empty filter set is vacuously true.
func Matches(item *model.NewsItem, sub *model.Subscription) bool {
	if sub == nil {
		return true
	}

	// An unset threshold means the default; an explicit 0 is a real choice
	// and lets everything through.
	threshold := model.DefaultImpactThreshold
	if sub.ImpactThreshold != nil {
		threshold = *sub.ImpactThreshold
	}
	if item.ImpactScore < float64(threshold) {
		return false
	}

	if len(sub.Categories) > 0 && !containsFold(sub.Categories, string(item.Category)) {
		return false
	}

	switch item.Source {
	case model.SourceNitter:
		if len(sub.NitterAccounts) > 0 && !accountMatch(sub.NitterAccounts, item.SourceAccount) {
			return false
		}
	case model.SourceRSS:
		if len(sub.RSSFeeds) > 0 && !accountMatch(sub.RSSFeeds, item.SourceAccount) {
			return false
		}
	}

	if len(sub.Keywords) > 0 && !keywordMatch(sub.Keywords, item) {
		return false
	}

	return true
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

// accountMatch is substring-based so "@elonmusk" in a subscription matches
// the "@elonmusk" account regardless of leading @ or casing.
func accountMatch(accounts []string, sourceAccount string) bool {
	account := strings.ToLower(sourceAccount)
	for _, a := range accounts {
		if a == "" {
			continue
		}
		if strings.Contains(account, strings.ToLower(strings.TrimPrefix(a, "@"))) {
			return true
		}
	}
	return false
}

func keywordMatch(keywords []string, item *model.NewsItem) bool {
	text := strings.ToLower(item.Title + " " + item.Content)

	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if kwLower == "" {
			continue
		}
		if strings.Contains(text, kwLower) {
			return true
		}
		for _, ticker := range item.Tickers {
			if strings.EqualFold(ticker, kwLower) {
				return true
			}
		}
	}
	return false
}
