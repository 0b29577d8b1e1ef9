package producer

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"time"

	"news-stream-service/metrics"
	"news-stream-service/model"
)

// RSS feed structures
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// RSSFetcher polls a fixed set of feeds on an interval and pushes entries
// onto the ingestion queue.
type RSSFetcher struct {
	feeds    []string
	interval time.Duration
	client   *http.Client
	output   chan<- model.RawNewsItem
}

var defaultFeeds = []string{
	"https://www.reutersagency.com/feed/?best=topnews",
	"https://feeds.a.dj.com/rss/RSSMarketsMain.xml",
	"https://feeds.bloomberg.com/markets/news.rss",
	"https://www.cnbc.com/id/100003114/device/rss/rss.html",
	"https://apnews.com/rss/world-news",
}

func NewRSSFetcher(interval time.Duration, output chan<- model.RawNewsItem) *RSSFetcher {
	return &RSSFetcher{
		feeds:    defaultFeeds,
		interval: interval,
		client:   &http.Client{Timeout: 15 * time.Second},
		output:   output,
	}
}

// Start runs fetch cycles until ctx is cancelled.
func (f *RSSFetcher) Start(ctx context.Context) {
	log.Printf("RSS fetcher started: %d feeds", len(f.feeds))

	for {
		start := time.Now()
		f.fetchCycle(ctx)
		log.Printf("Fetch cycle completed in %v", time.Since(start))

		wait := f.interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			log.Println("RSS fetcher stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (f *RSSFetcher) fetchCycle(ctx context.Context) {
	for _, feedURL := range f.feeds {
		items, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			log.Printf("Failed to fetch %s: %v", feedURL, err)
			continue
		}
		log.Printf("Fetched %d items from %s", len(items), feedURL)

		for _, item := range items {
			select {
			case f.output <- item:
				metrics.ItemsIngested.WithLabelValues(string(model.SourceRSS)).Inc()
			case <-ctx.Done():
				return
			}
		}
	}
}

const feedEntryLimit = 20

func (f *RSSFetcher) fetchFeed(ctx context.Context, feedURL string) ([]model.RawNewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	entries := feed.Channel.Items
	if len(entries) > feedEntryLimit {
		entries = entries[:feedEntryLimit]
	}

	items := make([]model.RawNewsItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, model.RawNewsItem{
			Source:        model.SourceRSS,
			SourceAccount: feed.Channel.Title,
			Title:         entry.Title,
			Content:       entry.Description,
			URL:           entry.Link,
			PublishedAt:   entry.PubDate,
		})
	}

	return items, nil
}
