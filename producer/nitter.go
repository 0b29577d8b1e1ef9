// Package producer holds the built-in raw-item producers: the Nitter
// timeline scraper and the RSS fetcher. Producers only ever push onto the
// ingestion queue; they never touch processor or registry state.
package producer

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"news-stream-service/metrics"
	"news-stream-service/model"
)

// NitterScraper polls a set of accounts across several Nitter instances with
// round-robin failover.
type NitterScraper struct {
	instances []string
	accounts  []string
	interval  time.Duration
	rateLimit time.Duration
	client    *http.Client
	output    chan<- model.RawNewsItem

	current int
}

var defaultInstances = []string{
	"http://localhost:8081",
	"http://localhost:8082",
	"http://localhost:8083",
}

var defaultAccounts = []string{
	// Politics
	"POTUS", "WhiteHouse", "PressSec", "VP", "FBI",
	// Crypto
	"elonmusk", "michael_saylor", "balajis", "VitalikButerin", "saylor",
	// Finance and markets
	"WSJmarkets", "ReutersBiz", "Bloomberg", "CNBC", "FinancialTimes",
	"federalreserve", "SEC_News", "MarketWatch", "YahooFinance",
	// Crypto media
	"CoinDesk", "Cointelegraph", "decryptmedia", "MessariCrypto",
	// Wire services
	"AP", "AP_Politics", "BBCNews", "NBCNews", "CNN", "business", "economist",
}

func NewNitterScraper(interval, rateLimit time.Duration, output chan<- model.RawNewsItem) *NitterScraper {
	return &NitterScraper{
		instances: defaultInstances,
		accounts:  defaultAccounts,
		interval:  interval,
		rateLimit: rateLimit,
		client:    &http.Client{Timeout: 10 * time.Second},
		output:    output,
	}
}

// Start runs scrape cycles until ctx is cancelled. Each cycle visits every
// account with rate limiting between accounts.
func (s *NitterScraper) Start(ctx context.Context) {
	log.Printf("Nitter scraper started: %d accounts, %d instances", len(s.accounts), len(s.instances))

	for {
		start := time.Now()
		s.scrapeCycle(ctx)
		log.Printf("Scrape cycle completed in %v", time.Since(start))

		wait := s.interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			log.Println("Nitter scraper stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (s *NitterScraper) scrapeCycle(ctx context.Context) {
	for _, account := range s.accounts {
		select {
		case <-ctx.Done():
			return
		default:
		}

		items, err := s.scrapeAccount(ctx, account)
		if err != nil {
			log.Printf("Failed to scrape @%s: %v", account, err)
		} else {
			log.Printf("Scraped %d tweets from @%s", len(items), account)
		}

		for _, item := range items {
			select {
			case s.output <- item:
				metrics.ItemsIngested.WithLabelValues(string(model.SourceNitter)).Inc()
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.rateLimit):
		}
	}
}

// scrapeAccount fetches one account's timeline, failing over across
// instances round-robin.
func (s *NitterScraper) scrapeAccount(ctx context.Context, account string) ([]model.RawNewsItem, error) {
	var lastErr error

	for attempt := 0; attempt < len(s.instances); attempt++ {
		instance := s.nextInstance()
		url := fmt.Sprintf("%s/%s", instance, account)

		items, err := s.fetchTimeline(ctx, url, account)
		if err != nil {
			lastErr = err
			log.Printf("Instance %s failed for @%s: %v", instance, account, err)
			continue
		}
		return items, nil
	}

	return nil, lastErr
}

func (s *NitterScraper) nextInstance() string {
	instance := s.instances[s.current]
	s.current = (s.current + 1) % len(s.instances)
	return instance
}

const timelineLimit = 20

func (s *NitterScraper) fetchTimeline(ctx context.Context, url, account string) ([]model.RawNewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseTimeline(doc, account), nil
}

// parseTimeline extracts tweets from a Nitter timeline page.
func parseTimeline(doc *goquery.Document, account string) []model.RawNewsItem {
	var items []model.RawNewsItem

	doc.Find("div.timeline-item").EachWithBreak(func(_ int, tweet *goquery.Selection) bool {
		content := strings.TrimSpace(tweet.Find("div.tweet-content").Text())
		if content == "" {
			return true
		}

		link, ok := tweet.Find("a.tweet-link").Attr("href")
		if !ok || link == "" {
			return true
		}
		if strings.HasPrefix(link, "/") {
			link = "https://x.com" + link
		}

		publishedAt, _ := tweet.Find("span.tweet-date a").Attr("title")

		items = append(items, model.RawNewsItem{
			Source:        model.SourceNitter,
			SourceAccount: "@" + account,
			Content:       content,
			URL:           link,
			PublishedAt:   publishedAt,
		})

		return len(items) < timelineLimit
	})

	return items
}
