package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"news-stream-service/classifier"
	"news-stream-service/model"
)

type fakeStore struct {
	mu      sync.Mutex
	items   []model.NewsItem
	failFor int // number of inserts to fail before succeeding
	calls   int
}

func (s *fakeStore) Insert(_ context.Context, item *model.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFor {
		return errors.New("store unavailable")
	}
	s.items = append(s.items, *item)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func rawItem(url string) model.RawNewsItem {
	return model.RawNewsItem{
		Source:      model.SourceRSS,
		Content:     "some content",
		URL:         url,
		PublishedAt: time.Now().Format(time.RFC1123Z),
	}
}

func TestProcessSkipsEmptyInput(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)
	ctx := context.Background()

	if _, err := p.Process(ctx, model.RawNewsItem{URL: "https://example.com/a"}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := p.Process(ctx, model.RawNewsItem{Content: "text"}); !errors.Is(err, ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
}

func TestProcessDeduplicatesByNormalizedURL(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)
	ctx := context.Background()

	first := rawItem("https://example.com/story?utm_source=feed")
	second := rawItem("https://EXAMPLE.com/story/")
	second.Content = "entirely different content"

	if _, err := p.Process(ctx, first); err != nil {
		t.Fatalf("first item should process: %v", err)
	}
	if _, err := p.Process(ctx, second); !errors.Is(err, ErrDuplicateURL) {
		t.Fatalf("expected ErrDuplicateURL for same normalized URL, got %v", err)
	}
}

func TestProcessDedupUnderConcurrency(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Process(ctx, rawItem("https://example.com/contested")); err == nil {
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if processed != 1 {
		t.Fatalf("expected exactly one processed item for a contested URL, got %d", processed)
	}
}

func TestProcessDistinctURLsAllPass(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		item, err := p.Process(ctx, rawItem(fmt.Sprintf("https://example.com/story-%d", i)))
		if err != nil {
			t.Fatalf("item %d should process: %v", i, err)
		}
		if seen[item.NormalizedURL] {
			t.Fatalf("duplicate normalized URL emitted: %s", item.NormalizedURL)
		}
		seen[item.NormalizedURL] = true
	}
}

func TestProcessClassifierFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	failing := func(string) (classifier.Result, error) {
		return classifier.Result{}, errors.New("classifier down")
	}
	p := New(nil, failing, 0, 0)

	item, err := p.Process(context.Background(), rawItem("https://example.com/classified"))
	if err != nil {
		t.Fatalf("classifier failure must not drop the item: %v", err)
	}
	if item.Category != model.CategoryOther {
		t.Fatalf("expected fallback category %q, got %q", model.CategoryOther, item.Category)
	}
	if len(item.People) != 0 || len(item.Tickers) != 0 {
		t.Fatalf("expected empty entity sets on classifier failure")
	}
}

func TestProcessPersistsWithRetries(t *testing.T) {
	t.Parallel()

	st := &fakeStore{failFor: 2}
	p := New(st, nil, 3, time.Millisecond)

	item, err := p.Process(context.Background(), rawItem("https://example.com/retried"))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected a processed item")
	}
	if st.count() != 1 {
		t.Fatalf("expected item persisted after retries, stored %d", st.count())
	}
}

func TestProcessForwardsDespiteStorageOutage(t *testing.T) {
	t.Parallel()

	st := &fakeStore{failFor: 100}
	p := New(st, nil, 2, time.Millisecond)

	item, err := p.Process(context.Background(), rawItem("https://example.com/outage"))
	if err != nil {
		t.Fatalf("storage outage must not block the pipeline: %v", err)
	}
	if item == nil {
		t.Fatal("expected a processed item despite storage outage")
	}
	if st.count() != 0 {
		t.Fatalf("store should have accepted nothing, got %d", st.count())
	}
}

func TestProcessSetsScoresAndHighSignal(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)

	raw := model.RawNewsItem{
		Source:        model.SourceRSS,
		SourceAccount: "Reuters",
		Title:         "Breaking",
		Content:       "Breaking: Jerome Powell announces emergency rate decision",
		URL:           "https://example.com/powell",
		PublishedAt:   time.Now().Format(time.RFC1123Z),
	}

	item, err := p.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if item.ImpactScore < 0 || item.ImpactScore > 100 {
		t.Fatalf("impact score out of bounds: %f", item.ImpactScore)
	}
	if item.RelevanceScore < 0 || item.RelevanceScore > 100 {
		t.Fatalf("relevance score out of bounds: %f", item.RelevanceScore)
	}
	if !item.IsHighSignal {
		t.Fatalf("expected high-signal flag for impact %f", item.ImpactScore)
	}
	if item.ID == "" {
		t.Fatal("expected a generated id")
	}
}

func TestProcessExtractsPredictionMarkets(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)
	raw := rawItem("https://example.com/markets")
	raw.Content = "Polymarket odds on a rate cut jump after the announcement"

	item, err := p.Process(context.Background(), raw)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(item.PredictionMarkets) != 1 {
		t.Fatalf("expected one prediction market record, got %d", len(item.PredictionMarkets))
	}
	if item.PredictionMarkets[0].Platforms[0] != "Polymarket" {
		t.Fatalf("unexpected platforms %v", item.PredictionMarkets[0].Platforms)
	}
}

func TestStartProcessesInOrder(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, 0, 0)
	input := make(chan model.RawNewsItem, 10)
	output := make(chan model.NewsItem, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx, input, output)

	for i := 0; i < 3; i++ {
		input <- rawItem(fmt.Sprintf("https://example.com/ordered-%d", i))
	}
	close(input)

	for i := 0; i < 3; i++ {
		select {
		case item := <-output:
			want := fmt.Sprintf("https://example.com/ordered-%d", i)
			if item.URL != want {
				t.Fatalf("out of order: got %s, want %s", item.URL, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for item %d", i)
		}
	}
}
