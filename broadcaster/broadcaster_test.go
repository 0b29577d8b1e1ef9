package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"news-stream-service/model"
	"news-stream-service/registry"
)

type stubSubs struct {
	subs map[string]*model.Subscription
	err  error
}

func (s *stubSubs) Subscription(_ context.Context, userID string) (*model.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.subs[userID], nil
}

func threshold(v int) *int {
	return &v
}

func item(score float64) *model.NewsItem {
	return &model.NewsItem{
		ID:            "rss_deadbeef",
		Source:        model.SourceRSS,
		SourceAccount: "https://feeds.reuters.com/reuters/topNews",
		Title:         "Fed holds rates steady",
		Content:       "The federal reserve left its benchmark rate unchanged",
		Category:      model.CategoryEconomics,
		Tickers:       []string{"SPY"},
		ImpactScore:   score,
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item *model.NewsItem
		sub  *model.Subscription
		want bool
	}{
		{
			name: "nil subscription matches everything",
			item: item(1),
			sub:  nil,
			want: true,
		},
		{
			name: "absent threshold means default threshold",
			item: item(50),
			sub:  &model.Subscription{},
			want: false,
		},
		{
			name: "at default threshold passes",
			item: item(70),
			sub:  &model.Subscription{},
			want: true,
		},
		{
			name: "explicit zero threshold lets everything through",
			item: item(5),
			sub:  &model.Subscription{ImpactThreshold: threshold(0)},
			want: true,
		},
		{
			name: "explicit low threshold",
			item: item(30),
			sub:  &model.Subscription{ImpactThreshold: threshold(20)},
			want: true,
		},
		{
			name: "category filter case insensitive",
			item: item(90),
			sub:  &model.Subscription{Categories: []string{"ECONOMICS"}},
			want: true,
		},
		{
			name: "category filter rejects mismatch",
			item: item(90),
			sub:  &model.Subscription{Categories: []string{"sports"}},
			want: false,
		},
		{
			name: "rss feed substring match",
			item: item(90),
			sub:  &model.Subscription{RSSFeeds: []string{"reuters"}},
			want: true,
		},
		{
			name: "rss feed filter rejects other feeds",
			item: item(90),
			sub:  &model.Subscription{RSSFeeds: []string{"bloomberg"}},
			want: false,
		},
		{
			name: "rss feed filter ignores nitter accounts rule",
			item: item(90),
			sub:  &model.Subscription{NitterAccounts: []string{"elonmusk"}},
			want: true,
		},
		{
			name: "keyword matches content",
			item: item(90),
			sub:  &model.Subscription{Keywords: []string{"benchmark"}},
			want: true,
		},
		{
			name: "keyword matches ticker symbol",
			item: item(90),
			sub:  &model.Subscription{Keywords: []string{"spy"}},
			want: true,
		},
		{
			name: "keyword filter rejects unrelated terms",
			item: item(90),
			sub:  &model.Subscription{Keywords: []string{"bitcoin"}},
			want: false,
		},
		{
			name: "all rules must pass",
			item: item(90),
			sub: &model.Subscription{
				ImpactThreshold: threshold(50),
				Categories:      []string{"economics"},
				Keywords:        []string{"unrelated"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Matches(tt.item, tt.sub); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesNitterAccountStripsAt(t *testing.T) {
	t.Parallel()

	tweet := &model.NewsItem{
		Source:        model.SourceNitter,
		SourceAccount: "@elonmusk",
		Title:         "post",
		Content:       "content",
		ImpactScore:   95,
	}

	sub := &model.Subscription{NitterAccounts: []string{"@ElonMusk"}}
	if !Matches(tweet, sub) {
		t.Fatal("expected @-prefixed account filter to match")
	}

	sub = &model.Subscription{NitterAccounts: []string{"whalealert"}}
	if Matches(tweet, sub) {
		t.Fatal("expected mismatched account filter to reject")
	}
}

func TestDispatchDeliversToMatchingConnections(t *testing.T) {
	t.Parallel()

	reg := registry.New(time.Minute, time.Minute)
	matching := reg.Register("matching")
	filtered := reg.Register("filtered")

	subs := &stubSubs{subs: map[string]*model.Subscription{
		"filtered": {Categories: []string{"sports"}},
	}}

	b := New(reg, subs, time.Second)
	b.Dispatch(context.Background(), item(90))

	select {
	case env := <-matching.Outbox():
		if env.Type != model.MessageNewsItem {
			t.Fatalf("unexpected envelope type %q", env.Type)
		}
		if env.Data == nil || env.Data.ID != "rss_deadbeef" {
			t.Fatalf("unexpected payload: %+v", env.Data)
		}
	default:
		t.Fatal("matching connection received nothing")
	}

	select {
	case env := <-filtered.Outbox():
		t.Fatalf("filtered connection should receive nothing, got %+v", env)
	default:
	}
}

func TestDispatchLookupFailureFallsBackToMatchAll(t *testing.T) {
	t.Parallel()

	reg := registry.New(time.Minute, time.Minute)
	conn := reg.Register("grace")

	b := New(reg, &stubSubs{err: errors.New("store down")}, time.Second)
	b.Dispatch(context.Background(), item(90))

	select {
	case <-conn.Outbox():
	default:
		t.Fatal("lookup failure should deliver rather than silence the user")
	}
}

type slowSubs struct {
	delay time.Duration
}

func (s *slowSubs) Subscription(ctx context.Context, _ string) (*model.Subscription, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return nil, nil
}

func TestDispatchLookupsRunConcurrently(t *testing.T) {
	t.Parallel()

	reg := registry.New(time.Minute, time.Minute)
	const conns = 8
	for i := 0; i < conns; i++ {
		reg.Register(fmt.Sprintf("user-%d", i))
	}

	// Sequential lookups would take conns*delay; concurrent ones roughly
	// one delay.
	delay := 200 * time.Millisecond
	b := New(reg, &slowSubs{delay: delay}, time.Second)

	start := time.Now()
	b.Dispatch(context.Background(), item(90))
	elapsed := time.Since(start)

	if elapsed > time.Duration(conns)*delay/2 {
		t.Fatalf("dispatch took %v, lookups appear to run sequentially", elapsed)
	}

	for _, conn := range reg.Active() {
		if len(conn.Outbox()) != 1 {
			t.Fatalf("user %s expected one delivery, got %d", conn.UserID, len(conn.Outbox()))
		}
	}
}

func TestDispatchIsolatesFailedConnections(t *testing.T) {
	t.Parallel()

	reg := registry.New(time.Minute, time.Minute)
	stuck := reg.Register("stuck")
	healthy := reg.Register("healthy")

	// Jam the stuck connection's outbox so its delivery times out.
	for {
		if err := stuck.Deliver(model.PongEnvelope(), time.Millisecond); err != nil {
			break
		}
	}

	b := New(reg, nil, 20*time.Millisecond)
	b.Dispatch(context.Background(), item(90))

	select {
	case env := <-healthy.Outbox():
		if env.Type != model.MessageNewsItem {
			t.Fatalf("unexpected envelope type %q", env.Type)
		}
	default:
		t.Fatal("healthy connection must be unaffected by the stuck one")
	}

	select {
	case <-stuck.Done():
	case <-time.After(time.Second):
		t.Fatal("stuck connection should be evicted after a send timeout")
	}
	if reg.Count() != 1 {
		t.Fatalf("expected only the healthy connection, count=%d", reg.Count())
	}
}

func TestDispatchPreservesPerSubscriberOrder(t *testing.T) {
	t.Parallel()

	reg := registry.New(time.Minute, time.Minute)
	conn := reg.Register("henry")

	b := New(reg, nil, time.Second)
	first := item(90)
	first.ID = "rss_first"
	second := item(95)
	second.ID = "rss_second"

	b.Dispatch(context.Background(), first)
	b.Dispatch(context.Background(), second)

	got := []string{}
	for i := 0; i < 2; i++ {
		select {
		case env := <-conn.Outbox():
			got = append(got, env.Data.ID)
		default:
			t.Fatalf("expected two envelopes, got %d", i)
		}
	}
	if got[0] != "rss_first" || got[1] != "rss_second" {
		t.Fatalf("deliveries out of order: %v", got)
	}
}

func TestStartDrainsBufferedItemsOnShutdown(t *testing.T) {
	t.Parallel()

	reg := registry.New(time.Minute, time.Minute)
	conn := reg.Register("iris")

	input := make(chan model.NewsItem, 4)
	input <- *item(90)
	input <- *item(91)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(reg, nil, time.Second)
	done := make(chan struct{})
	go func() {
		b.Start(ctx, input)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop after cancellation")
	}

	if len(conn.Outbox()) != 2 {
		t.Fatalf("expected buffered items drained to subscriber, got %d", len(conn.Outbox()))
	}
}
