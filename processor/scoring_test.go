package processor

import (
	"fmt"
	"testing"
	"time"

	"news-stream-service/model"
)

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	now := time.Now()
	items := []*model.NewsItem{
		{Source: model.SourceRSS, Content: "nothing special", PublishedAt: 0},
		{
			Source:        model.SourceNitter,
			SourceAccount: "@ReutersBiz",
			Title:         "BREAKING",
			Content:       "breaking urgent alert",
			People:        []string{"Jerome Powell"},
			PublishedAt:   float64(now.Unix()),
		},
		{Source: model.SourceRSS, Content: "", PublishedAt: float64(now.Add(100 * time.Hour).Unix())},
	}

	for i, item := range items {
		for _, w := range []Weights{ImpactWeights, RelevanceWeights} {
			score := Score(item, w, now)
			if score < 0 || score > 100 {
				t.Fatalf("item %d: score %f out of [0,100]", i, score)
			}
		}
	}
}

func TestScoreHighSignalItem(t *testing.T) {
	t.Parallel()

	// High-authority source, top-importance person, max urgency keyword,
	// published just now: every sub-score is at its ceiling.
	now := time.Now()
	item := &model.NewsItem{
		Source:        model.SourceRSS,
		SourceAccount: "Reuters",
		Title:         "Breaking",
		Content:       "Breaking: Jerome Powell announces emergency rate decision",
		People:        []string{"Jerome Powell"},
		PublishedAt:   float64(now.Unix()),
	}

	score := Score(item, ImpactWeights, now)
	if score < 90 {
		t.Fatalf("expected near-maximum impact score, got %f", score)
	}
}

func TestScoreDefaultsToMidValues(t *testing.T) {
	t.Parallel()

	// Unknown source, no people, no urgency keywords: three sub-scores
	// default to 5, recency contributes 10 for a fresh item.
	now := time.Now()
	item := &model.NewsItem{
		Source:        model.SourceRSS,
		SourceAccount: "Some Obscure Blog",
		Content:       "a quiet day in the markets of nowhere",
		PublishedAt:   float64(now.Unix()),
	}

	got := Score(item, ImpactWeights, now)
	want := 10 * (0.2*5 + 0.3*5 + 0.3*5 + 0.2*10)
	if diff := got - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("expected score %f, got %f", want, got)
	}
}

func TestScoreRecencySteps(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{30 * time.Minute, 10},
		{3 * time.Hour, 8},
		{12 * time.Hour, 5},
		{36 * time.Hour, 3},
		{80 * time.Hour, 1},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("age=%v", tc.age), func(t *testing.T) {
			t.Parallel()
			item := &model.NewsItem{PublishedAt: float64(now.Add(-tc.age).Unix())}
			got := scoreRecency(item, now)
			if got != tc.want {
				t.Fatalf("recency for age %v = %f, want %f", tc.age, got, tc.want)
			}
		})
	}
}
