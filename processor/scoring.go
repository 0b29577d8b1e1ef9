package processor

import (
	"strings"
	"time"

	"news-stream-service/model"
)

// Weights is one scoring profile. The four sub-scores are each in [0,10];
// the weighted sum is scaled by 10 to land in [0,100].
type Weights struct {
	Source  float64
	Entity  float64
	Keyword float64
	Recency float64
}

// ImpactWeights is the default impact profile.
var ImpactWeights = Weights{Source: 0.2, Entity: 0.3, Keyword: 0.3, Recency: 0.2}

// RelevanceWeights leans harder on entities and keywords, the topical part
// of the score.
var RelevanceWeights = Weights{Source: 0.15, Entity: 0.35, Keyword: 0.35, Recency: 0.15}

var sourceAuthorityScores = map[string]float64{
	"reuters":             10,
	"ap":                  10,
	"associated press":    10,
	"wsj":                 8,
	"wall street journal": 8,
	"bloomberg":           8,
	"cnbc":                6,
	"nitter":              5,
	"twitter":             5,
	"x.com":               5,
}

var entityImportanceScores = map[string]float64{
	"fed chair":         10,
	"fed chairman":      10,
	"jerome powell":     10,
	"joe biden":         10,
	"president biden":   10,
	"donald trump":      10,
	"president trump":   10,
	"elon musk":         8,
	"michael saylor":    8,
	"balaji srinivasan": 8,
	"vitalik buterin":   8,
	"gary gensler":      8,
	"jamie dimon":       8,
	"larry fink":        8,
	"warren buffett":    8,
	"janet yellen":      8,
}

var keywordRelevanceScores = map[string]float64{
	"breaking":     10,
	"urgent":       10,
	"alert":        10,
	"major":        8,
	"significant":  8,
	"important":    8,
	"update":       8,
	"exclusive":    8,
	"report":       5,
	"news":         5,
	"announcement": 5,
}

const defaultSubScore = 5.0

// Score computes the weighted rule-based score for an item under the given
// profile. The result is clamped to [0,100].
func Score(item *model.NewsItem, w Weights, now time.Time) float64 {
	score := 10 * (w.Source*scoreSource(item) +
		w.Entity*scoreEntities(item) +
		w.Keyword*scoreKeywords(item) +
		w.Recency*scoreRecency(item, now))

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// scoreSource looks the originating source and account up in the authority
// table; unknown sources sit in the middle of the range.
func scoreSource(item *model.NewsItem) float64 {
	sourceLower := strings.ToLower(string(item.Source))
	accountLower := strings.ToLower(item.SourceAccount)

	for source, score := range sourceAuthorityScores {
		if strings.Contains(sourceLower, source) || strings.Contains(accountLower, source) {
			return score
		}
	}

	return defaultSubScore
}

// scoreEntities takes the maximum importance over all extracted people.
func scoreEntities(item *model.NewsItem) float64 {
	if len(item.People) == 0 {
		return defaultSubScore
	}

	maxScore := 0.0
	for _, person := range item.People {
		personLower := strings.ToLower(person)
		for entity, score := range entityImportanceScores {
			if strings.Contains(personLower, entity) && score > maxScore {
				maxScore = score
			}
		}
	}

	if maxScore == 0 {
		return defaultSubScore
	}
	return maxScore
}

// scoreKeywords takes the maximum urgency-keyword score over title+content.
func scoreKeywords(item *model.NewsItem) float64 {
	text := strings.ToLower(item.Title + " " + item.Content)

	maxScore := 0.0
	for keyword, score := range keywordRelevanceScores {
		if strings.Contains(text, keyword) && score > maxScore {
			maxScore = score
		}
	}

	if maxScore == 0 {
		return defaultSubScore
	}
	return maxScore
}

// scoreRecency is a step function of item age.
func scoreRecency(item *model.NewsItem, now time.Time) float64 {
	ageHours := (float64(now.Unix()) - item.PublishedAt) / 3600

	switch {
	case ageHours < 1:
		return 10
	case ageHours < 6:
		return 8
	case ageHours < 24:
		return 5
	case ageHours < 48:
		return 3
	default:
		return 1
	}
}
