// model/newsitem.go
package model

// SourceType identifies where a raw item was produced.
type SourceType string

const (
	SourceNitter SourceType = "nitter"
	SourceRSS    SourceType = "rss"
)

// CategoryType is the coarse topical classification of an item.
type CategoryType string

const (
	CategoryPolitics  CategoryType = "politics"
	CategoryCrypto    CategoryType = "crypto"
	CategoryEconomics CategoryType = "economics"
	CategorySports    CategoryType = "sports"
	CategoryOther     CategoryType = "other"
)

// RawNewsItem is what producers (scraper, RSS fetcher, NATS bridge) hand to
// the ingestion queue. published_at stays a string here because each producer
// has its own date format; the processor parses it.
type RawNewsItem struct {
	Source        SourceType `json:"source"`
	SourceAccount string     `json:"source_account,omitempty"`
	Title         string     `json:"title,omitempty"`
	Content       string     `json:"content"`
	URL           string     `json:"url"`
	PublishedAt   string     `json:"published_at"`
}

// PredictionMarket records a mention of prediction-market platforms together
// with the entities the item is about.
type PredictionMarket struct {
	Type      string   `json:"type" bson:"type"`
	Platforms []string `json:"platforms" bson:"platforms"`
	Entities  []string `json:"entities" bson:"entities"`
}

// NewsItem is a processed item. Immutable once the processor emits it; there
// is at most one NewsItem per normalized URL.
type NewsItem struct {
	ID            string     `json:"id" bson:"_id"`
	Source        SourceType `json:"source" bson:"source"`
	SourceAccount string     `json:"source_account,omitempty" bson:"sourceAccount,omitempty"`
	Title         string     `json:"title,omitempty" bson:"title,omitempty"`
	Content       string     `json:"content" bson:"content"`
	URL           string     `json:"url" bson:"url"`
	NormalizedURL string     `json:"-" bson:"normalizedUrl"`
	PublishedAt   float64    `json:"published_at" bson:"publishedAt"`

	ImpactScore       float64            `json:"impact_score" bson:"impactScore"`
	RelevanceScore    float64            `json:"relevance_score" bson:"relevanceScore"`
	Tickers           []string           `json:"tickers" bson:"tickers"`
	People            []string           `json:"people" bson:"people"`
	Tags              []string           `json:"tags" bson:"tags"`
	PredictionMarkets []PredictionMarket `json:"prediction_markets" bson:"predictionMarkets"`
	Category          CategoryType       `json:"category" bson:"category"`
	IsHighSignal      bool               `json:"is_high_signal" bson:"isHighSignal"`
}

// Subscription holds a user's filter criteria. A missing subscription record
// means "receive everything"; empty sets mean the corresponding rule is off.
// ImpactThreshold is a pointer so an explicit 0 (deliver everything) stays
// distinct from an absent key (default threshold).
type Subscription struct {
	UserID          string   `json:"user_id" bson:"_id"`
	NitterAccounts  []string `json:"nitter_accounts" bson:"nitterAccounts"`
	RSSFeeds        []string `json:"rss_feeds" bson:"rssFeeds"`
	Categories      []string `json:"categories" bson:"categories"`
	Keywords        []string `json:"keywords" bson:"keywords"`
	ImpactThreshold *int     `json:"impact_threshold,omitempty" bson:"impactThreshold,omitempty"`
	AlertChannels   []string `json:"alert_channels" bson:"alertChannels"`
	CreatedAt       float64  `json:"created_at,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt       float64  `json:"updated_at,omitempty" bson:"updatedAt,omitempty"`
}

// DefaultImpactThreshold applies when a subscription does not set one.
const DefaultImpactThreshold = 70

// HighSignalThreshold marks items worth flagging as high signal.
const HighSignalThreshold = 70.0
