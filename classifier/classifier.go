// Package classifier implements rule-based entity extraction for news text.
// No ML: regex plus fixed keyword tables covering the people, tickers and
// categories the pipeline cares about.
package classifier

import (
	"regexp"
	"sort"
	"strings"

	"news-stream-service/model"
)

// Result carries everything extracted from one piece of text.
type Result struct {
	People   []string
	Tickers  []string
	Tags     []string
	Keywords []string
	Markets  []model.PredictionMarket
	Category model.CategoryType
}

// Func is the classifier contract the processor consumes: pure text in,
// entities out. A failure is reported via the error, never a panic.
type Func func(text string) (Result, error)

var tickerPattern = regexp.MustCompile(`\$([A-Z]{1,10})\b`)
var bareTickerPattern = regexp.MustCompile(`\b([A-Z]{2,5})\b`)

var knownPeople = []string{
	// Politics
	"joe biden", "biden", "president biden",
	"donald trump", "trump", "president trump",
	"kamala harris", "barack obama", "obama",
	"nancy pelosi", "pelosi", "chuck schumer", "schumer",
	"mitch mcconnell", "mcconnell", "elizabeth warren",
	"bernie sanders", "ted cruz", "ron desantis", "desantis",
	"gavin newsom", "j.d. vance", "vance",
	"vladimir putin", "putin", "xi jinping", "kim jong un",
	"volodymyr zelenskyy", "benjamin netanyahu", "justin trudeau",
	// Tech
	"elon musk", "musk", "mark zuckerberg", "zuckerberg",
	"sam altman", "altman", "satya nadella", "sundar pichai",
	"tim cook", "jeff bezos", "bezos", "jensen huang",
	// Finance and crypto
	"jerome powell", "powell", "janet yellen", "yellen",
	"gary gensler", "gensler", "jamie dimon", "dimon",
	"larry fink", "warren buffett", "buffett",
	"michael saylor", "saylor", "balaji srinivasan", "balajis",
	"vitalik buterin", "vitalik", "cathie wood", "ray dalio",
}

var cryptoTickers = map[string]bool{
	"BTC": true, "ETH": true, "BNB": true, "XRP": true, "ADA": true,
	"DOGE": true, "SOL": true, "DOT": true, "MATIC": true, "SHIB": true,
	"TRX": true, "AVAX": true, "LTC": true, "LINK": true, "UNI": true,
	"ATOM": true, "XMR": true, "ETC": true, "XLM": true, "ALGO": true,
	"FIL": true, "NEAR": true, "AAVE": true, "APE": true, "MKR": true,
	"COMP": true, "GRT": true, "SAND": true, "MANA": true, "CRV": true,
	"LDO": true, "ARB": true, "OP": true, "SUI": true, "APT": true,
}

var stockTickers = map[string]bool{
	"AAPL": true, "MSFT": true, "GOOGL": true, "GOOG": true, "AMZN": true,
	"NVDA": true, "META": true, "TSLA": true, "BRK": true, "JPM": true,
	"V": true, "UNH": true, "XOM": true, "JNJ": true, "WMT": true,
	"MA": true, "PG": true, "HD": true, "CVX": true, "ABBV": true,
	"COIN": true, "MSTR": true, "HOOD": true, "SQ": true, "PYPL": true,
	"AMD": true, "INTC": true, "NFLX": true, "DIS": true, "BA": true,
	"GS": true, "MS": true, "BAC": true, "C": true, "WFC": true,
	"SPY": true, "QQQ": true, "GME": true, "AMC": true,
}

var tickerContextWords = []string{"stock", "shares", "ticker", "trading", "market"}

var categoryKeywords = map[model.CategoryType][]string{
	model.CategoryPolitics: {
		"election", "vote", "voting", "ballot", "poll", "candidate",
		"congress", "senate", "house", "senator", "president", "governor",
		"legislation", "bill", "law", "democrat", "republican", "campaign",
		"debate", "primary", "administration", "policy", "government",
		"impeachment", "rally", "convention", "caucus", "referendum", "midterm",
	},
	model.CategoryCrypto: {
		"bitcoin", "ethereum", "crypto", "cryptocurrency", "blockchain",
		"defi", "nft", "web3", "token", "altcoin", "wallet", "binance",
		"coinbase", "kraken", "mining", "fork", "airdrop", "whale",
		"hodl", "smart contract", "dapp", "dao", "stablecoin", "usdt",
		"usdc", "decentralized", "metamask", "cold storage",
	},
	model.CategoryEconomics: {
		"inflation", "recession", "gdp", "interest rate", "federal reserve",
		"fed", "economy", "economic", "stock", "bond", "treasury", "yield",
		"rate hike", "monetary policy", "fiscal", "stimulus", "unemployment",
		"jobs", "wages", "cpi", "growth", "debt", "deficit", "tax", "trade",
		"exports", "imports", "supply chain", "consumer", "retail",
	},
	model.CategorySports: {
		"nfl", "nba", "mlb", "nhl", "soccer", "football", "basketball",
		"baseball", "hockey", "tennis", "golf", "olympics", "world cup",
		"super bowl", "world series", "playoffs", "championship", "finals",
		"athlete", "coach", "tournament", "league", "season", "draft",
	},
}

// Classify extracts people, tickers, tags and a category from text. It
// satisfies Func and is the production classifier for the processor.
func Classify(text string) (Result, error) {
	res := Result{
		People:   ExtractPeople(text),
		Tickers:  ExtractTickers(text),
		Tags:     ExtractTags(text),
		Category: ClassifyCategory(text),
	}
	res.Keywords = extractCategoryKeywords(text)
	res.Markets = ExtractMarkets(text, res.Tickers, res.People)
	return res, nil
}

var marketPlatforms = []string{"Polymarket", "Kalshi", "PredictIt", "Manifold"}

// ExtractMarkets flags text that mentions a prediction-market platform,
// recording which platforms and the entities the item is about.
func ExtractMarkets(text string, tickers, people []string) []model.PredictionMarket {
	lower := strings.ToLower(text)

	var platforms []string
	for _, platform := range marketPlatforms {
		if strings.Contains(lower, strings.ToLower(platform)) {
			platforms = append(platforms, platform)
		}
	}
	if len(platforms) == 0 {
		return nil
	}

	entities := make([]string, 0, len(tickers)+len(people))
	entities = append(entities, tickers...)
	entities = append(entities, people...)

	return []model.PredictionMarket{{
		Type:      "prediction_market_related",
		Platforms: platforms,
		Entities:  entities,
	}}
}

// ExtractPeople returns title-cased names of known people mentioned in text.
func ExtractPeople(text string) []string {
	if text == "" {
		return nil
	}

	normalized := strings.ToLower(text)
	seen := make(map[string]bool)
	var people []string

	for _, person := range knownPeople {
		if strings.Contains(normalized, person) {
			name := titleCase(person)
			if !seen[name] {
				seen[name] = true
				people = append(people, name)
			}
		}
	}

	sort.Strings(people)
	return people
}

// ExtractTickers finds $-prefixed symbols plus bare symbols that appear in a
// market context, restricted to the known crypto and stock tables.
func ExtractTickers(text string) []string {
	if text == "" {
		return nil
	}

	found := make(map[string]bool)

	for _, match := range tickerPattern.FindAllStringSubmatch(text, -1) {
		ticker := strings.ToUpper(match[1])
		if cryptoTickers[ticker] || stockTickers[ticker] {
			found[ticker] = true
		}
	}

	// Bare symbols are ambiguous with ordinary acronyms, so they only count
	// when the surrounding text talks about markets.
	lower := strings.ToLower(text)
	hasContext := false
	for _, kw := range tickerContextWords {
		if strings.Contains(lower, kw) {
			hasContext = true
			break
		}
	}
	if hasContext {
		for _, match := range bareTickerPattern.FindAllStringSubmatch(text, -1) {
			ticker := match[1]
			if cryptoTickers[ticker] || stockTickers[ticker] {
				found[ticker] = true
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	tickers := make([]string, 0, len(found))
	for t := range found {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// ClassifyCategory picks the category whose keyword table matches most often;
// ties go to the first-counted category and zero matches mean "other".
func ClassifyCategory(text string) model.CategoryType {
	if text == "" {
		return model.CategoryOther
	}

	normalized := strings.ToLower(text)
	best := model.CategoryOther
	bestScore := 0

	for _, category := range []model.CategoryType{
		model.CategoryPolitics,
		model.CategoryCrypto,
		model.CategoryEconomics,
		model.CategorySports,
	} {
		score := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(normalized, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = category
		}
	}

	return best
}

// ExtractTags marks editorial signal words: breaking, update, exclusive,
// analysis.
func ExtractTags(text string) []string {
	lower := strings.ToLower(text)
	var tags []string

	if strings.Contains(lower, "breaking") || strings.Contains(lower, "urgent") {
		tags = append(tags, "breaking")
	}
	if strings.Contains(lower, "update") {
		tags = append(tags, "update")
	}
	if strings.Contains(lower, "exclusive") {
		tags = append(tags, "exclusive")
	}
	if strings.Contains(lower, "analysis") || strings.Contains(lower, "opinion") {
		tags = append(tags, "analysis")
	}

	return tags
}

func extractCategoryKeywords(text string) []string {
	normalized := strings.ToLower(text)
	seen := make(map[string]bool)
	var keywords []string

	for _, kws := range categoryKeywords {
		for _, kw := range kws {
			if strings.Contains(normalized, kw) && !seen[kw] {
				seen[kw] = true
				keywords = append(keywords, kw)
			}
		}
	}

	sort.Strings(keywords)
	if len(keywords) > 10 {
		keywords = keywords[:10]
	}
	return keywords
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
