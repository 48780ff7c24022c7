// Package intent implements the Intent DSL Matcher (C5): keyword + regex +
// optional fuzzy scoring against a registered set of intents, with an LRU
// cache over ranked match lists.
package intent

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
)

// EntitySpec describes one named-capture slot an intent can extract.
type EntitySpec struct {
	Type    string
	Default string
}

// Intent is immutable once registered.
type Intent struct {
	Name          string
	Domain        string
	Keywords      []string
	Patterns      []*regexp.Regexp
	EntitySpecs   map[string]EntitySpec
	MinConfidence float64

	order int // registration order, for stable tie-breaking
}

// Match is one scored hit against a query.
type Match struct {
	Intent     Intent
	Confidence float64
	Entities   map[string]string
}

// FuzzyConfig enables approximate keyword matching.
type FuzzyConfig struct {
	Enabled           bool
	KeywordThreshold  float64
	OverallThreshold  float64
}

// Matcher holds registered intents, an LRU result cache, and fuzzy config.
type Matcher struct {
	intents []Intent
	cache   *lru.Cache[string, []Match]
	fuzzy   FuzzyConfig
	next    int
}

// NewMatcher builds a Matcher with the given cache capacity and fuzzy config.
func NewMatcher(cacheCapacity int, fuzzy FuzzyConfig) (*Matcher, error) {
	if cacheCapacity <= 0 {
		cacheCapacity = 256
	}
	cache, err := lru.New[string, []Match](cacheCapacity)
	if err != nil {
		return nil, err
	}
	return &Matcher{cache: cache, fuzzy: fuzzy}, nil
}

// Register adds an intent, stamping it with the next registration order for
// stable tie-breaking.
func (m *Matcher) Register(in Intent) {
	in.order = m.next
	m.next++
	m.intents = append(m.intents, in)
}

// MatchIntent runs the §4.4 algorithm: LRU lookup, per-intent kw/re scoring,
// threshold filtering, entity extraction, descending sort with
// registration-order tie-break.
func (m *Matcher) MatchIntent(query string) []Match {
	key := strings.ToLower(query)
	if cached, ok := m.cache.Get(key); ok {
		return cached
	}

	var matches []Match
	for _, in := range m.intents {
		kwScore := m.keywordScore(in, key)
		reScore := patternScore(in, query)
		confidence := clip01(0.5*kwScore + 0.5*reScore)

		if confidence < in.MinConfidence {
			continue
		}
		if m.fuzzy.Enabled && confidence < m.fuzzy.OverallThreshold {
			continue
		}

		matches = append(matches, Match{
			Intent:     in,
			Confidence: confidence,
			Entities:   extractEntities(in, query),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Intent.order < matches[j].Intent.order
	})

	m.cache.Add(key, matches)
	return matches
}

// BestMatch returns the highest-ranked match, or false if none qualify.
func (m *Matcher) BestMatch(query string) (Match, bool) {
	matches := m.MatchIntent(query)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// keywordScore is the fraction of keywords present, exactly as a substring,
// or (when fuzzy is enabled and no exact hit) by best Levenshtein ratio.
func (m *Matcher) keywordScore(in Intent, lowerQuery string) float64 {
	if len(in.Keywords) == 0 {
		return 0
	}
	hits := 0.0
	for _, kw := range in.Keywords {
		lowerKw := strings.ToLower(kw)
		if strings.Contains(lowerQuery, lowerKw) {
			hits++
			continue
		}
		if m.fuzzy.Enabled && bestLevenshteinRatio(lowerQuery, lowerKw) >= m.fuzzy.KeywordThreshold {
			hits++
		}
	}
	return hits / float64(len(in.Keywords))
}

// bestLevenshteinRatio scores kw against every whitespace-delimited token in
// query, keeping the highest similarity ratio.
func bestLevenshteinRatio(query, kw string) float64 {
	best := 0.0
	for _, token := range strings.Fields(query) {
		if r := levenshtein.Match(token, kw, nil); r > best {
			best = r
		}
	}
	return best
}

func patternScore(in Intent, query string) float64 {
	if len(in.Patterns) == 0 {
		return 0
	}
	hits := 0
	for _, pat := range in.Patterns {
		if pat.MatchString(query) {
			hits++
		}
	}
	return float64(hits) / float64(len(in.Patterns))
}

// extractEntities pulls named captures from the first matching pattern,
// falling back to each slot's spec default when absent.
func extractEntities(in Intent, query string) map[string]string {
	entities := make(map[string]string, len(in.EntitySpecs))
	for slot, spec := range in.EntitySpecs {
		entities[slot] = spec.Default
	}

	for _, pat := range in.Patterns {
		m := pat.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		for i, name := range pat.SubexpNames() {
			if name == "" || i >= len(m) {
				continue
			}
			if _, ok := in.EntitySpecs[name]; ok && m[i] != "" {
				entities[name] = m[i]
			}
		}
		break
	}
	return entities
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
