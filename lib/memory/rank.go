// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// BM25 parameters (Okapi variant, standard values).
const (
	rankK1      = 1.2
	rankB       = 0.75
	rankEpsilon = 0.25
)

// Field weights for the composite document built from one record.
// The key is the record's logical address and names the memory most
// precisely; tags are curated labels; tier text is bulk content.
const (
	weightKey  = 3
	weightTags = 2
	weightTier = 1
)

// tokenPattern splits text into alphanumeric runs.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// rankDoc is one candidate record's tokenized, weighted text.
type rankDoc struct {
	id     string
	terms  map[string]int
	length int
}

// rankHit is one ranked candidate.
type rankHit struct {
	id    string
	score float64
}

// rank scores candidates against the query and returns their ids,
// best first. Ties break on recency (updatedAt, newer first) and
// then id, so result order is stable across runs. Candidates that
// match no query token are dropped.
//
// The corpus here is the filtered candidate set of a single query,
// so the index is built per call rather than maintained across
// mutations. Memory corpora are small (hundreds of records) and
// filters shrink them further.
func rank(query string, docs []rankDoc, updatedAt func(id string) string) []rankHit {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	documentFrequency := make(map[string]int)
	var totalLength int
	for _, doc := range docs {
		totalLength += doc.length
		for term := range doc.terms {
			documentFrequency[term]++
		}
	}
	var averageLength float64
	if len(docs) > 0 {
		averageLength = float64(totalLength) / float64(len(docs))
	}

	// Terms appearing in every document get a small positive IDF
	// rather than zero so they still order results.
	idf := make(map[string]float64, len(documentFrequency))
	documentCount := float64(len(docs))
	for term, frequency := range documentFrequency {
		score := math.Log(1 + (documentCount-float64(frequency)+0.5)/(float64(frequency)+0.5))
		if score < 0 {
			score = rankEpsilon
		}
		idf[term] = score
	}

	var hits []rankHit
	for _, doc := range docs {
		var score float64
		documentLength := float64(doc.length)
		for _, token := range queryTokens {
			frequency := float64(doc.terms[token])
			if frequency == 0 {
				continue
			}
			numerator := frequency * (rankK1 + 1)
			denominator := frequency + rankK1*(1-rankB+rankB*documentLength/averageLength)
			score += idf[token] * numerator / denominator
		}
		if score > 0 {
			hits = append(hits, rankHit{id: doc.id, score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		ua, ub := updatedAt(hits[a].id), updatedAt(hits[b].id)
		if ua != ub {
			return ua > ub
		}
		return hits[a].id < hits[b].id
	})
	return hits
}

// newRankDoc tokenizes one record's searchable text into a weighted
// composite document. Weighting repeats a field's tokens, a simple
// alternative to per-field BM25 that works well for small corpora.
func newRankDoc(id, key string, tags []string, tierText []string) rankDoc {
	doc := rankDoc{id: id, terms: make(map[string]int)}
	add := func(text string, weight int) {
		for _, token := range tokenize(text) {
			doc.terms[token] += weight
			doc.length += weight
		}
	}
	add(key, weightKey)
	for _, tag := range tags {
		add(tag, weightTags)
	}
	for _, text := range tierText {
		add(text, weightTier)
	}
	return doc
}

// tokenize splits text into lowercase alphanumeric tokens, discarding
// single-character noise.
func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, match := range matches {
		if len(match) >= 2 {
			tokens = append(tokens, match)
		}
	}
	return tokens
}
