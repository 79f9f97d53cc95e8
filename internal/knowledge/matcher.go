// Package knowledge answers questions from the curated knowledge base by
// token overlap.
package knowledge

import (
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

const (
	minScore = 2
	minRatio = 0.6
)

// Match is a knowledge base hit.
type Match struct {
	Answer         string
	ContextKeyword string
}

type entry struct {
	tokens map[string]struct{}
	data.KnowledgeEntry
}

// Matcher holds the pre-tokenized knowledge base.
type Matcher struct {
	entries []entry
	stop    map[string]struct{}
}

// NewMatcher tokenizes every entry once.
func NewMatcher(entries []data.KnowledgeEntry, stopWords []string) *Matcher {
	m := &Matcher{stop: make(map[string]struct{}, len(stopWords))}
	for _, w := range stopWords {
		m.stop[w] = struct{}{}
	}
	for _, e := range entries {
		tokens := m.tokenize(e.Question)
		if len(tokens) == 0 {
			continue
		}
		m.entries = append(m.entries, entry{tokens: tokens, KnowledgeEntry: e})
	}
	return m
}

// Match returns the best entry for question. The zero Match means no entry
// shares at least two content tokens covering more than 60% of its question.
// Ties keep the first entry.
func (m *Matcher) Match(question string) Match {
	user := m.tokenize(question)
	if len(user) == 0 {
		return Match{}
	}

	var (
		best      *entry
		bestScore int
	)
	for i := range m.entries {
		e := &m.entries[i]
		score := 0
		for t := range user {
			if _, ok := e.tokens[t]; ok {
				score++
			}
		}
		ratio := float64(score) / float64(len(e.tokens))
		if score >= minScore && ratio > minRatio && score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return Match{}
	}
	return Match{Answer: best.Answer, ContextKeyword: best.ContextKeyword}
}

// Len returns the number of usable entries.
func (m *Matcher) Len() int {
	return len(m.entries)
}

func (m *Matcher) tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(stringutil.Clean(s)) {
		if _, stop := m.stop[w]; !stop {
			out[w] = struct{}{}
		}
	}
	return out
}
