package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
)

func newTestMatcher(entries ...data.KnowledgeEntry) *Matcher {
	return NewMatcher(entries, config.DefaultCatalog().StopWords)
}

func TestMatch_TwoOfThreeTokens(t *testing.T) {
	m := newTestMatcher(data.KnowledgeEntry{
		Question:       "Как подготовить пластик к сдаче?",
		Answer:         "Промойте и сомните.",
		ContextKeyword: "пластик",
	})
	// Content tokens: подготовить, пластик, сдаче.

	got := m.Match("подготовить пластик")
	assert.Equal(t, Match{Answer: "Промойте и сомните.", ContextKeyword: "пластик"}, got)

	assert.Equal(t, Match{}, m.Match("пластик"), "one shared token is not enough")
}

func TestMatch_RatioMustExceedThreshold(t *testing.T) {
	m := newTestMatcher(data.KnowledgeEntry{
		Question: "сортировка пластика бумаги стекла металла дома",
		Answer:   "long",
	})
	// 2 of 6 tokens: ratio 0.33.
	assert.Equal(t, Match{}, m.Match("сортировка пластика"))
}

func TestMatch_BestScoreWinsAndTiesKeepFirst(t *testing.T) {
	m := newTestMatcher(
		data.KnowledgeEntry{Question: "переработка стекла банки", Answer: "first"},
		data.KnowledgeEntry{Question: "переработка стекла бутылки", Answer: "second"},
		data.KnowledgeEntry{Question: "переработка стекла бутылки дома", Answer: "third"},
	)

	assert.Equal(t, "first", m.Match("переработка стекла").Answer)
	assert.Equal(t, "second", m.Match("переработка стекла бутылки").Answer)
	assert.Equal(t, "third", m.Match("переработка стекла бутылки дома").Answer)
}

func TestMatch_StopWordsAndPunctuationIgnored(t *testing.T) {
	m := newTestMatcher(data.KnowledgeEntry{Question: "Почему нельзя выбрасывать лампочки?", Answer: "ртуть"})

	assert.Equal(t, "ртуть", m.Match("а почему выбрасывать лампочки, если можно?").Answer)
	assert.Equal(t, Match{}, m.Match("и в на"))
	assert.Equal(t, Match{}, m.Match(""))
}

func TestNewMatcher_SkipsEmptyQuestions(t *testing.T) {
	m := newTestMatcher(data.KnowledgeEntry{Question: "и в", Answer: "x"})
	assert.Zero(t, m.Len())
}
