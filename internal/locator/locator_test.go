package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
)

var testPoints = []data.RecyclingPoint{
	{Name: "Эко-Точка", City: "Курган", Address: "ул. Ленина 1", Accepts: "Батарейки, лампочки"},
	{Name: "Вторма", City: "Курган", Address: "ул. Гоголя 5", Accepts: "макулатура, ПЭТ-бутылки"},
	{Name: "вторма", City: "курган", Address: "УЛ. ГОГОЛЯ 5", Accepts: "пластик"},
	{Name: "Пластик+", City: "Курган", Address: "Заозерный, 12", Accepts: "пластик, крышки"},
	{Name: "Стеклотара", City: "Шадринск", Address: "ул. Мира 3", Accepts: "стекло, пластик"},
	{Name: "Пусто", City: "Курган", Address: "ул. Пустая", Accepts: ""},
}

func newTestLocator() *Locator {
	return New(testPoints, config.DefaultCatalog().Synonyms)
}

func TestFind(t *testing.T) {
	l := newTestLocator()

	points, terms := l.Find("батарейки", "курган")
	require.Len(t, points, 1)
	assert.Equal(t, "Эко-Точка", points[0].Name)
	assert.Equal(t, []string{"батарейк", "аккумулятор"}, terms)
}

func TestFind_DedupesByNameAndAddress(t *testing.T) {
	l := newTestLocator()

	points, _ := l.Find("пластик", "Курган")
	require.Len(t, points, 2)
	assert.Equal(t, "Вторма", points[0].Name, "first seen wins")
	assert.Equal(t, "Пластик+", points[1].Name)
}

func TestFind_SynonymGroupIsOrderIndependent(t *testing.T) {
	l := newTestLocator()

	plastic, plasticTerms := l.Find("пластик", "курган")
	bottles, bottleTerms := l.Find("бутылки", "курган")
	assert.Equal(t, plasticTerms, bottleTerms)
	assert.Equal(t, plastic, bottles)
}

func TestFind_RawMaterialFallback(t *testing.T) {
	l := newTestLocator()

	points, terms := l.Find("макулатура", "курган")
	// "макулатур" belongs to the paper group.
	assert.Equal(t, []string{"бумаг", "макулатур", "картон", "книг"}, terms)
	require.Len(t, points, 1)

	points, terms = l.Find("крышки", "курган")
	assert.Equal(t, []string{"крышк"}, terms)
	require.Len(t, points, 1)

	points, terms = l.Find("ламп", "курган")
	assert.Equal(t, []string{"ламп"}, terms, "unknown material is its own term")
	require.Len(t, points, 1)
}

func TestFind_EmptyInputs(t *testing.T) {
	l := newTestLocator()

	points, terms := l.Find("", "курган")
	assert.Nil(t, points)
	assert.Nil(t, terms)

	points, _ = l.Find("пластик", "")
	assert.Nil(t, points)

	points, _ = New(nil, nil).Find("пластик", "курган")
	assert.Nil(t, points)
}

func TestFind_RegexpMetacharactersAreLiteral(t *testing.T) {
	l := New([]data.RecyclingPoint{{Name: "x", City: "курган", Address: "a", Accepts: "a.b"}}, nil)
	points, _ := l.Find("a+b", "курган")
	assert.Empty(t, points)
}

func TestFilterDistrict(t *testing.T) {
	all := testPoints[:4]

	assert.Len(t, FilterDistrict(all, "заозерный"), 1)
	assert.Equal(t, all, FilterDistrict(all, "центральный"), "no match keeps the full list")
	assert.Equal(t, all, FilterDistrict(all, ""))
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	w, p, wrapped := Page(items, 0, 3)
	assert.Equal(t, []int{1, 2, 3}, w)
	assert.Equal(t, 0, p)
	assert.False(t, wrapped)

	w, p, _ = Page(items, 2, 3)
	assert.Equal(t, []int{7}, w)
	assert.Equal(t, 2, p)

	w, p, wrapped = Page(items, 3, 3)
	assert.Equal(t, []int{1, 2, 3}, w, "past the end cycles to page 0")
	assert.Equal(t, 0, p)
	assert.True(t, wrapped)

	assert.True(t, HasMore(len(items), 1, 3))
	assert.False(t, HasMore(len(items), 2, 3))
	assert.False(t, HasMore(3, 0, 3))
}
