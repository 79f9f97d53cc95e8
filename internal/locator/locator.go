// Package locator finds recycling points that accept a material in a city.
package locator

import (
	"regexp"
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/sliceutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

// Locator searches the points dataset.
type Locator struct {
	points   []data.RecyclingPoint
	synonyms []config.SynonymGroup
}

// New creates a locator over points using the catalog synonym groups.
func New(points []data.RecyclingPoint, synonyms []config.SynonymGroup) *Locator {
	return &Locator{points: points, synonyms: synonyms}
}

// Len returns the dataset size.
func (l *Locator) Len() int {
	return len(l.points)
}

// SearchTerms returns the terms of the first synonym group with a term
// occurring in material, or the material itself.
func (l *Locator) SearchTerms(material string) []string {
	material = stringutil.Normalize(material)
	for _, g := range l.synonyms {
		for _, term := range g.Terms {
			if strings.Contains(material, term) {
				return g.Terms
			}
		}
	}
	return []string{material}
}

// Find returns the deduplicated points in city accepting material, in
// dataset order, together with the search terms used.
func (l *Locator) Find(material, city string) ([]data.RecyclingPoint, []string) {
	material = strings.TrimSpace(material)
	city = stringutil.Normalize(city)
	if material == "" || city == "" || len(l.points) == 0 {
		return nil, nil
	}

	terms := l.SearchTerms(material)
	pattern := compileTerms(terms)

	var out []data.RecyclingPoint
	for _, p := range l.points {
		if stringutil.Normalize(p.City) != city || p.Accepts == "" {
			continue
		}
		if pattern.MatchString(p.Accepts) {
			out = append(out, p)
		}
	}
	out = sliceutil.Deduplicate(out, func(p data.RecyclingPoint) string {
		return strings.ToLower(p.Name + ":" + p.Address)
	})
	return out, terms
}

// FilterDistrict keeps the points whose address mentions district. When none
// do, or district is empty, points is returned unchanged.
func FilterDistrict(points []data.RecyclingPoint, district string) []data.RecyclingPoint {
	district = stringutil.Normalize(district)
	if district == "" {
		return points
	}
	var in []data.RecyclingPoint
	for _, p := range points {
		if strings.Contains(strings.ToLower(p.Address), district) {
			in = append(in, p)
		}
	}
	if len(in) == 0 {
		return points
	}
	return in
}

// Page returns the window of size items at page. A page past the end wraps
// to page 0, reported by wrapped.
func Page[T any](items []T, page, size int) (window []T, current int, wrapped bool) {
	if size <= 0 || len(items) == 0 {
		return nil, 0, page != 0
	}
	start := page * size
	if page < 0 || start >= len(items) {
		page, start, wrapped = 0, 0, true
	}
	end := min(start+size, len(items))
	return items[start:end], page, wrapped
}

// HasMore reports whether a page after page exists.
func HasMore(total, page, size int) bool {
	return size > 0 && (page+1)*size < total
}

func compileTerms(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}
