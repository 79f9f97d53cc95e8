// Package extract pulls the material, city and district out of free text.
package extract

import (
	"slices"
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

// Entities is the extraction result. Empty strings mean "none".
type Entities struct {
	Material string
	City     string
	District string
}

type alias struct {
	form string
	city *config.City
}

// Extractor resolves entities using the catalog vocabularies.
type Extractor struct {
	aliases  []alias
	triggers []string
	junk     map[string]bool
	cutoff   int
}

// New builds an extractor from the catalog.
func New(cat *config.Catalog) *Extractor {
	e := &Extractor{
		junk:   make(map[string]bool, len(cat.JunkWords)),
		cutoff: cat.Tuning.FuzzyCutoff,
	}
	for i := range cat.Cities {
		c := &cat.Cities[i]
		for _, a := range c.Aliases {
			e.aliases = append(e.aliases, alias{form: stringutil.Normalize(a), city: c})
		}
	}
	// Longest trigger first so "куда сдать" goes before "куда".
	e.triggers = slices.Clone(cat.SearchTriggers)
	slices.SortStableFunc(e.triggers, func(a, b string) int {
		return len(b) - len(a)
	})
	for _, w := range cat.JunkWords {
		e.junk[w] = true
	}
	return e
}

// Extract returns the entities found in text.
func (e *Extractor) Extract(text string) Entities {
	clean := stringutil.Clean(text)
	var out Entities

	if city := e.matchCity(clean); city != nil {
		out.City = city.Name
		out.District = matchDistrict(clean, city)
		clean = e.removeCity(clean, city)
		if out.District != "" {
			clean = strings.ReplaceAll(clean, out.District, " ")
		}
	}

	for _, t := range e.triggers {
		clean = strings.ReplaceAll(clean, t, " ")
	}

	words := strings.Fields(clean)
	for len(words) > 0 && e.junk[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && e.junk[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	out.Material = strings.Join(words, " ")
	return out
}

// matchCity returns the city of the best scoring alias at or above the cutoff.
// Ties keep the first alias in catalog order.
func (e *Extractor) matchCity(text string) *config.City {
	if text == "" {
		return nil
	}
	var (
		best  *config.City
		score = -1
	)
	for _, a := range e.aliases {
		if s := PartialRatio(text, a.form); s > score {
			best, score = a.city, s
		}
	}
	if score < e.cutoff {
		return nil
	}
	return best
}

// removeCity drops every word that is, contains, or fuzzily matches an alias
// of city.
func (e *Extractor) removeCity(text string, city *config.City) string {
	var forms []string
	for _, a := range e.aliases {
		if a.city == city {
			forms = append(forms, a.form)
		}
	}
	for _, f := range forms {
		if strings.Contains(f, " ") {
			text = strings.ReplaceAll(text, f, " ")
		}
	}

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if !e.isAliasWord(w, forms) {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func (e *Extractor) isAliasWord(w string, forms []string) bool {
	for _, f := range forms {
		if strings.Contains(w, f) || Ratio(w, f) >= e.cutoff {
			return true
		}
	}
	return false
}

// matchDistrict returns the first configured district of city mentioned in text.
func matchDistrict(text string, city *config.City) string {
	for _, d := range city.Districts {
		if d = stringutil.Normalize(d); d != "" && strings.Contains(text, d) {
			return d
		}
	}
	return ""
}
