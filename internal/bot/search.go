package bot

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/locator"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

// search looks material up in city and stores the result for paging.
// explicit selects the wording of a search the user spelled out.
func (r *Router) search(userID, material, city, district string, explicit bool) []lineutil.Reply {
	points, _ := r.locator.Find(material, city)
	points = locator.FilterDistrict(points, district)

	r.sessions.Update(userID, func(c *session.Context) {
		c.Results = points
		c.Page = 0
		c.City = city
		c.District = district
		c.PendingMaterial = ""
	})

	cityName := r.cityName(city)
	if len(points) == 0 {
		if fp, ok := r.cat.FallbackPoint(city); ok {
			return []lineutil.Reply{lineutil.Text(fallbackPointText(cityName, fp))}
		}
		if explicit {
			return []lineutil.Reply{lineutil.Text(notFoundText(material, cityName))}
		}
		return []lineutil.Reply{lineutil.Text(notFoundAnywhereText(material))}
	}

	size := r.cat.Tuning.PageSize
	window, _, _ := locator.Page(points, 0, size)
	lead := "Нашел пункты"
	if explicit {
		lead = "Вот что удалось найти"
	}
	reply := lineutil.Text(pointsText(r.searchHeader(lead, cityName, district, window), window))
	if len(points) > size {
		reply.Buttons = []lineutil.Button{lineutil.Postback(labelMore, postbackData(actionMore))}
	}
	return []lineutil.Reply{reply}
}

// more shows the next page of the stored result, wrapping to the first one.
func (r *Router) more(userID string) []lineutil.Reply {
	sess, ok := r.sessions.Get(userID)
	if !ok || !sess.HasResults() {
		r.record(stageStale)
		return []lineutil.Reply{lineutil.Text(textStale)}
	}

	size := r.cat.Tuning.PageSize
	window, page, wrapped := locator.Page(sess.Results, sess.Page+1, size)
	r.sessions.Update(userID, func(c *session.Context) {
		c.Page = page
	})

	var out []lineutil.Reply
	if wrapped {
		out = append(out, lineutil.Text(textWrapped))
	}
	reply := lineutil.Text(pointsText(r.searchHeader("Нашел пункты", r.cityName(sess.City), sess.District, window), window))
	if len(sess.Results) > size {
		reply.Buttons = []lineutil.Button{lineutil.Postback(labelMore, postbackData(actionMore))}
	}
	return append(out, reply)
}

// searchHeader names the district when one of the shown points lies in it.
func (r *Router) searchHeader(lead, cityName, district string, shown []data.RecyclingPoint) string {
	if district != "" {
		needle := stringutil.Normalize(district)
		for _, p := range shown {
			if strings.Contains(strings.ToLower(p.Address), needle) {
				return fmt.Sprintf("✅ %s в районе %s:", lead, stringutil.Capitalize(district))
			}
		}
	}
	return fmt.Sprintf("✅ %s в городе %s:", lead, cityName)
}

func (r *Router) cityName(city string) string {
	if c := r.cat.City(city); c != nil && c.Display != "" {
		return c.Display
	}
	return stringutil.Capitalize(city)
}

// infoRequest answers a question about the phone, site or address of a
// configured fallback point named in text.
func (r *Router) infoRequest(text string) (string, bool) {
	for _, city := range slices.Sorted(maps.Keys(r.cat.FallbackPoints)) {
		fp := r.cat.FallbackPoints[city]
		if fp.Name == "" || !strings.Contains(text, stringutil.Normalize(fp.Name)) {
			continue
		}
		switch {
		case strings.Contains(text, "телефон") || strings.Contains(text, "номер"):
			return fmt.Sprintf("📞 Телефон пункта '%s': %s", fp.Name, orUnknown(fp.Phone)), true
		case strings.Contains(text, "сайт"):
			return fmt.Sprintf("🌐 Сайт пункта '%s': %s", fp.Name, orUnknown(fp.Website)), true
		case strings.Contains(text, "адрес"):
			return fmt.Sprintf("📍 Адрес пункта '%s': %s", fp.Name, orUnknown(fp.Address)), true
		}
	}
	return "", false
}
