// Package sliceutil provides generic slice helpers.
package sliceutil

// Deduplicate keeps the first item for every key returned by keyFunc,
// preserving order.
//
//	points := []data.RecyclingPoint{{Name: "A"}, {Name: "B"}, {Name: "A"}}
//	unique := sliceutil.Deduplicate(points, func(p data.RecyclingPoint) string { return p.Name })
//	// [{Name: "A"}, {Name: "B"}]
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))
	for _, item := range items {
		key := keyFunc(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}
