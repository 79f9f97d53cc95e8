package gamification

import (
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

// NextStreak returns the streak after a qualifying action today. The streak
// grows only when the previous action was exactly one calendar day earlier.
func NextStreak(last, today time.Time, current int) int {
	if last.IsZero() {
		return 1
	}
	if storage.DaysBetween(last, today) == 1 {
		return current + 1
	}
	return 1
}

// StreakBonus reports whether streak earns the bonus: on day 5 and every
// seventh day after.
func StreakBonus(streak int) bool {
	return streak >= 5 && streak%7 == 5
}
