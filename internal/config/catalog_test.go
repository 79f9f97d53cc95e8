package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	assert.Equal(t, 10, c.Points.Recycle)
	assert.Equal(t, 50, c.ReferralThreshold)
	assert.Len(t, c.Levels, 5)
	assert.Equal(t, 80, c.Tuning.FuzzyCutoff)
	assert.Equal(t, 3, c.Tuning.PageSize)
	assert.Equal(t, 5, c.Tuning.HistoryCapacity)
	assert.Equal(t, 2, c.Tuning.ReminderEveryDays)
	assert.NotNil(t, c.City("Курган"))
	assert.Len(t, c.Buttons.All(), 9)
}

func TestCatalog_LevelFor(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		points int
		want   int
	}{
		{0, 1}, {99, 1}, {100, 2}, {249, 2}, {250, 3}, {500, 4}, {999, 4}, {1000, 5}, {50000, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.LevelFor(tt.points).Level, "points=%d", tt.points)
	}

	prev := 0
	for p := 0; p <= 1200; p++ {
		lvl := c.LevelFor(p).Level
		assert.GreaterOrEqual(t, lvl, prev)
		prev = lvl
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "::"},
		{"descending levels", `
levels:
  - {level: 1, name: a, min_points: 0}
  - {level: 2, name: b, min_points: 0}
default_city: x
cities: [{name: x}]
tuning: {fuzzy_cutoff: 80, page_size: 3, history_capacity: 5, reminder_every_days: 2, leaderboard_limit: 5, max_queued_awards: 8}
schedule: {challenge_sweep: "10:00", daily_tip: "11:00"}
`},
		{"unknown counter", `
levels: [{level: 1, name: a, min_points: 0}]
achievements: [{id: a, name: a, counter: nope, threshold: 1}]
default_city: x
cities: [{name: x}]
tuning: {fuzzy_cutoff: 80, page_size: 3, history_capacity: 5, reminder_every_days: 2, leaderboard_limit: 5, max_queued_awards: 8}
schedule: {challenge_sweep: "10:00", daily_tip: "11:00"}
`},
		{"bad clock", `
levels: [{level: 1, name: a, min_points: 0}]
default_city: x
cities: [{name: x}]
tuning: {fuzzy_cutoff: 80, page_size: 3, history_capacity: 5, reminder_every_days: 2, leaderboard_limit: 5, max_queued_awards: 8}
schedule: {challenge_sweep: "25:00", daily_tip: "11:00"}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, uint(10), h)
	assert.Equal(t, uint(30), m)

	_, _, err = ParseClock("10")
	assert.Error(t, err)
}
