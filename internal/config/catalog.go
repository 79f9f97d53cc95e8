package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Profile counters an achievement threshold may refer to.
const (
	CounterTotalPoints         = "total_points"
	CounterRecycleReports      = "recycle_report_count"
	CounterQuizStreak          = "quiz_correct_streak"
	CounterChallengesCompleted = "challenges_completed_count"
	CounterReferrals           = "referrals_count"
	CounterRecycleStreak       = "recycle_streak_count"
)

var knownCounters = []string{
	CounterTotalPoints,
	CounterRecycleReports,
	CounterQuizStreak,
	CounterChallengesCompleted,
	CounterReferrals,
	CounterRecycleStreak,
}

// Points holds point values per action.
type Points struct {
	Recycle     int `yaml:"recycle"`
	Streak      int `yaml:"streak"`
	Challenge   int `yaml:"challenge"`
	Quiz        int `yaml:"quiz"`
	Tip         int `yaml:"tip"`
	Invite      int `yaml:"invite"`
	Achievement int `yaml:"achievement"`
}

// Level is one row of the ascending level table.
type Level struct {
	Level     int    `yaml:"level"`
	Name      string `yaml:"name"`
	MinPoints int    `yaml:"min_points"`
}

// Achievement is a one-time badge unlocked when Counter reaches Threshold.
type Achievement struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Counter   string `yaml:"counter"`
	Threshold int    `yaml:"threshold"`
}

// City maps a canonical city to its surface forms.
type City struct {
	Name      string   `yaml:"name"`
	Display   string   `yaml:"display"`
	Aliases   []string `yaml:"aliases"`
	Districts []string `yaml:"districts"`
}

// FallbackPoint is the default disposal location of a city.
type FallbackPoint struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
	Website string `yaml:"website"`
	Note    string `yaml:"note"`
}

// SynonymGroup maps a canonical material to the substrings that match it.
type SynonymGroup struct {
	Material string   `yaml:"material"`
	Terms    []string `yaml:"terms"`
}

// Buttons is the main menu vocabulary.
type Buttons struct {
	Recycled    string `yaml:"recycled"`
	FindPoint   string `yaml:"find_point"`
	Profile     string `yaml:"profile"`
	Quiz        string `yaml:"quiz"`
	Challenge   string `yaml:"challenge"`
	Leaderboard string `yaml:"leaderboard"`
	Tip         string `yaml:"tip"`
	Invite      string `yaml:"invite"`
	Question    string `yaml:"question"`
}

// All returns the buttons in menu order.
func (b Buttons) All() []string {
	return []string{b.Recycled, b.FindPoint, b.Profile, b.Quiz, b.Challenge, b.Leaderboard, b.Tip, b.Invite, b.Question}
}

// Challenge is a timed multi-day task definition.
type Challenge struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	DurationDays int    `yaml:"duration_days"`
	StartMessage string `yaml:"start_message"`
	DailyMessage string `yaml:"daily_message"`
	EndMessage   string `yaml:"end_message"`
}

// Tuning holds numeric knobs of the cascade and engine.
type Tuning struct {
	FuzzyCutoff       int `yaml:"fuzzy_cutoff"`
	PageSize          int `yaml:"page_size"`
	HistoryCapacity   int `yaml:"history_capacity"`
	ReminderEveryDays int `yaml:"reminder_every_days"`
	LeaderboardLimit  int `yaml:"leaderboard_limit"`
	QuizFactMaxLen    int `yaml:"quiz_fact_max_len"`
	MaxQueuedAwards   int `yaml:"max_queued_awards"`
}

// Schedule holds daily job times as "HH:MM".
type Schedule struct {
	ChallengeSweep string `yaml:"challenge_sweep"`
	DailyTip       string `yaml:"daily_tip"`
	Snapshot       string `yaml:"snapshot"`
}

// Catalog is the static configuration surface of the bot.
type Catalog struct {
	Points            Points                   `yaml:"points"`
	ReferralThreshold int                      `yaml:"referral_threshold"`
	Levels            []Level                  `yaml:"levels"`
	Achievements      []Achievement            `yaml:"achievements"`
	DefaultCity       string                   `yaml:"default_city"`
	Cities            []City                   `yaml:"cities"`
	FallbackPoints    map[string]FallbackPoint `yaml:"fallback_points"`
	Synonyms          []SynonymGroup           `yaml:"synonyms"`
	SearchTriggers    []string                 `yaml:"search_triggers"`
	JunkWords         []string                 `yaml:"junk_words"`
	VagueReplies      []string                 `yaml:"vague_replies"`
	HelpTriggers      []string                 `yaml:"help_triggers"`
	StopWords         []string                 `yaml:"stop_words"`
	Buttons           Buttons                  `yaml:"buttons"`
	Challenges        []Challenge              `yaml:"challenges"`
	Tuning            Tuning                   `yaml:"tuning"`
	Schedule          Schedule                 `yaml:"schedule"`
}

// LoadCatalog reads the catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the embedded catalog. It panics on a broken build.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &c, nil
}

// Validate checks table ordering and references.
func (c *Catalog) Validate() error {
	var errs []error

	if len(c.Levels) == 0 {
		errs = append(errs, errors.New("levels table is empty"))
	}
	for i, l := range c.Levels {
		if l.Level != i+1 {
			errs = append(errs, fmt.Errorf("level %d out of order at index %d", l.Level, i))
		}
		if i > 0 && l.MinPoints <= c.Levels[i-1].MinPoints {
			errs = append(errs, fmt.Errorf("level %d threshold %d is not ascending", l.Level, l.MinPoints))
		}
	}
	if len(c.Levels) > 0 && c.Levels[0].MinPoints != 0 {
		errs = append(errs, errors.New("first level must start at 0 points"))
	}

	seen := make(map[string]bool, len(c.Achievements))
	for _, a := range c.Achievements {
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate achievement %q", a.ID))
		}
		seen[a.ID] = true
		if !slices.Contains(knownCounters, a.Counter) {
			errs = append(errs, fmt.Errorf("achievement %q uses unknown counter %q", a.ID, a.Counter))
		}
		if a.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("achievement %q threshold must be positive", a.ID))
		}
	}

	if c.City(c.DefaultCity) == nil {
		errs = append(errs, fmt.Errorf("default city %q is not in cities", c.DefaultCity))
	}
	for _, ch := range c.Challenges {
		if ch.ID == "" || ch.DurationDays <= 0 {
			errs = append(errs, fmt.Errorf("challenge %q needs an id and a positive duration", ch.ID))
		}
	}

	t := c.Tuning
	if t.FuzzyCutoff <= 0 || t.FuzzyCutoff > 100 {
		errs = append(errs, fmt.Errorf("fuzzy cutoff must be in 1..100, got %d", t.FuzzyCutoff))
	}
	if t.PageSize <= 0 || t.HistoryCapacity <= 0 || t.ReminderEveryDays <= 0 ||
		t.LeaderboardLimit <= 0 || t.MaxQueuedAwards <= 0 {
		errs = append(errs, errors.New("tuning values must be positive"))
	}

	for name, at := range map[string]string{
		"challenge_sweep": c.Schedule.ChallengeSweep,
		"daily_tip":       c.Schedule.DailyTip,
	} {
		if _, _, err := ParseClock(at); err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// LevelFor returns the highest level whose threshold is <= points.
func (c *Catalog) LevelFor(points int) Level {
	best := c.Levels[0]
	for _, l := range c.Levels {
		if points >= l.MinPoints {
			best = l
		}
	}
	return best
}

// Level returns the level row by number.
func (c *Catalog) Level(n int) (Level, bool) {
	if n < 1 || n > len(c.Levels) {
		return Level{}, false
	}
	return c.Levels[n-1], true
}

// Achievement looks up an achievement by id.
func (c *Catalog) Achievement(id string) (Achievement, bool) {
	for _, a := range c.Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Challenge looks up a challenge definition by id.
func (c *Catalog) Challenge(id string) (Challenge, bool) {
	for _, ch := range c.Challenges {
		if ch.ID == id {
			return ch, true
		}
	}
	return Challenge{}, false
}

// City looks up a canonical city case-insensitively.
func (c *Catalog) City(name string) *City {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range c.Cities {
		if c.Cities[i].Name == name {
			return &c.Cities[i]
		}
	}
	return nil
}

// FallbackPoint returns the configured default point of a city.
func (c *Catalog) FallbackPoint(city string) (FallbackPoint, bool) {
	p, ok := c.FallbackPoints[strings.ToLower(strings.TrimSpace(city))]
	return p, ok
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (uint, uint, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}
