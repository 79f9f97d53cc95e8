package storage

import "time"

// DateLayout is the on-disk format of calendar dates.
const DateLayout = "2006-01-02"

// Profile is the persistent gamification state of one user.
// Zero dates mean "never".
type Profile struct {
	UserID              string
	DisplayName         string
	TotalPoints         int
	QuarterlyPoints     int
	Level               int
	RecycleReportCount  int
	LastRecycleReport   time.Time
	RecycleStreak       int
	ChallengesCompleted int
	LastQuiz            time.Time
	QuizCorrectStreak   int
	LastTip             time.Time
	ReferredBy          string
	ReferralsCount      int
	ReferrerBonusGiven  bool
	CreatedAt           time.Time
}

// ProfilePatch lists the fields to overwrite; nil fields are left unchanged.
// A non-nil pointer to a zero time clears the date.
type ProfilePatch struct {
	DisplayName        *string
	Level              *int
	LastRecycleReport  *time.Time
	RecycleStreak      *int
	LastQuiz           *time.Time
	QuizCorrectStreak  *int
	LastTip            *time.Time
	ReferredBy         *string
	ReferrerBonusGiven *bool
}

// Counter names a monotonically increasing profile column.
type Counter string

// Counters that may be incremented atomically.
const (
	CounterRecycleReports      Counter = "recycle_report_count"
	CounterChallengesCompleted Counter = "challenges_completed_count"
	CounterReferrals           Counter = "referrals_count"
)

// AchievementGrant is one unlocked achievement.
type AchievementGrant struct {
	AchievementID string
	GrantedAt     time.Time
}

// ChallengeInstance is the single active challenge of a user.
type ChallengeInstance struct {
	UserID      string
	ChallengeID string
	StartDate   time.Time
}

// LeaderboardEntry is one row of the quarterly leaderboard.
type LeaderboardEntry struct {
	UserID          string
	DisplayName     string
	QuarterlyPoints int
}

// Day truncates t to its calendar date in t's location, expressed in UTC
// so dates compare and subtract exactly.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return Day(t).Format(DateLayout)
}

func parseDate(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return time.Time{}
	}
	return t
}
