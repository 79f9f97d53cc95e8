package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		name  string
		query string
	}{
		{"user_profiles", `
		CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			quarterly_points INTEGER NOT NULL DEFAULT 0 CHECK (quarterly_points >= 0),
			level INTEGER NOT NULL DEFAULT 1,
			recycle_report_count INTEGER NOT NULL DEFAULT 0,
			last_recycle_report_date TEXT,
			recycle_streak_count INTEGER NOT NULL DEFAULT 0,
			challenges_completed_count INTEGER NOT NULL DEFAULT 0,
			last_quiz_date TEXT,
			quiz_correct_streak INTEGER NOT NULL DEFAULT 0,
			last_tip_date TEXT,
			referred_by TEXT,
			referrals_count INTEGER NOT NULL DEFAULT 0,
			referrer_bonus_given INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_profiles_quarterly ON user_profiles(quarterly_points DESC);
		`},
		{"user_achievements", `
		CREATE TABLE IF NOT EXISTS user_achievements (
			user_id TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			granted_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		);
		`},
		{"user_challenges", `
		CREATE TABLE IF NOT EXISTS user_challenges (
			user_id TEXT PRIMARY KEY,
			challenge_id TEXT NOT NULL,
			start_date TEXT NOT NULL
		);
		`},
		{"subscribers", `
		CREATE TABLE IF NOT EXISTS subscribers (
			user_id TEXT PRIMARY KEY,
			subscribed_at INTEGER NOT NULL
		);
		`},
	}

	for _, s := range steps {
		if _, err := db.ExecContext(ctx, s.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.name, err)
		}
	}
	return nil
}
