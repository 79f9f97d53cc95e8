package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
)

const profileColumns = `user_id, display_name, total_points, quarterly_points, level,
	recycle_report_count, last_recycle_report_date, recycle_streak_count,
	challenges_completed_count, last_quiz_date, quiz_correct_streak, last_tip_date,
	referred_by, referrals_count, referrer_bonus_given, created_at`

// GetOrCreateProfile returns the profile of userID, creating it lazily.
// referredBy is recorded only when the profile is created and differs from userID.
func (db *DB) GetOrCreateProfile(ctx context.Context, userID, referredBy string) (*Profile, error) {
	if userID == "" {
		return nil, domerrors.NewValidationError("user_id", "empty")
	}
	var ref any
	if referredBy != "" && referredBy != userID {
		ref = referredBy
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, referred_by, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, ref, time.Now().Unix())
	if err != nil {
		slog.ErrorContext(ctx, "failed to create profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return db.GetProfile(ctx, userID)
}

// GetProfile returns the profile of userID or domerrors.ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p                              Profile
		lastRecycle, lastQuiz, lastTip *string
		referredBy                     *string
		bonus                          int
		createdAt                      int64
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &p.TotalPoints, &p.QuarterlyPoints, &p.Level,
		&p.RecycleReportCount, &lastRecycle, &p.RecycleStreak,
		&p.ChallengesCompleted, &lastQuiz, &p.QuizCorrectStreak, &lastTip,
		&referredBy, &p.ReferralsCount, &bonus, &createdAt)
	if err != nil {
		return nil, err
	}
	p.LastRecycleReport = parseDate(lastRecycle)
	p.LastQuiz = parseDate(lastQuiz)
	p.LastTip = parseDate(lastTip)
	if referredBy != nil {
		p.ReferredBy = *referredBy
	}
	p.ReferrerBonusGiven = bonus != 0
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

// AddPoints adds delta to both the total and the quarterly balance in one
// statement and returns the new total. Negative deltas are rejected.
func (db *DB) AddPoints(ctx context.Context, userID string, delta int) (int, error) {
	if delta < 0 {
		return 0, domerrors.NewValidationError("points", "must not be negative")
	}
	start := time.Now()
	var total int
	err := db.conn.QueryRowContext(ctx,
		`UPDATE user_profiles
		 SET total_points = total_points + ?, quarterly_points = quarterly_points + ?
		 WHERE user_id = ?
		 RETURNING total_points`,
		delta, delta, userID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("add points to %s: %w", userID, domerrors.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to add points", "user_id", userID, "delta", delta, "error", err)
		return 0, fmt.Errorf("add points: %w", err)
	}
	logSlow(ctx, "AddPoints", start, "user_id", userID)
	return total, nil
}

// IncrementCounter adds delta to a counter column and returns the new value.
func (db *DB) IncrementCounter(ctx context.Context, userID string, counter Counter, delta int) (int, error) {
	switch counter {
	case CounterRecycleReports, CounterChallengesCompleted, CounterReferrals:
	default:
		return 0, domerrors.NewValidationError("counter", string(counter))
	}
	if delta < 0 {
		return 0, domerrors.NewValidationError(string(counter), "must not decrease")
	}

	var value int
	query := fmt.Sprintf(`UPDATE user_profiles SET %[1]s = %[1]s + ? WHERE user_id = ? RETURNING %[1]s`, counter)
	err := db.conn.QueryRowContext(ctx, query, delta, userID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment %s for %s: %w", counter, userID, domerrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", counter, err)
	}
	return value, nil
}

// UpdateProfile applies the non-nil fields of patch.
func (db *DB) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.DisplayName != nil {
		set("display_name", *patch.DisplayName)
	}
	if patch.Level != nil {
		set("level", *patch.Level)
	}
	if patch.LastRecycleReport != nil {
		set("last_recycle_report_date", formatDate(*patch.LastRecycleReport))
	}
	if patch.RecycleStreak != nil {
		set("recycle_streak_count", *patch.RecycleStreak)
	}
	if patch.LastQuiz != nil {
		set("last_quiz_date", formatDate(*patch.LastQuiz))
	}
	if patch.QuizCorrectStreak != nil {
		set("quiz_correct_streak", *patch.QuizCorrectStreak)
	}
	if patch.LastTip != nil {
		set("last_tip_date", formatDate(*patch.LastTip))
	}
	if patch.ReferredBy != nil {
		set("referred_by", nullable(*patch.ReferredBy))
	}
	if patch.ReferrerBonusGiven != nil {
		bonus := 0
		if *patch.ReferrerBonusGiven {
			bonus = 1
		}
		set("referrer_bonus_given", bonus)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, userID)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE user_profiles SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update profile", "user_id", userID, "error", err)
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update profile %s: %w", userID, domerrors.ErrNotFound)
	}
	return nil
}

// Leaderboard returns the users with the highest quarterly balance.
func (db *DB) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, display_name, quarterly_points FROM user_profiles
		 WHERE quarterly_points > 0
		 ORDER BY quarterly_points DESC, created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.QuarterlyPoints); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ResetQuarterlyPoints zeroes every quarterly balance and returns the number
// of affected users. Total points are untouched.
func (db *DB) ResetQuarterlyPoints(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `UPDATE user_profiles SET quarterly_points = 0`)
	if err != nil {
		return 0, fmt.Errorf("reset quarterly points: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountProfiles returns the number of known users.
func (db *DB) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// nullable stores the empty string as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
