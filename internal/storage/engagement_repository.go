package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
)

// GrantAchievement records an achievement once. It reports whether this call
// created the grant.
func (db *DB) GrantAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_achievements (user_id, achievement_id, granted_at) VALUES (?, ?, ?)`,
		userID, achievementID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("grant achievement %s: %w", achievementID, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// HasAchievement reports whether userID already holds achievementID.
func (db *DB) HasAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM user_achievements WHERE user_id = ? AND achievement_id = ?`,
		userID, achievementID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query achievement: %w", err)
	}
	return true, nil
}

// ListAchievements returns the grants of userID in unlock order.
func (db *DB) ListAchievements(ctx context.Context, userID string) ([]AchievementGrant, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT achievement_id, granted_at FROM user_achievements
		 WHERE user_id = ? ORDER BY granted_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AchievementGrant
	for rows.Next() {
		var (
			g  AchievementGrant
			at int64
		)
		if err := rows.Scan(&g.AchievementID, &at); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		g.GrantedAt = time.Unix(at, 0)
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetChallenge returns the active challenge of userID or domerrors.ErrNotFound.
func (db *DB) GetChallenge(ctx context.Context, userID string) (*ChallengeInstance, error) {
	var (
		c     ChallengeInstance
		start string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, challenge_id, start_date FROM user_challenges WHERE user_id = ?`,
		userID).Scan(&c.UserID, &c.ChallengeID, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("challenge of %s: %w", userID, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query challenge: %w", err)
	}
	c.StartDate = parseDate(&start)
	return &c, nil
}

// SetChallenge starts (or replaces) the active challenge of userID.
func (db *DB) SetChallenge(ctx context.Context, userID, challengeID string, start time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_challenges (user_id, challenge_id, start_date) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			challenge_id = excluded.challenge_id,
			start_date = excluded.start_date`,
		userID, challengeID, Day(start).Format(DateLayout))
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	return nil
}

// DeleteChallenge removes the active challenge of userID. It reports whether
// a row existed.
func (db *DB) DeleteChallenge(ctx context.Context, userID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM user_challenges WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete challenge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListChallenges returns every active challenge.
func (db *DB) ListChallenges(ctx context.Context) ([]ChallengeInstance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, challenge_id, start_date FROM user_challenges ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ChallengeInstance
	for rows.Next() {
		var (
			c     ChallengeInstance
			start string
		)
		if err := rows.Scan(&c.UserID, &c.ChallengeID, &start); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		c.StartDate = parseDate(&start)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddSubscriber opts userID into the daily broadcast. It reports whether the
// user was newly added.
func (db *DB) AddSubscriber(ctx context.Context, userID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers (user_id, subscribed_at) VALUES (?, ?)`,
		userID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// RemoveSubscriber opts userID out. It reports whether the user was subscribed.
func (db *DB) RemoveSubscriber(ctx context.Context, userID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM subscribers WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("remove subscriber: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// IsSubscriber reports whether userID receives the daily broadcast.
func (db *DB) IsSubscriber(ctx context.Context, userID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM subscribers WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query subscriber: %w", err)
	}
	return true, nil
}

// ListSubscribers returns every subscribed user id.
func (db *DB) ListSubscribers(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT user_id FROM subscribers ORDER BY subscribed_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountSubscribers returns the size of the daily tip audience.
func (db *DB) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

// CountChallenges returns the number of running challenges.
func (db *DB) CountChallenges(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_challenges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count challenges: %w", err)
	}
	return n, nil
}
