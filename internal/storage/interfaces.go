package storage

import (
	"context"
	"time"
)

// ProfileRepository defines profile and achievement operations used by the
// gamification engine.
type ProfileRepository interface {
	GetOrCreateProfile(ctx context.Context, userID, referredBy string) (*Profile, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	AddPoints(ctx context.Context, userID string, delta int) (int, error)
	IncrementCounter(ctx context.Context, userID string, counter Counter, delta int) (int, error)
	UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) error
	GrantAchievement(ctx context.Context, userID, achievementID string) (bool, error)
	HasAchievement(ctx context.Context, userID, achievementID string) (bool, error)
	ListAchievements(ctx context.Context, userID string) ([]AchievementGrant, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// ChallengeRepository defines challenge instance operations.
type ChallengeRepository interface {
	GetChallenge(ctx context.Context, userID string) (*ChallengeInstance, error)
	SetChallenge(ctx context.Context, userID, challengeID string, start time.Time) error
	DeleteChallenge(ctx context.Context, userID string) (bool, error)
	ListChallenges(ctx context.Context) ([]ChallengeInstance, error)
}

// SubscriberRepository defines broadcast subscription operations.
type SubscriberRepository interface {
	AddSubscriber(ctx context.Context, userID string) (bool, error)
	RemoveSubscriber(ctx context.Context, userID string) (bool, error)
	IsSubscriber(ctx context.Context, userID string) (bool, error)
	ListSubscribers(ctx context.Context) ([]string, error)
}

// Compile-time interface compliance checks.
var (
	_ ProfileRepository    = (*DB)(nil)
	_ ChallengeRepository  = (*DB)(nil)
	_ SubscriberRepository = (*DB)(nil)
)
