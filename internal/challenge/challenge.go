// Package challenge runs the lifecycle of timed multi-day challenges:
// accepting, cancelling, progress reminders and completion.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/gamification"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

// Store is the persistence the manager needs.
type Store interface {
	storage.ChallengeRepository
	GetOrCreateProfile(ctx context.Context, userID, referredBy string) (*storage.Profile, error)
	IncrementCounter(ctx context.Context, userID string, counter storage.Counter, delta int) (int, error)
}

// Awarder pays the completion points.
type Awarder interface {
	AwardFor(ctx context.Context, kind, userID string, points int, reason string, considerReferral bool) error
}

// MetricsRecorder receives lifecycle events. May be nil.
type MetricsRecorder interface {
	RecordChallenge(event string)
}

// Lifecycle events reported to MetricsRecorder.
const (
	EventAccepted  = "accepted"
	EventCancelled = "cancelled"
	EventCompleted = "completed"
	EventReminded  = "reminded"
)

// Active is a running challenge seen from its participant.
type Active struct {
	Challenge config.Challenge
	StartDate time.Time
	Day       int // 1-based
}

// Manager drives challenge state. Every record mutation happens under the
// per-user lock shared with the gamification engine.
type Manager struct {
	store    Store
	locks    *storage.UserLocks
	catalog  *config.Catalog
	awarder  Awarder
	notifier gamification.Notifier
	metrics  MetricsRecorder
	logger   *logger.Logger
	now      func() time.Time
	location *time.Location
}

// Config holds the manager dependencies.
type Config struct {
	Store    Store
	Locks    *storage.UserLocks
	Catalog  *config.Catalog
	Awarder  Awarder
	Notifier gamification.Notifier
	Metrics  MetricsRecorder
	Logger   *logger.Logger
	Now      func() time.Time
	Location *time.Location
}

// New creates a manager.
func New(cfg Config) *Manager {
	m := &Manager{
		store:    cfg.Store,
		locks:    cfg.Locks,
		catalog:  cfg.Catalog,
		awarder:  cfg.Awarder,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
		location: cfg.Location,
	}
	if m.locks == nil {
		m.locks = storage.NewUserLocks()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.location == nil {
		m.location = time.UTC
	}
	if m.logger == nil {
		m.logger = logger.New("error")
	}
	return m
}

func (m *Manager) today() time.Time {
	return storage.Day(m.now().In(m.location))
}

// List returns the challenge catalog in display order.
func (m *Manager) List() []config.Challenge {
	return m.catalog.Challenges
}

// Lookup returns a challenge definition by id.
func (m *Manager) Lookup(id string) (config.Challenge, error) {
	ch, ok := m.catalog.Challenge(id)
	if !ok {
		return config.Challenge{}, fmt.Errorf("challenge %q: %w", id, domerrors.ErrNotFound)
	}
	return ch, nil
}

// Current returns the active challenge of userID, or nil when there is none.
func (m *Manager) Current(ctx context.Context, userID string) (*Active, error) {
	inst, err := m.store.GetChallenge(ctx, userID)
	if errors.Is(err, domerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ch, ok := m.catalog.Challenge(inst.ChallengeID)
	if !ok {
		m.logger.WarnContext(ctx, "active challenge missing from catalog",
			"user_id", userID, "challenge_id", inst.ChallengeID)
		return nil, nil
	}
	return &Active{
		Challenge: ch,
		StartDate: inst.StartDate,
		Day:       storage.DaysBetween(inst.StartDate, m.today()) + 1,
	}, nil
}

// Accept starts challengeID for userID today, replacing any running challenge.
func (m *Manager) Accept(ctx context.Context, userID, challengeID string) (config.Challenge, error) {
	ch, err := m.Lookup(challengeID)
	if err != nil {
		return config.Challenge{}, err
	}

	unlock := m.locks.Lock(userID)
	defer unlock()
	if err := m.store.SetChallenge(ctx, userID, ch.ID, m.today()); err != nil {
		return config.Challenge{}, err
	}
	m.record(EventAccepted)
	m.logger.InfoContext(ctx, "challenge accepted", "user_id", userID, "challenge_id", ch.ID)
	return ch, nil
}

// Cancel drops the running challenge without any reward. It reports whether
// one was running.
func (m *Manager) Cancel(ctx context.Context, userID string) (bool, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()
	deleted, err := m.store.DeleteChallenge(ctx, userID)
	if err != nil {
		return false, err
	}
	if deleted {
		m.record(EventCancelled)
	}
	return deleted, nil
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Completed int
	Reminded  int
	Failed    int
}

// Sweep completes every challenge whose duration has elapsed and reminds
// participants of running ones every ReminderEveryDays days. A failure on
// one record does not stop the others.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	active, err := m.store.ListChallenges(ctx)
	if err != nil {
		return res, fmt.Errorf("list challenges: %w", err)
	}

	today := m.today()
	every := m.catalog.Tuning.ReminderEveryDays
	var errs []error
	for _, inst := range active {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ch, ok := m.catalog.Challenge(inst.ChallengeID)
		if !ok {
			m.logger.WarnContext(ctx, "skipping unknown challenge",
				"user_id", inst.UserID, "challenge_id", inst.ChallengeID)
			continue
		}

		days := storage.DaysBetween(inst.StartDate, today)
		switch {
		case days >= ch.DurationDays:
			done, err := m.complete(ctx, inst, ch)
			if err != nil {
				res.Failed++
				errs = append(errs, err)
				continue
			}
			if done {
				res.Completed++
			}
		case days > 0 && (days+1)%every == 0:
			m.notify(ctx, inst.UserID, fmt.Sprintf("День %d: %s", days+1, ch.DailyMessage))
			m.record(EventReminded)
			res.Reminded++
		}
	}

	m.logger.InfoContext(ctx, "challenge sweep finished",
		"active", len(active), "completed", res.Completed, "reminded", res.Reminded, "failed", res.Failed)
	return res, errors.Join(errs...)
}

// complete closes inst. The record is re-read under the user lock so a
// challenge cancelled or replaced since the listing is left alone.
func (m *Manager) complete(ctx context.Context, inst storage.ChallengeInstance, ch config.Challenge) (bool, error) {
	closed, err := func() (bool, error) {
		unlock := m.locks.Lock(inst.UserID)
		defer unlock()

		cur, err := m.store.GetChallenge(ctx, inst.UserID)
		if errors.Is(err, domerrors.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if cur.ChallengeID != inst.ChallengeID || !cur.StartDate.Equal(inst.StartDate) {
			return false, nil
		}
		if _, err := m.store.GetOrCreateProfile(ctx, inst.UserID, ""); err != nil {
			return false, err
		}
		if _, err := m.store.DeleteChallenge(ctx, inst.UserID); err != nil {
			return false, err
		}
		if _, err := m.store.IncrementCounter(ctx, inst.UserID, storage.CounterChallengesCompleted, 1); err != nil {
			return false, err
		}
		return true, nil
	}()
	if err != nil || !closed {
		if err != nil {
			err = fmt.Errorf("complete challenge %s for %s: %w", ch.ID, inst.UserID, err)
		}
		return false, err
	}

	m.record(EventCompleted)
	m.logger.InfoContext(ctx, "challenge completed", "user_id", inst.UserID, "challenge_id", ch.ID)
	if err := m.awarder.AwardFor(ctx, gamification.KindChallenge, inst.UserID,
		m.catalog.Points.Challenge, fmt.Sprintf("За завершение челленджа «%s»", ch.Title), true); err != nil {
		m.logger.ErrorContext(ctx, "challenge award failed", "user_id", inst.UserID, "error", err)
	}
	m.notify(ctx, inst.UserID, ch.EndMessage)
	return true, nil
}

func (m *Manager) notify(ctx context.Context, userID, text string) {
	if m.notifier == nil || text == "" {
		return
	}
	if err := m.notifier.Notify(ctx, userID, text); err != nil {
		m.logger.WarnContext(ctx, "challenge notification not delivered", "user_id", userID, "error", err)
	}
}

func (m *Manager) record(event string) {
	if m.metrics != nil {
		m.metrics.RecordChallenge(event)
	}
}
