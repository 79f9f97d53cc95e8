// Package gamification awards points and drives levels, achievements,
// streaks and referral bonuses.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

// Award kinds, used as metric labels.
const (
	KindRecycle     = "recycle"
	KindStreak      = "streak"
	KindQuiz        = "quiz"
	KindTip         = "tip"
	KindChallenge   = "challenge"
	KindAchievement = "achievement"
	KindReferral    = "referral"
	KindOther       = "other"
)

// Notifier delivers a plain-text notification to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// MetricsRecorder receives gamification events. May be nil.
type MetricsRecorder interface {
	RecordPoints(kind string, points int)
	RecordAchievement(id string)
	RecordLevelUp(level int)
	RecordAwardDropped()
}

// Store is the persistence the engine needs.
type Store interface {
	storage.ProfileRepository
}

// job is one queued point award. considerReferral travels with the job so
// follow-up awards can disable it explicitly.
type job struct {
	userID           string
	points           int
	reason           string
	kind             string
	considerReferral bool
}

// Engine applies awards. Each award runs (a) profile before, (b) atomic add,
// (c) notify, (d) profile after, (e) level check, (f) achievements,
// (g) referral bonus. Follow-up awards from (f) and (g) are queued instead of
// recursing.
type Engine struct {
	store    Store
	locks    *storage.UserLocks
	catalog  *config.Catalog
	notifier Notifier
	metrics  MetricsRecorder
	logger   *logger.Logger
	now      func() time.Time
	location *time.Location

	// referralMu serializes RegisterReferral so the cycle check and the
	// write are atomic across users.
	referralMu sync.Mutex
}

// Config holds the engine dependencies.
type Config struct {
	Store    Store
	Locks    *storage.UserLocks // shared with every other writer of Store
	Catalog  *config.Catalog
	Notifier Notifier
	Metrics  MetricsRecorder
	Logger   *logger.Logger
	Now      func() time.Time // defaults to time.Now
	Location *time.Location   // calendar of "today"; defaults to UTC
}

// New creates an engine.
func New(cfg Config) *Engine {
	e := &Engine{
		store:    cfg.Store,
		locks:    cfg.Locks,
		catalog:  cfg.Catalog,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
		location: cfg.Location,
	}
	if e.locks == nil {
		e.locks = storage.NewUserLocks()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.location == nil {
		e.location = time.UTC
	}
	if e.logger == nil {
		e.logger = logger.New("error")
	}
	return e
}

// Today returns the current calendar date in the engine's time zone.
func (e *Engine) Today() time.Time {
	return storage.Day(e.now().In(e.location))
}

// Catalog returns the tables the engine awards from.
func (e *Engine) Catalog() *config.Catalog {
	return e.catalog
}

// Award adds points to userID and runs every follow-up check.
func (e *Engine) Award(ctx context.Context, userID string, points int, reason string, considerReferral bool) error {
	return e.AwardFor(ctx, KindOther, userID, points, reason, considerReferral)
}

// AwardFor is Award with an explicit kind label.
func (e *Engine) AwardFor(ctx context.Context, kind, userID string, points int, reason string, considerReferral bool) error {
	return e.withUser(ctx, userID, func(a *userAwards) error {
		return a.award(job{
			userID:           userID,
			points:           points,
			reason:           reason,
			kind:             kind,
			considerReferral: considerReferral,
		})
	})
}

// userAwards runs awards for the user whose lock is held. Awards raised for
// other users (referral bonuses) are kept in others until the lock is
// released.
type userAwards struct {
	e      *Engine
	ctx    context.Context
	userID string
	others []job
}

func (a *userAwards) award(j job) error {
	others, err := a.e.drain(a.ctx, a.userID, j)
	a.others = append(a.others, others...)
	return err
}

// withUser runs fn under the lock of userID, then settles the awards fn
// raised for other users. No two user locks are ever held at once.
func (e *Engine) withUser(ctx context.Context, userID string, fn func(*userAwards) error) error {
	a := &userAwards{e: e, ctx: ctx, userID: userID}
	err := func() error {
		unlock := e.locks.Lock(userID)
		defer unlock()
		return fn(a)
	}()
	if serr := e.settle(ctx, a.others); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

// settle awards pending jobs of other users one user lock at a time.
func (e *Engine) settle(ctx context.Context, pending []job) error {
	limit := e.catalog.Tuning.MaxQueuedAwards
	var errs []error
	for n := 0; len(pending) > 0; n++ {
		j := pending[0]
		pending = pending[1:]
		if n >= limit {
			e.dropped(ctx, j)
			continue
		}
		unlock := e.locks.Lock(j.userID)
		others, err := e.drain(ctx, j.userID, j)
		unlock()
		if err != nil {
			errs = append(errs, err)
		}
		pending = append(pending, others...)
	}
	return errors.Join(errs...)
}

// drain processes first and every follow-up of the same user in FIFO order.
// The caller holds the lock of userID. Follow-ups for other users are
// returned for settle.
func (e *Engine) drain(ctx context.Context, userID string, first job) ([]job, error) {
	limit := e.catalog.Tuning.MaxQueuedAwards
	queue := []job{first}
	var (
		others []job
		errs   []error
	)

	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]

		followUps, err := e.process(ctx, j)
		if err != nil {
			errs = append(errs, err)
		}
		for _, f := range followUps {
			if f.userID != userID {
				others = append(others, f)
				continue
			}
			if len(queue) >= limit {
				e.dropped(ctx, f)
				continue
			}
			queue = append(queue, f)
		}
	}
	return others, errors.Join(errs...)
}

func (e *Engine) dropped(ctx context.Context, j job) {
	e.logger.WarnContext(ctx, "award queue full, dropping follow-up",
		"user_id", j.userID, "kind", j.kind, "points", j.points)
	if e.metrics != nil {
		e.metrics.RecordAwardDropped()
	}
}

func (e *Engine) process(ctx context.Context, j job) ([]job, error) {
	// (a)
	before, err := e.store.GetOrCreateProfile(ctx, j.userID, "")
	if err != nil {
		return nil, fmt.Errorf("award %s: profile before: %w", j.userID, err)
	}
	// (b)
	if _, err := e.store.AddPoints(ctx, j.userID, j.points); err != nil {
		return nil, fmt.Errorf("award %s: %w", j.userID, err)
	}
	if e.metrics != nil {
		e.metrics.RecordPoints(j.kind, j.points)
	}
	// (c)
	e.notify(ctx, j.userID, fmt.Sprintf("%s\n\nВы получили %d Эко-Очков!", j.reason, j.points))
	// (d)
	after, err := e.store.GetProfile(ctx, j.userID)
	if err != nil {
		return nil, fmt.Errorf("award %s: profile after: %w", j.userID, err)
	}
	// (e)
	if err := e.checkLevel(ctx, after); err != nil {
		return nil, err
	}
	// (f)
	followUps, err := e.checkAchievements(ctx, after)
	if err != nil {
		return nil, err
	}
	// (g)
	if j.considerReferral {
		bonus, err := e.checkReferral(ctx, before, after)
		if err != nil {
			return followUps, err
		}
		followUps = append(followUps, bonus...)
	}
	return followUps, nil
}

func (e *Engine) checkLevel(ctx context.Context, p *storage.Profile) error {
	level := e.catalog.LevelFor(p.TotalPoints)
	if level.Level <= p.Level {
		return nil
	}
	if err := e.store.UpdateProfile(ctx, p.UserID, storage.ProfilePatch{Level: &level.Level}); err != nil {
		return fmt.Errorf("level up %s: %w", p.UserID, err)
	}
	p.Level = level.Level
	if e.metrics != nil {
		e.metrics.RecordLevelUp(level.Level)
	}
	e.notify(ctx, p.UserID, fmt.Sprintf("🎉 НОВЫЙ УРОВЕНЬ 🎉\n\nВы стали %s! Так держать!", level.Name))
	return nil
}

func (e *Engine) checkAchievements(ctx context.Context, p *storage.Profile) ([]job, error) {
	var followUps []job
	for _, a := range e.catalog.Achievements {
		if Counter(p, a.Counter) < a.Threshold {
			continue
		}
		granted, err := e.store.GrantAchievement(ctx, p.UserID, a.ID)
		if err != nil {
			return followUps, fmt.Errorf("grant %s to %s: %w", a.ID, p.UserID, err)
		}
		if !granted {
			continue
		}
		if e.metrics != nil {
			e.metrics.RecordAchievement(a.ID)
		}
		e.logger.InfoContext(ctx, "achievement granted", "user_id", p.UserID, "achievement", a.ID)
		followUps = append(followUps, job{
			userID: p.UserID,
			points: e.catalog.Points.Achievement,
			reason: fmt.Sprintf("Новое достижение: %s!", a.Name),
			kind:   KindAchievement,
		})
	}
	return followUps, nil
}

// checkReferral pays the referrer once, when the referred user first crosses
// the threshold. The flag is set before the bonus is queued so a retry can
// never pay twice.
func (e *Engine) checkReferral(ctx context.Context, before, after *storage.Profile) ([]job, error) {
	threshold := e.catalog.ReferralThreshold
	if after.ReferredBy == "" || after.ReferrerBonusGiven ||
		before.TotalPoints >= threshold || after.TotalPoints < threshold {
		return nil, nil
	}

	given := true
	if err := e.store.UpdateProfile(ctx, after.UserID, storage.ProfilePatch{ReferrerBonusGiven: &given}); err != nil {
		return nil, fmt.Errorf("mark referral bonus for %s: %w", after.UserID, err)
	}
	if _, err := e.store.IncrementCounter(ctx, after.ReferredBy, storage.CounterReferrals, 1); err != nil {
		if !errors.Is(err, domerrors.ErrNotFound) {
			return nil, fmt.Errorf("count referral for %s: %w", after.ReferredBy, err)
		}
		e.logger.WarnContext(ctx, "referrer has no profile", "referrer", after.ReferredBy)
		return nil, nil
	}

	friend := "Ваш друг"
	if after.DisplayName != "" {
		friend += " " + after.DisplayName
	}
	e.logger.InfoContext(ctx, "referral threshold crossed",
		"user_id", after.UserID, "referrer", after.ReferredBy)
	return []job{{
		userID: after.ReferredBy,
		points: e.catalog.Points.Invite,
		reason: fmt.Sprintf("%s набрал первые %d очков!", friend, threshold),
		kind:   KindReferral,
	}}, nil
}

func (e *Engine) notify(ctx context.Context, userID, text string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, text); err != nil {
		e.logger.WarnContext(ctx, "notification not delivered", "user_id", userID, "error", err)
	}
}

// Counter returns the profile value an achievement threshold refers to.
func Counter(p *storage.Profile, name string) int {
	switch name {
	case config.CounterTotalPoints:
		return p.TotalPoints
	case config.CounterRecycleReports:
		return p.RecycleReportCount
	case config.CounterQuizStreak:
		return p.QuizCorrectStreak
	case config.CounterChallengesCompleted:
		return p.ChallengesCompleted
	case config.CounterReferrals:
		return p.ReferralsCount
	case config.CounterRecycleStreak:
		return p.RecycleStreak
	default:
		return 0
	}
}
