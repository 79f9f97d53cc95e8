package gamification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

// ReportResult describes an accepted recycling report.
type ReportResult struct {
	Streak int
	Bonus  bool
}

// ReportRecycled records today's recycling report, updates the streak and
// awards the report points plus the streak bonus when due.
// It returns domerrors.ErrAlreadyDoneToday on a second report the same day.
func (e *Engine) ReportRecycled(ctx context.Context, userID string) (ReportResult, error) {
	var res ReportResult
	err := e.withUser(ctx, userID, func(a *userAwards) error {
		p, err := e.store.GetOrCreateProfile(ctx, userID, "")
		if err != nil {
			return err
		}
		today := e.Today()
		if !p.LastRecycleReport.IsZero() && p.LastRecycleReport.Equal(today) {
			return domerrors.ErrAlreadyDoneToday
		}

		streak := NextStreak(p.LastRecycleReport, today, p.RecycleStreak)
		if _, err := e.store.IncrementCounter(ctx, userID, storage.CounterRecycleReports, 1); err != nil {
			return err
		}
		if err := e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{
			LastRecycleReport: &today,
			RecycleStreak:     &streak,
		}); err != nil {
			return err
		}

		res = ReportResult{Streak: streak, Bonus: StreakBonus(streak)}
		pts := e.catalog.Points
		if err := a.award(job{
			userID: userID, points: pts.Recycle, kind: KindRecycle, considerReferral: true,
			reason: "За ежедневный отчет о сдаче вторсырья",
		}); err != nil || !res.Bonus {
			return err
		}
		return a.award(job{
			userID: userID, points: pts.Streak, kind: KindStreak, considerReferral: true,
			reason: fmt.Sprintf("За %d-дневную серию сдачи вторсырья!", streak),
		})
	})
	return res, err
}

// ClaimTip awards the once-a-day tip point. It reports whether points were given.
func (e *Engine) ClaimTip(ctx context.Context, userID string) (bool, error) {
	claimed := false
	err := e.withUser(ctx, userID, func(a *userAwards) error {
		p, err := e.store.GetOrCreateProfile(ctx, userID, "")
		if err != nil {
			return err
		}
		today := e.Today()
		if p.LastTip.Equal(today) {
			return nil
		}
		if err := e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{LastTip: &today}); err != nil {
			return err
		}
		claimed = true
		return a.award(job{
			userID: userID, points: e.catalog.Points.Tip, kind: KindTip, considerReferral: true,
			reason: "За проявленный интерес к экологии",
		})
	})
	return claimed, err
}

// QuizTicket is returned by StartQuiz and restores the daily marker on abort.
type QuizTicket struct {
	UserID   string
	previous time.Time
}

// StartQuiz claims today's quiz attempt. It returns domerrors.ErrAlreadyDoneToday
// when the user already had a quiz today.
func (e *Engine) StartQuiz(ctx context.Context, userID string) (QuizTicket, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	p, err := e.store.GetOrCreateProfile(ctx, userID, "")
	if err != nil {
		return QuizTicket{}, err
	}
	today := e.Today()
	if p.LastQuiz.Equal(today) {
		return QuizTicket{}, domerrors.ErrAlreadyDoneToday
	}
	if err := e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{LastQuiz: &today}); err != nil {
		return QuizTicket{}, err
	}
	return QuizTicket{UserID: userID, previous: p.LastQuiz}, nil
}

// AbortQuiz rolls the daily quiz marker back so the user may retry.
func (e *Engine) AbortQuiz(ctx context.Context, t QuizTicket) error {
	unlock := e.locks.Lock(t.UserID)
	defer unlock()
	prev := t.previous
	return e.store.UpdateProfile(ctx, t.UserID, storage.ProfilePatch{LastQuiz: &prev})
}

// AnswerQuiz scores a quiz answer: a correct one extends the streak and
// awards points, a wrong one resets the streak.
func (e *Engine) AnswerQuiz(ctx context.Context, userID string, correct bool) error {
	return e.withUser(ctx, userID, func(a *userAwards) error {
		p, err := e.store.GetOrCreateProfile(ctx, userID, "")
		if err != nil {
			return err
		}
		if !correct {
			zero := 0
			return e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{QuizCorrectStreak: &zero})
		}
		streak := p.QuizCorrectStreak + 1
		if err := e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{QuizCorrectStreak: &streak}); err != nil {
			return err
		}
		return a.award(job{
			userID: userID, points: e.catalog.Points.Quiz, kind: KindQuiz, considerReferral: true,
			reason: "За правильный ответ в викторине",
		})
	})
}

// ProfileView is the user-facing summary of a profile.
type ProfileView struct {
	Profile      *storage.Profile
	Level        config.Level
	NextLevel    *config.Level // nil at the top level
	PointsToNext int
	Achievements []config.Achievement
}

// Profile returns the summary of userID.
func (e *Engine) Profile(ctx context.Context, userID string) (*ProfileView, error) {
	p, err := e.store.GetOrCreateProfile(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	grants, err := e.store.ListAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	v := &ProfileView{Profile: p}
	var ok bool
	if v.Level, ok = e.catalog.Level(p.Level); !ok {
		v.Level = e.catalog.LevelFor(p.TotalPoints)
	}
	if next, ok := e.catalog.Level(v.Level.Level + 1); ok {
		v.NextLevel = &next
		v.PointsToNext = max(next.MinPoints-p.TotalPoints, 0)
	}
	for _, g := range grants {
		a, ok := e.catalog.Achievement(g.AchievementID)
		if !ok {
			a = config.Achievement{ID: g.AchievementID, Name: g.AchievementID}
		}
		v.Achievements = append(v.Achievements, a)
	}
	return v, nil
}

// Leaderboard returns the quarterly top list.
func (e *Engine) Leaderboard(ctx context.Context) ([]storage.LeaderboardEntry, error) {
	return e.store.Leaderboard(ctx, e.catalog.Tuning.LeaderboardLimit)
}

// RegisterReferral records referrerID as the referrer of userID. The user
// may be new or may have just followed without earning anything yet; users
// that already have a referrer or points are left alone. Self-referrals and
// unknown referrers are ignored, and so are referrals that would close a
// cycle (the referrer was referred, directly or not, by userID). The
// referrer is notified when the referral is recorded.
func (e *Engine) RegisterReferral(ctx context.Context, userID, referrerID string) (bool, error) {
	e.referralMu.Lock()
	defer e.referralMu.Unlock()
	unlock := e.locks.Lock(userID)
	defer unlock()

	p, err := e.store.GetOrCreateProfile(ctx, userID, "")
	if err != nil {
		return false, err
	}
	if referrerID == "" || referrerID == userID || p.ReferredBy != "" || p.TotalPoints > 0 {
		return false, nil
	}
	cycle, err := e.referredBy(ctx, referrerID, userID)
	if errors.Is(err, domerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil || cycle {
		return false, err
	}
	if err := e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{ReferredBy: &referrerID}); err != nil {
		return false, err
	}

	e.notify(ctx, referrerID, fmt.Sprintf(
		"🎉 Ваш друг присоединился по вашей ссылке! Вы получите бонус, как только он наберет %d очков.",
		e.catalog.ReferralThreshold))
	return true, nil
}

// referredBy reports whether ancestor appears in the referrer chain of
// userID. It returns domerrors.ErrNotFound when userID has no profile.
func (e *Engine) referredBy(ctx context.Context, userID, ancestor string) (bool, error) {
	seen := map[string]bool{}
	for id := userID; id != "" && !seen[id]; {
		seen[id] = true
		p, err := e.store.GetProfile(ctx, id)
		if err != nil {
			if id != userID && errors.Is(err, domerrors.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if p.ReferredBy == ancestor {
			return true, nil
		}
		id = p.ReferredBy
	}
	return false, nil
}

// EnsureProfile creates the profile of userID if needed and refreshes its
// display name when one is known.
func (e *Engine) EnsureProfile(ctx context.Context, userID, displayName string) (*storage.Profile, error) {
	p, err := e.store.GetOrCreateProfile(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	if displayName != "" && displayName != p.DisplayName {
		if err := e.store.UpdateProfile(ctx, userID, storage.ProfilePatch{DisplayName: &displayName}); err != nil {
			return p, err
		}
		p.DisplayName = displayName
	}
	return p, nil
}
