// Package scheduler runs the bot's daily jobs: the challenge sweep, the
// tip broadcast and the optional database snapshot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/bot"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/challenge"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/snapshot"
)

// Job names, used in logs and metrics.
const (
	JobChallengeSweep = "challenge_sweep"
	JobDailyTip       = "daily_tip"
	JobSnapshot       = "snapshot"
)

// Sweeper advances running challenges.
type Sweeper interface {
	Sweep(ctx context.Context) (challenge.SweepResult, error)
}

// Subscribers is the daily tip audience.
type Subscribers interface {
	ListSubscribers(ctx context.Context) ([]string, error)
	RemoveSubscriber(ctx context.Context, userID string) (bool, error)
}

// Pusher sends proactive messages.
type Pusher interface {
	Push(ctx context.Context, userID string, replies []lineutil.Reply) error
}

// Snapshotter uploads database snapshots.
type Snapshotter interface {
	Upload(ctx context.Context, src snapshot.Source) (snapshot.Result, error)
}

// MetricsRecorder receives job outcomes. May be nil.
type MetricsRecorder interface {
	RecordJob(job, status string, duration time.Duration)
}

// Config holds the scheduler dependencies.
type Config struct {
	Schedule    config.Schedule
	Location    *time.Location
	Sweeper     Sweeper
	Subscribers Subscribers
	Pusher      Pusher
	Tips        []string
	Concurrency int // parallel pushes during the broadcast

	// Snapshot and Source are both required for the snapshot job.
	Snapshot Snapshotter
	Source   snapshot.Source

	Metrics MetricsRecorder
	Logger  *logger.Logger
	Intn    func(n int) int
}

// BroadcastResult summarizes one tip broadcast.
type BroadcastResult struct {
	Recipients   int
	Sent         int
	Unsubscribed int
	Failed       int
}

// Scheduler owns the cron and the jobs it triggers.
type Scheduler struct {
	cron        gocron.Scheduler
	sweeper     Sweeper
	subscribers Subscribers
	pusher      Pusher
	tips        []string
	concurrency int
	snap        Snapshotter
	source      snapshot.Source
	metrics     MetricsRecorder
	logger      *logger.Logger
	intn        func(int) int

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler and registers its jobs. Nothing runs until Start.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Sweeper == nil || cfg.Subscribers == nil || cfg.Pusher == nil {
		return nil, errors.New("scheduler: sweeper, subscribers and pusher are required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cron, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("scheduler: create cron: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:        cron,
		sweeper:     cfg.Sweeper,
		subscribers: cfg.Subscribers,
		pusher:      cfg.Pusher,
		tips:        cfg.Tips,
		concurrency: max(cfg.Concurrency, 1),
		snap:        cfg.Snapshot,
		source:      cfg.Source,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		intn:        cfg.Intn,
		ctx:         ctx,
		cancel:      cancel,
	}
	if s.logger == nil {
		s.logger = logger.New("error")
	}
	if s.intn == nil {
		s.intn = rand.IntN
	}

	jobs := []dailyJob{
		{JobChallengeSweep, cfg.Schedule.ChallengeSweep, config.ChallengeSweepTimeout, s.RunSweep},
		{JobDailyTip, cfg.Schedule.DailyTip, config.BroadcastTimeout, func(ctx context.Context) error {
			_, err := s.BroadcastTip(ctx)
			return err
		}},
	}
	if s.snap != nil && s.source != nil && cfg.Schedule.Snapshot != "" {
		jobs = append(jobs, dailyJob{JobSnapshot, cfg.Schedule.Snapshot, config.SnapshotUploadTimeout, s.RunSnapshot})
	}

	for _, j := range jobs {
		if err := s.addDaily(j); err != nil {
			cancel()
			_ = cron.Shutdown()
			return nil, err
		}
	}
	return s, nil
}

type dailyJob struct {
	name    string
	at      string // "HH:MM" in the scheduler's location
	timeout time.Duration
	run     func(context.Context) error
}

func (s *Scheduler) addDaily(j dailyJob) error {
	hour, minute, err := config.ParseClock(j.at)
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", j.name, err)
	}
	_, err = s.cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(func() { s.runJob(j.name, j.timeout, j.run) }),
		gocron.WithName(j.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", j.name, err)
	}
	return nil
}

// Start begins triggering jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	for name, next := range s.NextRuns() {
		s.logger.Info("job scheduled", "job", name, "next_run", next)
	}
}

// Shutdown cancels running jobs and stops the cron.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.cron.Shutdown()
}

// NextRuns returns the next trigger time of every registered job.
func (s *Scheduler) NextRuns() map[string]time.Time {
	out := make(map[string]time.Time)
	for _, j := range s.cron.Jobs() {
		if next, err := j.NextRun(); err == nil {
			out[j.Name()] = next
		}
	}
	return out
}

func (s *Scheduler) runJob(name string, timeout time.Duration, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctxutil.WithJob(s.ctx, name), timeout)
	defer cancel()
	start := time.Now()
	status := "success"
	defer func() {
		if rec := recover(); rec != nil {
			status = "panic"
			s.logger.ErrorContext(ctx, "job panicked", "panic", rec)
		}
		if s.metrics != nil {
			s.metrics.RecordJob(name, status, time.Since(start))
		}
	}()

	if err := run(ctx); err != nil {
		status = "error"
		s.logger.WithError(err).ErrorContext(ctx, "job failed", "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.InfoContext(ctx, "job finished", "duration_ms", time.Since(start).Milliseconds())
}

// RunSweep completes and reminds running challenges.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	res, err := s.sweeper.Sweep(ctx)
	s.logger.InfoContext(ctx, "challenge sweep",
		"completed", res.Completed, "reminded", res.Reminded, "failed", res.Failed)
	return err
}

// BroadcastTip pushes one random tip to every subscriber. Subscribers who
// blocked the bot are removed; other failures are counted and logged.
func (s *Scheduler) BroadcastTip(ctx context.Context) (BroadcastResult, error) {
	var res BroadcastResult
	if len(s.tips) == 0 {
		s.logger.WarnContext(ctx, "no tips to broadcast")
		return res, nil
	}
	users, err := s.subscribers.ListSubscribers(ctx)
	if err != nil {
		return res, fmt.Errorf("list subscribers: %w", err)
	}
	res.Recipients = len(users)
	if len(users) == 0 {
		return res, nil
	}

	tip := []lineutil.Reply{lineutil.Text(bot.DailyTipText(s.tips[s.intn(len(s.tips))]))}
	var sent, unsubscribed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, userID := range users {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			pushCtx, cancel := context.WithTimeout(gctx, config.OutboundSend)
			defer cancel()
			err := s.pusher.Push(pushCtx, userID, tip)
			switch {
			case err == nil:
				sent.Add(1)
			case lineutil.IsBlocked(err):
				if _, rmErr := s.subscribers.RemoveSubscriber(gctx, userID); rmErr != nil {
					s.logger.WithError(rmErr).WarnContext(gctx, "failed to unsubscribe blocked user", "user_id", userID)
					failed.Add(1)
					return nil
				}
				unsubscribed.Add(1)
			default:
				s.logger.WithError(err).WarnContext(gctx, "failed to push daily tip", "user_id", userID)
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Sent = int(sent.Load())
	res.Unsubscribed = int(unsubscribed.Load())
	res.Failed = int(failed.Load())
	s.logger.InfoContext(ctx, "daily tip broadcast",
		"recipients", res.Recipients, "sent", res.Sent,
		"unsubscribed", res.Unsubscribed, "failed", res.Failed)
	return res, ctx.Err()
}

// RunSnapshot uploads a database snapshot.
func (s *Scheduler) RunSnapshot(ctx context.Context) error {
	if s.snap == nil || s.source == nil {
		return nil
	}
	_, err := s.snap.Upload(ctx, s.source)
	return err
}
