package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/challenge"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/snapshot"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

type fakeSweeper struct {
	res   challenge.SweepResult
	err   error
	calls atomic.Int32
}

func (f *fakeSweeper) Sweep(context.Context) (challenge.SweepResult, error) {
	f.calls.Add(1)
	return f.res, f.err
}

type fakePusher struct {
	mu       sync.Mutex
	got      map[string]string
	fail     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newFakePusher() *fakePusher {
	return &fakePusher{got: map[string]string{}, fail: map[string]error{}}
}

func (p *fakePusher) Push(_ context.Context, userID string, replies []lineutil.Reply) error {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[userID]; err != nil {
		return err
	}
	p.got[userID] = replies[0].Text
	return nil
}

type jobCounter struct {
	mu   sync.Mutex
	runs map[string][]string
}

func (c *jobCounter) RecordJob(job, status string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runs == nil {
		c.runs = map[string][]string{}
	}
	c.runs[job] = append(c.runs[job], status)
}

type fakeSnapshotter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSnapshotter) Upload(context.Context, snapshot.Source) (snapshot.Result, error) {
	f.calls.Add(1)
	return snapshot.Result{ETag: "e1"}, f.err
}

func testSchedule() config.Schedule {
	return config.Schedule{ChallengeSweep: "10:00", DailyTip: "11:00", Snapshot: "03:00"}
}

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.NewTestDB(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func subscribe(t *testing.T, db *storage.DB, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := db.AddSubscriber(context.Background(), u)
		require.NoError(t, err)
	}
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.Schedule == (config.Schedule{}) {
		cfg.Schedule = testSchedule()
	}
	if cfg.Sweeper == nil {
		cfg.Sweeper = &fakeSweeper{}
	}
	if cfg.Pusher == nil {
		cfg.Pusher = newFakePusher()
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestBroadcastTip(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	db := newTestDB(t)
	subscribe(t, db, "U1", "U2", "U3", "U4")
	pusher := newFakePusher()
	pusher.fail["U3"] = fmt.Errorf("%w: push: 403", domerrors.ErrRecipientBlocked)
	pusher.fail["U4"] = errors.New("push: 500 internal error")

	s := newTestScheduler(t, Config{
		Subscribers: db,
		Pusher:      pusher,
		Tips:        []string{"Сдавайте батарейки отдельно.", "Берите с собой сумку."},
		Concurrency: 2,
		Intn:        func(int) int { return 1 },
	})

	res, err := s.BroadcastTip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BroadcastResult{Recipients: 4, Sent: 2, Unsubscribed: 1, Failed: 1}, res)

	want := "💡 Эко-совет дня:\n\nБерите с собой сумку."
	assert.Equal(t, map[string]string{"U1": want, "U2": want}, pusher.got)

	left, err := db.ListSubscribers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2", "U4"}, left)
}

func TestBroadcastTip_BoundedConcurrency(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	db := newTestDB(t)
	users := make([]string, 12)
	for i := range users {
		users[i] = fmt.Sprintf("U%02d", i)
	}
	subscribe(t, db, users...)
	pusher := newFakePusher()
	pusher.delay = 10 * time.Millisecond

	s := newTestScheduler(t, Config{Subscribers: db, Pusher: pusher, Tips: []string{"совет"}, Concurrency: 3})

	res, err := s.BroadcastTip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Sent)
	assert.LessOrEqual(t, pusher.peak.Load(), int32(3))
	assert.Len(t, pusher.got, 12)
}

func TestBroadcastTip_NothingToSend(t *testing.T) {
	db := newTestDB(t)
	pusher := newFakePusher()

	s := newTestScheduler(t, Config{Subscribers: db, Pusher: pusher, Tips: []string{"совет"}})
	res, err := s.BroadcastTip(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Recipients)

	subscribe(t, db, "U1")
	s = newTestScheduler(t, Config{Subscribers: db, Pusher: pusher})
	res, err = s.BroadcastTip(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Recipients)
	assert.Empty(t, pusher.got)
}

func TestBroadcastTip_ListFailure(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())

	s := newTestScheduler(t, Config{Subscribers: db, Tips: []string{"совет"}})
	_, err := s.BroadcastTip(context.Background())
	require.ErrorContains(t, err, "list subscribers")
}

func TestRunJob_RecordsOutcome(t *testing.T) {
	metrics := &jobCounter{}
	sweeper := &fakeSweeper{res: challenge.SweepResult{Completed: 1}}
	s := newTestScheduler(t, Config{Subscribers: newTestDB(t), Sweeper: sweeper, Metrics: metrics})

	s.runJob(JobChallengeSweep, time.Second, s.RunSweep)
	sweeper.err = errors.New("db locked")
	s.runJob(JobChallengeSweep, time.Second, s.RunSweep)
	s.runJob("boom", time.Second, func(context.Context) error { panic("bad job") })

	assert.Equal(t, int32(2), sweeper.calls.Load())
	assert.Equal(t, []string{"success", "error"}, metrics.runs[JobChallengeSweep])
	assert.Equal(t, []string{"panic"}, metrics.runs["boom"])
}

func TestRunJob_TagsContextWithJob(t *testing.T) {
	s := newTestScheduler(t, Config{Subscribers: newTestDB(t)})

	var got string
	s.runJob(JobDailyTip, time.Second, func(ctx context.Context) error {
		got = ctxutil.GetJob(ctx)
		return nil
	})
	assert.Equal(t, JobDailyTip, got)
}

func TestRunSnapshot(t *testing.T) {
	snap := &fakeSnapshotter{}
	db := newTestDB(t)
	s := newTestScheduler(t, Config{Subscribers: db, Snapshot: snap, Source: db})
	require.NoError(t, s.RunSnapshot(context.Background()))
	assert.Equal(t, int32(1), snap.calls.Load())

	snap.err = errors.New("bucket gone")
	require.ErrorContains(t, s.RunSnapshot(context.Background()), "bucket gone")

	noSnap := newTestScheduler(t, Config{Subscribers: db})
	require.NoError(t, noSnap.RunSnapshot(context.Background()))
}

func TestNew_RegistersDailyJobs(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	db := newTestDB(t)

	s := newTestScheduler(t, Config{
		Location:    loc,
		Subscribers: db,
		Snapshot:    &fakeSnapshotter{},
		Source:      db,
	})
	s.Start()

	next := s.NextRuns()
	require.Len(t, next, 3)
	for name, wantHour := range map[string]int{JobChallengeSweep: 10, JobDailyTip: 11, JobSnapshot: 3} {
		at := next[name].In(loc)
		assert.Equal(t, wantHour, at.Hour(), name)
		assert.Zero(t, at.Minute(), name)
		assert.True(t, at.After(time.Now()), name)
	}
}

func TestNew_SnapshotJobOptional(t *testing.T) {
	s := newTestScheduler(t, Config{Subscribers: newTestDB(t)})
	s.Start()

	next := s.NextRuns()
	assert.Len(t, next, 2)
	assert.NotContains(t, next, JobSnapshot)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{
		Schedule:    config.Schedule{ChallengeSweep: "25:99", DailyTip: "11:00"},
		Sweeper:     &fakeSweeper{},
		Subscribers: newTestDB(t),
		Pusher:      newFakePusher(),
	})
	require.ErrorContains(t, err, JobChallengeSweep)
}
