package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/gamification"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (n *recordingNotifier) Notify(_ context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string][]string{}
	}
	n.sent[userID] = append(n.sent[userID], text)
	return nil
}

func (n *recordingNotifier) texts(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent[userID]...)
}

// staleStore replays a fixed listing regardless of the stored records.
type staleStore struct {
	*storage.DB
	listing []storage.ChallengeInstance
}

func (s *staleStore) ListChallenges(context.Context) ([]storage.ChallengeInstance, error) {
	return s.listing, nil
}

type fixture struct {
	db       *storage.DB
	manager  *Manager
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T, store func(*storage.DB) Store) *fixture {
	t.Helper()
	db, err := storage.NewTestDB(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:       db,
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	cat := config.DefaultCatalog()
	clock := func() time.Time { return f.now }
	engine := gamification.New(gamification.Config{
		Store: db, Locks: db.Locks(), Catalog: cat, Notifier: f.notifier, Now: clock,
	})
	var s Store = db
	if store != nil {
		s = store(db)
	}
	f.manager = New(Config{
		Store: s, Locks: db.Locks(), Catalog: cat, Awarder: engine, Notifier: f.notifier, Now: clock,
	})
	return f
}

func (f *fixture) advance(days int) {
	f.now = f.now.AddDate(0, 0, days)
}

func TestAccept_UnknownChallenge(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.manager.Accept(context.Background(), "U1", "nope")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestAccept_ReplacesRunningChallenge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.manager.Accept(ctx, "U1", "no_bags")
	require.NoError(t, err)
	f.advance(2)
	ch, err := f.manager.Accept(ctx, "U1", "no_bottles")
	require.NoError(t, err)
	assert.Equal(t, "Без одноразовых бутылок", ch.Title)

	cur, err := f.manager.Current(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "no_bottles", cur.Challenge.ID)
	assert.Equal(t, 1, cur.Day)
}

func TestCurrent_DayNumber(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cur, err := f.manager.Current(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, err = f.manager.Accept(ctx, "U1", "no_bags")
	require.NoError(t, err)
	f.advance(3)
	cur, err = f.manager.Current(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, 4, cur.Day)
}

func TestCancel_NoReward(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.manager.Accept(ctx, "U1", "no_bottles")
	require.NoError(t, err)
	cancelled, err := f.manager.Cancel(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = f.manager.Cancel(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, cancelled)

	f.advance(5)
	res, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Completed)
	_, err = f.db.GetProfile(ctx, "U1")
	assert.ErrorIs(t, err, domerrors.ErrNotFound, "cancelling never touches the profile")
}

func TestSweep_RemindersEverySecondDay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.manager.Accept(ctx, "U1", "no_bags")
	require.NoError(t, err)

	var reminded []int
	for day := range 7 {
		res, err := f.manager.Sweep(ctx)
		require.NoError(t, err)
		if res.Reminded > 0 {
			reminded = append(reminded, day)
		}
		f.advance(1)
	}
	assert.Equal(t, []int{1, 3, 5}, reminded)
	assert.Equal(t, "День 2: Не забудьте сумку для покупок сегодня!", f.notifier.texts("U1")[0])
}

func TestSweep_Completion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.manager.Accept(ctx, "U1", "no_bottles")
	require.NoError(t, err)
	f.advance(3)

	res, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	p, err := f.db.GetProfile(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ChallengesCompleted)
	// 75 for the challenge and 20 for the first achievement.
	assert.Equal(t, 95, p.TotalPoints)

	texts := f.notifier.texts("U1")
	assert.Contains(t, texts, "За завершение челленджа «Без одноразовых бутылок»\n\nВы получили 75 Эко-Очков!")
	assert.Equal(t, "Готово! Три дня без одноразового пластика.", texts[len(texts)-1])

	cur, err := f.manager.Current(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	res, err = f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Completed)
}

func TestSweep_SkipsRecordsChangedSinceListing(t *testing.T) {
	var stale *staleStore
	f := newFixture(t, func(db *storage.DB) Store {
		stale = &staleStore{DB: db}
		return stale
	})
	ctx := context.Background()

	start := storage.Day(f.now)
	stale.listing = []storage.ChallengeInstance{{UserID: "U1", ChallengeID: "no_bottles", StartDate: start}}

	f.advance(3)
	res, err := f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Completed, "record already gone")

	_, err = f.manager.Accept(ctx, "U1", "no_bags")
	require.NoError(t, err)
	res, err = f.manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Completed, "record replaced by another challenge")

	cur, err := f.manager.Current(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "no_bags", cur.Challenge.ID)
}
