// Package bot routes incoming LINE events through the conversation cascade:
// menu buttons, help, explicit search, remaining buttons, fallback point
// info, the knowledge base and finally the language model.
package bot

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/challenge"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/extract"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/gamification"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/genai"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/knowledge"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/locator"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/logger"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ratelimit"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/sentry"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

// Cascade stages, used as metric labels.
const (
	stageCommand      = "command"
	stageButton       = "button"
	stageHelp         = "help"
	stageSearch       = "search"
	stageInfo         = "info"
	stageKnowledge    = "knowledge"
	stageLLMSearch    = "llm_search"
	stageLLMHelp      = "llm_help"
	stageLLMChallenge = "llm_challenge"
	stageLLMGeneral   = "llm_general"
	stageVague        = "vague"
	stageLLMLimited   = "llm_limited"
	stagePostback     = "postback"
	stageStale        = "stale"
	stageFollow       = "follow"
	stageError        = "error"
)

// Subscribers is the daily tip subscription store.
type Subscribers interface {
	AddSubscriber(ctx context.Context, userID string) (bool, error)
	RemoveSubscriber(ctx context.Context, userID string) (bool, error)
	IsSubscriber(ctx context.Context, userID string) (bool, error)
}

// MetricsRecorder receives the terminal stage of every event. May be nil.
type MetricsRecorder interface {
	RecordRoute(stage string)
}

// Config holds the router dependencies.
type Config struct {
	Catalog     *config.Catalog
	Dataset     *data.Dataset
	Sessions    session.Store
	Engine      *gamification.Engine
	Challenges  *challenge.Manager
	Subscribers Subscribers
	Assistant   genai.Assistant         // nil disables classification, answers and quizzes
	LLMLimiter  *ratelimit.KeyedLimiter // nil means unlimited
	Quizzes     *QuizTracker
	Metrics     MetricsRecorder
	Logger      *logger.Logger
	InviteURL   string
	Intn        func(n int) int // defaults to math/rand/v2.IntN
}

// Router is the conversation cascade. It is safe for concurrent use; events
// of one user are expected to arrive serialized.
type Router struct {
	cat        *config.Catalog
	extractor  *extract.Extractor
	matcher    *knowledge.Matcher
	locator    *locator.Locator
	tips       []string
	quizFacts  []string
	sessions   session.Store
	engine     *gamification.Engine
	challenges *challenge.Manager
	subs       Subscribers
	assistant  genai.Assistant
	llmLimiter *ratelimit.KeyedLimiter
	quizzes    *QuizTracker
	metrics    MetricsRecorder
	logger     *logger.Logger
	inviteURL  string
	intn       func(n int) int

	menu    []string
	buttons map[string]action
}

type action func(ctx context.Context, userID string) ([]lineutil.Reply, error)

// New builds a router and indexes the datasets.
func New(cfg Config) *Router {
	ds := cfg.Dataset
	if ds == nil {
		ds = &data.Dataset{}
	}
	r := &Router{
		cat:        cfg.Catalog,
		extractor:  extract.New(cfg.Catalog),
		matcher:    knowledge.NewMatcher(ds.Knowledge, cfg.Catalog.StopWords),
		locator:    locator.New(ds.Points, cfg.Catalog.Synonyms),
		tips:       ds.Tips,
		sessions:   cfg.Sessions,
		engine:     cfg.Engine,
		challenges: cfg.Challenges,
		subs:       cfg.Subscribers,
		assistant:  cfg.Assistant,
		llmLimiter: cfg.LLMLimiter,
		quizzes:    cfg.Quizzes,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		inviteURL:  cfg.InviteURL,
		intn:       cfg.Intn,
		menu:       cfg.Catalog.Buttons.All(),
	}
	if r.sessions == nil {
		r.sessions = session.NewMemoryStore(1000)
	}
	if r.quizzes == nil {
		r.quizzes = NewQuizTracker(1000)
	}
	if r.logger == nil {
		r.logger = logger.New("error")
	}
	if r.intn == nil {
		r.intn = rand.IntN
	}
	maxLen := cfg.Catalog.Tuning.QuizFactMaxLen
	for _, f := range slices.Concat(ds.Facts, ds.Tips) {
		if maxLen <= 0 || stringutil.RuneLen(f) <= maxLen {
			r.quizFacts = append(r.quizFacts, f)
		}
	}

	b := cfg.Catalog.Buttons
	r.buttons = map[string]action{
		stringutil.Normalize(b.Recycled):    r.recycled,
		stringutil.Normalize(b.Profile):     r.profile,
		stringutil.Normalize(b.Leaderboard): r.leaderboard,
		stringutil.Normalize(b.Quiz):        r.quiz,
		stringutil.Normalize(b.Invite):      r.invite,
	}
	return r
}

// HandleText runs the cascade for a text message and returns the response:
// notifications raised while handling it, then the answer itself.
func (r *Router) HandleText(ctx context.Context, userID, text string) []lineutil.Reply {
	return r.run(ctx, userID, "message", func(ctx context.Context) ([]lineutil.Reply, error) {
		return r.cascade(ctx, userID, strings.TrimSpace(text))
	})
}

// HandlePostback answers a button press.
func (r *Router) HandlePostback(ctx context.Context, userID, data string) []lineutil.Reply {
	return r.run(ctx, userID, "postback", func(ctx context.Context) ([]lineutil.Reply, error) {
		return r.postback(ctx, userID, data)
	})
}

// HandleFollow creates the profile of a new follower and greets them.
func (r *Router) HandleFollow(ctx context.Context, userID, displayName string) []lineutil.Reply {
	return r.run(ctx, userID, "follow", func(ctx context.Context) ([]lineutil.Reply, error) {
		if _, err := r.engine.EnsureProfile(ctx, userID, displayName); err != nil {
			return nil, err
		}
		r.record(stageFollow)
		return []lineutil.Reply{lineutil.Text(textWelcome)}, nil
	})
}

// HandleUnfollow drops the subscription and dialogue state of a user who
// blocked the bot.
func (r *Router) HandleUnfollow(ctx context.Context, userID string) {
	r.sessions.Evict(userID)
	if _, err := r.subs.RemoveSubscriber(ctx, userID); err != nil {
		r.logger.WithError(err).WarnContext(ctx, "failed to unsubscribe unfollowed user", "user_id", userID)
	}
}

// TooManyRequests is the reply to a user over the message rate limit.
func (r *Router) TooManyRequests() []lineutil.Reply {
	return []lineutil.Reply{lineutil.Text(textUserRateLimited)}
}

// run collects notifications for userID, recovers a panic once and turns
// any error into the apology.
func (r *Router) run(ctx context.Context, userID, stage string, fn func(context.Context) ([]lineutil.Reply, error)) (replies []lineutil.Reply) {
	ctx, batch := WithBatch(ctx, userID)
	tags := sentry.Tags{UserID: userID, Stage: stage}

	defer func() {
		if rec := recover(); rec != nil {
			err := sentry.RecoverPanic(ctx, rec, tags)
			r.logger.WithError(err).ErrorContext(ctx, "panic while handling event", "stage", stage)
			r.record(stageError)
			replies = r.finish(batch.Drain(), []lineutil.Reply{lineutil.Text(textApology)})
		}
	}()

	main, err := fn(ctx)
	if err != nil {
		sentry.CaptureError(ctx, err, tags)
		r.logger.WithError(err).ErrorContext(ctx, "failed to handle event", "stage", stage)
		r.record(stageError)
		main = []lineutil.Reply{lineutil.Text(textApology)}
	}
	return r.finish(batch.Drain(), main)
}

// finish orders notifications before the answer and attaches the main menu
// to the last message.
func (r *Router) finish(notes, main []lineutil.Reply) []lineutil.Reply {
	out := slices.Concat(notes, main)
	if len(out) == 0 {
		return nil
	}
	last := len(out) - 1
	out[last] = out[last].WithMenu(r.menu)
	return out
}

func (r *Router) cascade(ctx context.Context, userID, text string) ([]lineutil.Reply, error) {
	if text == "" {
		return nil, nil
	}
	// Every user who writes gets a profile, so they can be named as a referrer.
	if _, err := r.engine.EnsureProfile(ctx, userID, ""); err != nil {
		return nil, err
	}
	if strings.HasPrefix(text, "/") {
		if replies, ok, err := r.command(ctx, userID, text); ok {
			r.record(stageCommand)
			return replies, err
		}
	}

	norm := stringutil.Normalize(text)
	clean := strings.Join(strings.Fields(stringutil.Clean(text)), " ")

	// 1. Menu buttons.
	if act, ok := r.buttons[norm]; ok {
		r.record(stageButton)
		return act(ctx, userID)
	}

	// 2. Help.
	if slices.Contains(r.cat.HelpTriggers, clean) {
		r.record(stageHelp)
		return r.help(), nil
	}

	// 3. Explicit search. A bare city completes a keyword offered earlier.
	ent := r.extractor.Extract(text)
	if ent.City != "" {
		material := ent.Material
		if material == "" {
			if sess, ok := r.sessions.Get(userID); ok {
				material = sess.PendingMaterial
			}
		}
		if material != "" {
			r.record(stageSearch)
			return r.search(userID, material, ent.City, ent.District, true), nil
		}
	}

	// 4. Remaining buttons.
	b := r.cat.Buttons
	switch {
	case norm == stringutil.Normalize(b.Challenge):
		r.record(stageButton)
		return r.challengeMenu(ctx, userID)
	case norm == stringutil.Normalize(b.Tip):
		r.record(stageButton)
		return r.tip(ctx, userID)
	case hasFirstWord(norm, b.FindPoint):
		r.record(stageButton)
		return []lineutil.Reply{lineutil.Text(textFindPrompt)}, nil
	case hasFirstWord(norm, b.Question):
		r.record(stageButton)
		return []lineutil.Reply{lineutil.Text(textQuestionPrompt)}, nil
	}

	// 5. Fallback point details.
	if answer, ok := r.infoRequest(norm); ok {
		r.record(stageInfo)
		return []lineutil.Reply{lineutil.Text(answer)}, nil
	}

	// 6. Knowledge base.
	if m := r.matcher.Match(text); m.Answer != "" {
		r.record(stageKnowledge)
		reply := lineutil.Text(m.Answer)
		if m.ContextKeyword != "" {
			reply.Buttons = []lineutil.Button{lineutil.Postback(
				"Найти пункты для '"+m.ContextKeyword+"'",
				Postback{Action: actionContextSearch, Keyword: m.ContextKeyword}.Encode(),
			)}
		}
		r.remember(userID, text, m.Answer)
		return []lineutil.Reply{reply}, nil
	}

	// 7. Language model.
	return r.classified(ctx, userID, text, clean), nil
}

func (r *Router) classified(ctx context.Context, userID, text, clean string) []lineutil.Reply {
	if !r.allowLLM(userID) {
		r.record(stageLLMLimited)
		return []lineutil.Reply{lineutil.Text(textLLMRateLimited)}
	}

	intent := genai.IntentGeneral
	if r.assistant != nil {
		llmCtx, cancel := context.WithTimeout(ctx, config.LLMRequest)
		got, err := r.assistant.ClassifyIntent(llmCtx, clean)
		cancel()
		if err != nil {
			r.logger.WithError(err).WarnContext(ctx, "intent classification failed; treating as general")
		} else {
			intent = got
		}
	}

	switch intent {
	case genai.IntentSearch:
		r.record(stageLLMSearch)
		ent := r.extractor.Extract(text)
		city := ent.City
		if city == "" {
			city = r.cat.DefaultCity
		}
		return r.search(userID, ent.Material, city, ent.District, false)
	case genai.IntentHelp:
		r.record(stageLLMHelp)
		return r.help()
	case genai.IntentChallenge:
		r.record(stageLLMChallenge)
		return []lineutil.Reply{r.challengeList()}
	}

	if len(strings.Fields(text)) <= 2 && slices.Contains(r.cat.VagueReplies, clean) {
		r.record(stageVague)
		r.remember(userID, text, textVague)
		return []lineutil.Reply{lineutil.Text(textVague)}
	}

	r.record(stageLLMGeneral)
	return []lineutil.Reply{lineutil.Text(r.answer(ctx, userID, text))}
}

// answer asks the model with the bounded history. Failed answers are not
// added to the history.
func (r *Router) answer(ctx context.Context, userID, text string) string {
	if r.assistant == nil {
		return textLLMUnavailable
	}
	var history []session.Turn
	if sess, ok := r.sessions.Get(userID); ok {
		history = sess.History
	}

	llmCtx, cancel := context.WithTimeout(ctx, config.LLMRequest)
	defer cancel()
	reply, err := r.assistant.Answer(llmCtx, text, history)
	if err != nil {
		r.logger.WithError(err).WarnContext(ctx, "answer generation failed")
		if errors.Is(err, domerrors.ErrCapabilityUnavailable) {
			return textLLMUnavailable
		}
		return textLLMFailed
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return textLLMFailed
	}
	r.remember(userID, text, reply)
	return reply
}

func (r *Router) remember(userID, question, answer string) {
	r.sessions.Update(userID, func(c *session.Context) {
		c.AddTurns(r.cat.Tuning.HistoryCapacity,
			session.Turn{Role: session.RoleUser, Content: question},
			session.Turn{Role: session.RoleAssistant, Content: answer},
		)
	})
}

func (r *Router) allowLLM(userID string) bool {
	return r.llmLimiter == nil || r.llmLimiter.Allow(userID)
}

func (r *Router) help() []lineutil.Reply {
	return []lineutil.Reply{lineutil.Text(helpText(r.cat.Points))}
}

func (r *Router) record(stage string) {
	if r.metrics != nil {
		r.metrics.RecordRoute(stage)
	}
}

// hasFirstWord reports whether text starts with the first word of label.
func hasFirstWord(text, label string) bool {
	fields := strings.Fields(stringutil.Normalize(label))
	return len(fields) > 0 && strings.HasPrefix(text, fields[0])
}
