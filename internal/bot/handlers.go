package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/session"
)

const referralPrefix = "ref_"

// command runs a slash command. ok is false for unknown commands, which then
// go through the cascade like any other text.
func (r *Router) command(ctx context.Context, userID, text string) (replies []lineutil.Reply, ok bool, err error) {
	fields := strings.Fields(text)
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	var act action
	switch name {
	case "/start":
		replies, err = r.start(ctx, userID, fields[1:])
		return replies, true, err
	case "/help":
		return r.help(), true, nil
	case "/profile":
		act = r.profile
	case "/leaderboard":
		act = r.leaderboard
	case "/quiz":
		act = r.quiz
	case "/invite":
		act = r.invite
	case "/recycled":
		act = r.recycled
	case "/subscribe":
		act = r.subscribe
	case "/unsubscribe":
		act = r.unsubscribe
	default:
		return nil, false, nil
	}
	replies, err = act(ctx, userID)
	return replies, true, err
}

// start greets the user and records the referrer of "/start ref_<userID>".
func (r *Router) start(ctx context.Context, userID string, args []string) ([]lineutil.Reply, error) {
	if len(args) > 0 && strings.HasPrefix(args[0], referralPrefix) {
		referrer := strings.TrimPrefix(args[0], referralPrefix)
		recorded, err := r.engine.RegisterReferral(ctx, userID, referrer)
		if err != nil {
			return nil, err
		}
		r.logger.InfoContext(ctx, "referral code used", "user_id", userID, "referrer", referrer, "recorded", recorded)
	}
	return []lineutil.Reply{lineutil.Text(textWelcome)}, nil
}

func (r *Router) recycled(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	_, err := r.engine.ReportRecycled(ctx, userID)
	if errors.Is(err, domerrors.ErrAlreadyDoneToday) {
		return []lineutil.Reply{lineutil.Text(textRecycledTwice)}, nil
	}
	// The award notifications are the answer.
	return nil, err
}

func (r *Router) profile(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	v, err := r.engine.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []lineutil.Reply{lineutil.Text(profileText(v))}, nil
}

func (r *Router) leaderboard(ctx context.Context, _ string) ([]lineutil.Reply, error) {
	entries, err := r.engine.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	return []lineutil.Reply{lineutil.Text(leaderboardText(entries))}, nil
}

func (r *Router) invite(_ context.Context, userID string) ([]lineutil.Reply, error) {
	reply := lineutil.Text(inviteText(userID, r.cat.Points, r.cat.ReferralThreshold))
	if r.inviteURL != "" {
		reply.Buttons = []lineutil.Button{lineutil.Link(labelAddBot, r.inviteURL)}
	}
	return []lineutil.Reply{reply}, nil
}

func (r *Router) subscribe(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	if _, err := r.subs.AddSubscriber(ctx, userID); err != nil {
		return nil, err
	}
	return []lineutil.Reply{lineutil.Text(textSubscribed)}, nil
}

func (r *Router) unsubscribe(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	if _, err := r.subs.RemoveSubscriber(ctx, userID); err != nil {
		return nil, err
	}
	return []lineutil.Reply{lineutil.Text(textUnsubscribed)}, nil
}

// tip shows a random tip, pays the daily tip point and offers the
// subscription toggle.
func (r *Router) tip(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	text := textNoTips
	if len(r.tips) > 0 {
		text = tipText(r.tips[r.intn(len(r.tips))])
	}
	if _, err := r.engine.ClaimTip(ctx, userID); err != nil {
		return nil, err
	}
	subscribed, err := r.subs.IsSubscriber(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := lineutil.Text(text)
	if subscribed {
		reply.Buttons = []lineutil.Button{lineutil.Postback(labelUnsubscribe, postbackData(actionUnsubscribe))}
	} else {
		reply.Buttons = []lineutil.Button{lineutil.Postback(labelSubscribe, postbackData(actionSubscribe))}
	}
	return []lineutil.Reply{reply}, nil
}

// challengeMenu shows the running challenge, or the list when there is none.
func (r *Router) challengeMenu(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	cur, err := r.challenges.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return []lineutil.Reply{r.challengeList()}, nil
	}
	return []lineutil.Reply{{
		Text: activeChallengeText(cur.Challenge.Title, cur.Day, cur.Challenge.DurationDays),
		Buttons: []lineutil.Button{
			lineutil.Postback(labelCancelAndPick, postbackData(actionCancelChallenge)),
			lineutil.Postback(labelKeep, postbackData(actionKeepChallenge)),
		},
	}}, nil
}

func (r *Router) challengeList() lineutil.Reply {
	list := r.challenges.List()
	buttons := make([]lineutil.Button, 0, len(list))
	for _, ch := range list {
		buttons = append(buttons, lineutil.Postback(ch.Title, Postback{Action: actionShowChallenge, ID: ch.ID}.Encode()))
	}
	return lineutil.Reply{Text: textChooseChallenge, Buttons: buttons}
}

func challengeDetails(ch config.Challenge) lineutil.Reply {
	return lineutil.Reply{
		Title: ch.Title,
		Text:  challengeDetailsText(ch),
		Buttons: []lineutil.Button{
			lineutil.Postback(labelAccept, Postback{Action: actionAcceptChallenge, ID: ch.ID}.Encode()),
			lineutil.Postback(labelBack, postbackData(actionListChallenges)),
		},
	}
}

// quiz claims today's attempt and asks a generated question. The attempt is
// given back when no question can be produced.
func (r *Router) quiz(ctx context.Context, userID string) ([]lineutil.Reply, error) {
	ticket, err := r.engine.StartQuiz(ctx, userID)
	if errors.Is(err, domerrors.ErrAlreadyDoneToday) {
		return []lineutil.Reply{lineutil.Text(textQuizTwice)}, nil
	}
	if err != nil {
		return nil, err
	}

	abort := func(text string, cause error) ([]lineutil.Reply, error) {
		if cause != nil {
			r.logger.WithError(cause).WarnContext(ctx, "quiz generation failed", "user_id", userID)
		}
		if err := r.engine.AbortQuiz(ctx, ticket); err != nil {
			return nil, err
		}
		return []lineutil.Reply{lineutil.Text(text)}, nil
	}

	if r.assistant == nil || len(r.quizFacts) == 0 {
		return abort(textQuizFailed, nil)
	}
	if !r.allowLLM(userID) {
		r.record(stageLLMLimited)
		return abort(textLLMRateLimited, nil)
	}

	fact := r.quizFacts[r.intn(len(r.quizFacts))]
	llmCtx, cancel := context.WithTimeout(ctx, config.LLMRequest)
	q, err := r.assistant.GenerateQuiz(llmCtx, fact)
	cancel()
	if err != nil {
		return abort(textQuizFailed, err)
	}

	options, correct := q.Options(r.perm(len(q.Wrong) + 1))
	id := r.quizzes.Add(userID, options, correct)

	var text strings.Builder
	text.WriteString(q.Question)
	text.WriteString("\n")
	buttons := make([]lineutil.Button, 0, len(options))
	for i, opt := range options {
		fmt.Fprintf(&text, "\n%d. %s", i+1, opt)
		buttons = append(buttons, lineutil.Postback(
			fmt.Sprintf("%d. %s", i+1, opt),
			Postback{Action: actionQuiz, ID: id, Option: i}.Encode(),
		))
	}
	return []lineutil.Reply{{Title: "🧠 Эко-викторина", Text: text.String(), Buttons: buttons}}, nil
}

func (r *Router) answerQuiz(ctx context.Context, userID string, pb Postback) ([]lineutil.Reply, error) {
	q, ok := r.quizzes.Take(pb.ID, userID)
	if !ok {
		r.record(stageStale)
		return []lineutil.Reply{lineutil.Text(textStale)}, nil
	}
	correct := pb.Option == q.correct
	if err := r.engine.AnswerQuiz(ctx, userID, correct); err != nil {
		return nil, err
	}
	if correct {
		return []lineutil.Reply{lineutil.Text("✅ Правильно! " + q.options[q.correct])}, nil
	}
	return []lineutil.Reply{lineutil.Text(textQuizWrong + "\n\nПравильный ответ: " + q.options[q.correct])}, nil
}

// perm returns a random permutation of 0..n-1.
func (r *Router) perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := r.intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

func (r *Router) postback(ctx context.Context, userID, data string) ([]lineutil.Reply, error) {
	pb, err := ParsePostback(data)
	if err != nil {
		r.logger.DebugContext(ctx, "unusable postback", "data", data, "error", err)
		r.record(stageStale)
		return []lineutil.Reply{lineutil.Text(textStale)}, nil
	}
	r.record(stagePostback)

	switch pb.Action {
	case actionMore:
		return r.more(userID), nil
	case actionSubscribe:
		return r.subscribe(ctx, userID)
	case actionUnsubscribe:
		return r.unsubscribe(ctx, userID)
	case actionListChallenges:
		return []lineutil.Reply{r.challengeList()}, nil
	case actionShowChallenge:
		ch, err := r.challenges.Lookup(pb.ID)
		if err != nil {
			return r.staleOr(err)
		}
		return []lineutil.Reply{challengeDetails(ch)}, nil
	case actionAcceptChallenge:
		ch, err := r.challenges.Accept(ctx, userID, pb.ID)
		if err != nil {
			return r.staleOr(err)
		}
		return []lineutil.Reply{lineutil.Text(ch.StartMessage)}, nil
	case actionCancelChallenge:
		if _, err := r.challenges.Cancel(ctx, userID); err != nil {
			return nil, err
		}
		return []lineutil.Reply{r.challengeList()}, nil
	case actionKeepChallenge:
		return []lineutil.Reply{lineutil.Text(textKeepChallenge)}, nil
	case actionContextSearch:
		r.sessions.Update(userID, func(c *session.Context) {
			c.PendingMaterial = pb.Keyword
		})
		return []lineutil.Reply{lineutil.Text(contextSearchText(pb.Keyword))}, nil
	case actionQuiz:
		return r.answerQuiz(ctx, userID, pb)
	}
	return []lineutil.Reply{lineutil.Text(textStale)}, nil
}

func (r *Router) staleOr(err error) ([]lineutil.Reply, error) {
	if errors.Is(err, domerrors.ErrNotFound) || isStale(err) {
		r.record(stageStale)
		return []lineutil.Reply{lineutil.Text(textStale)}, nil
	}
	return nil, err
}
