package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ratelimit"
)

const (
	testSecret = "test_channel_secret"
	testToken  = "reply-token-0123456789"
)

type fakeRouter struct {
	mu         sync.Mutex
	texts      []string
	postbacks  []string
	followers  map[string]string
	unfollowed []string
	replies    int
	panicOn    string
}

func (r *fakeRouter) answer() []lineutil.Reply {
	out := make([]lineutil.Reply, r.replies)
	for i := range out {
		out[i] = lineutil.Text("ответ")
	}
	return out
}

func (r *fakeRouter) HandleText(_ context.Context, userID, text string) []lineutil.Reply {
	if text == r.panicOn {
		panic("router exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, userID+":"+text)
	return r.answer()
}

func (r *fakeRouter) HandlePostback(_ context.Context, userID, data string) []lineutil.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postbacks = append(r.postbacks, userID+":"+data)
	return r.answer()
}

func (r *fakeRouter) HandleFollow(_ context.Context, userID, name string) []lineutil.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.followers == nil {
		r.followers = map[string]string{}
	}
	r.followers[userID] = name
	return r.answer()
}

func (r *fakeRouter) HandleUnfollow(_ context.Context, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unfollowed = append(r.unfollowed, userID)
}

func (r *fakeRouter) TooManyRequests() []lineutil.Reply {
	return []lineutil.Reply{lineutil.Text("slow down")}
}

type sent struct {
	via    string // "reply" or "push"
	target string
	count  int
	first  string
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sent
	replyErr error
}

func (m *fakeMessenger) Reply(_ context.Context, token string, replies []lineutil.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replyErr != nil {
		return m.replyErr
	}
	m.sent = append(m.sent, sent{"reply", token, len(replies), replies[0].Text})
	return nil
}

func (m *fakeMessenger) Push(_ context.Context, userID string, replies []lineutil.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{"push", userID, len(replies), replies[0].Text})
	return nil
}

func (m *fakeMessenger) all() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.sent...)
}

type fakePresence struct {
	mu      sync.Mutex
	loading []string
}

func (p *fakePresence) ShowLoading(_ context.Context, chatID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = append(p.loading, chatID)
	return nil
}

func (p *fakePresence) DisplayName(_ context.Context, userID string) (string, error) {
	if userID == "ghost" {
		return "", errors.New("profile unavailable")
	}
	return "Аня", nil
}

type webhookCounter struct {
	mu       sync.Mutex
	statuses []string
}

func (c *webhookCounter) RecordWebhook(eventType, status string, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, eventType+"/"+status)
}

type handlerFixture struct {
	h         *Handler
	router    *fakeRouter
	messenger *fakeMessenger
	presence  *fakePresence
	metrics   *webhookCounter
}

func newHandlerFixture(t *testing.T, limiter *ratelimit.KeyedLimiter) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		router:    &fakeRouter{replies: 1},
		messenger: &fakeMessenger{},
		presence:  &fakePresence{},
		metrics:   &webhookCounter{},
	}
	h, err := NewHandler(Config{
		ChannelSecret: testSecret,
		Router:        f.router,
		Messenger:     f.messenger,
		Presence:      f.presence,
		UserLimiter:   limiter,
		Metrics:       f.metrics,
		Bot: config.BotConfig{
			WebhookTimeout:      5 * time.Second,
			MaxEventsPerWebhook: 2,
			MinReplyTokenLength: 10,
		},
	})
	require.NoError(t, err)
	f.h = h
	return f
}

func (f *handlerFixture) dispatch(t *testing.T, events ...webhook.EventInterface) {
	t.Helper()
	f.h.Dispatch(events)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.h.Shutdown(ctx))
}

func textEvent(userID, text string) webhook.MessageEvent {
	return webhook.MessageEvent{
		Source:     webhook.UserSource{UserId: userID},
		ReplyToken: testToken,
		Message:    webhook.TextMessageContent{Text: text},
	}
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func serve(h *Handler, body, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.Handle)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const textBody = `{"destination":"Ubot","events":[{"type":"message","mode":"active","timestamp":1700000000000,` +
	`"source":{"type":"user","userId":"U1"},"webhookEventId":"01HEVENT","deliveryContext":{"isRedelivery":false},` +
	`"replyToken":"` + testToken + `","message":{"type":"text","id":"1","quoteToken":"q","text":"Стекло в Кургане"}}]}`

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(Config{Router: &fakeRouter{}, Messenger: &fakeMessenger{}})
	assert.Error(t, err)
	_, err = NewHandler(Config{ChannelSecret: testSecret})
	assert.Error(t, err)
}

func TestHandle_InvalidSignature(t *testing.T) {
	f := newHandlerFixture(t, nil)

	w := serve(f.h, textBody, "bm90LWEtc2lnbmF0dXJl")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, f.h.Shutdown(context.Background()))
	assert.Empty(t, f.router.texts)
}

func TestHandle_SignedMessage(t *testing.T) {
	f := newHandlerFixture(t, nil)

	w := serve(f.h, textBody, sign(textBody))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.h.Shutdown(ctx))

	assert.Equal(t, []string{"U1:Стекло в Кургане"}, f.router.texts)
	assert.Equal(t, []sent{{"reply", testToken, 1, "ответ"}}, f.messenger.all())
	assert.Equal(t, []string{"U1"}, f.presence.loading)
	assert.Equal(t, []string{"message/success"}, f.metrics.statuses)
}

func TestHandle_TruncatesEventBatch(t *testing.T) {
	f := newHandlerFixture(t, nil)
	event := `{"type":"message","mode":"active","timestamp":1,"source":{"type":"user","userId":"U1"},` +
		`"webhookEventId":"E","deliveryContext":{"isRedelivery":false},"replyToken":"` + testToken +
		`","message":{"type":"text","id":"1","quoteToken":"q","text":"привет"}}`
	body := `{"destination":"Ubot","events":[` + event + "," + event + "," + event + `]}`

	w := serve(f.h, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, f.h.Shutdown(context.Background()))
	assert.Len(t, f.router.texts, 2)
}

func TestDeliver_OverflowIsPushed(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.router.replies = 7

	f.dispatch(t, textEvent("U1", "привет"))
	assert.Equal(t, []sent{
		{"reply", testToken, 5, "ответ"},
		{"push", "U1", 2, "ответ"},
	}, f.messenger.all())
}

func TestDeliver_InvalidTokenFallsBackToPush(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.messenger.replyErr = errors.New("status code: 400, Invalid reply token")

	f.dispatch(t, textEvent("U1", "привет"))
	assert.Equal(t, []sent{{"push", "U1", 1, "ответ"}}, f.messenger.all())
}

func TestDeliver_ShortTokenIsPushed(t *testing.T) {
	f := newHandlerFixture(t, nil)
	ev := textEvent("U1", "привет")
	ev.ReplyToken = "short"

	f.dispatch(t, ev)
	assert.Equal(t, []sent{{"push", "U1", 1, "ответ"}}, f.messenger.all())
}

func TestDeliver_OtherReplyErrorIsReported(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.messenger.replyErr = errors.New("status code: 500")

	f.dispatch(t, textEvent("U1", "привет"))
	assert.Empty(t, f.messenger.all())
	assert.Equal(t, []string{"message/delivery_error"}, f.metrics.statuses)
}

func TestProcess_UserRateLimit(t *testing.T) {
	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{Name: "user", Burst: 1, RefillRate: ratelimit.PerHour(1)})
	t.Cleanup(limiter.Stop)
	f := newHandlerFixture(t, limiter)

	f.dispatch(t, textEvent("U1", "раз"), textEvent("U1", "два"), textEvent("U2", "три"))

	assert.ElementsMatch(t, []string{"U1:раз", "U2:три"}, f.router.texts)
	assert.Contains(t, f.messenger.all(), sent{"reply", testToken, 1, "slow down"})
	assert.Contains(t, f.metrics.statuses, "message/rate_limited")
}

func TestProcess_Postback(t *testing.T) {
	f := newHandlerFixture(t, nil)

	f.dispatch(t, webhook.PostbackEvent{
		Source:     webhook.UserSource{UserId: "U1"},
		ReplyToken: testToken,
		Postback:   &webhook.PostbackContent{Data: "action=more"},
	})
	assert.Equal(t, []string{"U1:action=more"}, f.router.postbacks)
}

func TestProcess_FollowAndUnfollow(t *testing.T) {
	f := newHandlerFixture(t, nil)

	f.dispatch(t,
		webhook.FollowEvent{Source: webhook.UserSource{UserId: "U1"}, ReplyToken: testToken},
		webhook.FollowEvent{Source: webhook.UserSource{UserId: "ghost"}, ReplyToken: testToken},
		webhook.UnfollowEvent{Source: webhook.UserSource{UserId: "U1"}},
	)

	assert.Equal(t, map[string]string{"U1": "Аня", "ghost": ""}, f.router.followers)
	assert.Equal(t, []string{"U1"}, f.router.unfollowed)
	assert.Len(t, f.messenger.all(), 2, "unfollow has nothing to deliver")
}

func TestProcess_GroupReplyGoesToGroup(t *testing.T) {
	f := newHandlerFixture(t, nil)

	f.dispatch(t, webhook.MessageEvent{
		Source:  webhook.GroupSource{GroupId: "G1", UserId: "U1"},
		Message: webhook.TextMessageContent{Text: "@Эко совет", Mention: selfMention(0, 4)},
	})
	assert.Equal(t, []string{"U1:совет"}, f.router.texts)
	assert.Equal(t, []sent{{"push", "G1", 1, "ответ"}}, f.messenger.all())
	assert.Equal(t, []string{"G1"}, f.presence.loading)
}

func TestProcess_PanicIsContained(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.router.panicOn = "boom"

	f.dispatch(t, textEvent("U1", "boom"), textEvent("U1", "after"))
	assert.Equal(t, []string{"U1:after"}, f.router.texts)
	assert.Contains(t, f.metrics.statuses, "message/panic")
}
