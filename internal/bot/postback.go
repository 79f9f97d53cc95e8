package bot

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	domerrors "github.com/YulsKumanikina/eco-ekb-bot/internal/errors"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/stringutil"
)

// Postback actions.
const (
	actionMore            = "more"
	actionSubscribe       = "sub"
	actionUnsubscribe     = "unsub"
	actionShowChallenge   = "chs"
	actionAcceptChallenge = "cha"
	actionListChallenges  = "chl"
	actionCancelChallenge = "chc"
	actionKeepChallenge   = "keep"
	actionContextSearch   = "ctx"
	actionQuiz            = "quiz"
)

// maxKeywordRunes keeps an escaped Cyrillic keyword inside the 300-byte
// postback limit.
const maxKeywordRunes = 40

// Postback is the decoded payload of a button. Data is a URL query string
// such as "action=quiz&id=<uuid>&opt=2".
type Postback struct {
	Action  string
	ID      string
	Keyword string
	Option  int
}

// Encode renders p as postback data.
func (p Postback) Encode() string {
	v := url.Values{}
	v.Set("action", p.Action)
	if p.ID != "" {
		v.Set("id", p.ID)
	}
	if p.Keyword != "" {
		v.Set("kw", stringutil.Truncate(p.Keyword, maxKeywordRunes))
	}
	if p.Action == actionQuiz {
		v.Set("opt", strconv.Itoa(p.Option))
	}
	return v.Encode()
}

// ParsePostback decodes data. Unknown or malformed data yields
// domerrors.ErrStaleCallback.
func ParsePostback(data string) (Postback, error) {
	v, err := url.ParseQuery(data)
	if err != nil {
		return Postback{}, fmt.Errorf("%w: %w", domerrors.ErrStaleCallback, err)
	}
	p := Postback{
		Action:  v.Get("action"),
		ID:      v.Get("id"),
		Keyword: v.Get("kw"),
	}
	switch p.Action {
	case actionMore, actionSubscribe, actionUnsubscribe, actionListChallenges,
		actionCancelChallenge, actionKeepChallenge:
	case actionShowChallenge, actionAcceptChallenge:
		if p.ID == "" {
			return Postback{}, fmt.Errorf("%w: %s without id", domerrors.ErrStaleCallback, p.Action)
		}
	case actionContextSearch:
		if p.Keyword == "" {
			return Postback{}, fmt.Errorf("%w: empty keyword", domerrors.ErrStaleCallback)
		}
	case actionQuiz:
		opt, err := strconv.Atoi(v.Get("opt"))
		if p.ID == "" || err != nil || opt < 0 {
			return Postback{}, fmt.Errorf("%w: bad quiz answer %q", domerrors.ErrStaleCallback, data)
		}
		p.Option = opt
	default:
		return Postback{}, fmt.Errorf("%w: unknown action %q", domerrors.ErrStaleCallback, p.Action)
	}
	return p, nil
}

func postbackData(action string) string {
	return Postback{Action: action}.Encode()
}

func isStale(err error) bool {
	return errors.Is(err, domerrors.ErrStaleCallback)
}
