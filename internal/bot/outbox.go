package bot

import (
	"context"
	"sync"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/ctxutil"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/gamification"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/lineutil"
)

type batchKey struct{}

// Batch collects the notifications raised for the user whose event is being
// handled, so they travel with the reply instead of a separate push.
type Batch struct {
	userID  string
	mu      sync.Mutex
	replies []lineutil.Reply
}

// WithBatch attaches a new batch for userID to ctx.
func WithBatch(ctx context.Context, userID string) (context.Context, *Batch) {
	b := &Batch{userID: userID}
	return context.WithValue(ctx, batchKey{}, b), b
}

func batchFrom(ctx context.Context) *Batch {
	b, _ := ctx.Value(batchKey{}).(*Batch)
	return b
}

func (b *Batch) add(r lineutil.Reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies = append(b.replies, r)
}

// Drain returns and clears the collected replies.
func (b *Batch) Drain() []lineutil.Reply {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.replies
	b.replies = nil
	return out
}

// Outbox delivers engine notifications. A notification for the user of the
// current event joins its batch; anything else is pushed.
type Outbox struct {
	push gamification.Notifier
}

var _ gamification.Notifier = (*Outbox)(nil)

// NewOutbox creates an outbox pushing through push. A nil push drops
// notifications that cannot join a batch.
func NewOutbox(push gamification.Notifier) *Outbox {
	return &Outbox{push: push}
}

// Notify implements gamification.Notifier.
func (o *Outbox) Notify(ctx context.Context, userID, text string) error {
	if b := batchFrom(ctx); b != nil && b.userID == userID {
		b.add(lineutil.Text(text))
		return nil
	}
	if o.push == nil {
		return nil
	}
	sendCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), config.OutboundSend)
	defer cancel()
	return o.push.Notify(sendCtx, userID, text)
}
