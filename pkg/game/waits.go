package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mosspond/wildspawn/pkg/chat"
)

// ErrTimedOut is returned by Await when no qualifying message arrived in
// time.
var ErrTimedOut = errors.New("wait timed out")

// Scope restricts which messages a wait may claim. An empty Author matches
// any sender in the channel.
type Scope struct {
	Channel string
	Author  string
}

// matches reports whether a message falls inside the scope.
func (s Scope) matches(msg chat.Message) bool {
	if msg.Channel != s.Channel {
		return false
	}
	return s.Author == "" || msg.Author == s.Author
}

// waitReq is one registered wait. Its channel has capacity 1 and receives
// exactly one message ever: claim and removal happen under the registry
// lock, so resolution is exactly-once.
type waitReq struct {
	id    uint64
	scope Scope
	pred  func(chat.Message) bool
	ch    chan chat.Message
}

// Waits suspends handlers until a qualifying message arrives or a deadline
// passes. Claims are first-registered-wins over the currently live requests.
type Waits struct {
	mu      sync.Mutex
	seq     uint64
	pending []*waitReq
}

// NewWaits creates an empty wait registry.
func NewWaits() *Waits {
	return &Waits{}
}

// Active returns the number of live waits.
func (w *Waits) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Offer presents an incoming message to the live waits in registration
// order. The first wait whose scope and predicate accept the message claims
// it and is retired; at most one wait resolves per message. Returns true
// when the message was claimed.
func (w *Waits) Offer(msg chat.Message) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, req := range w.pending {
		if !req.scope.matches(msg) || !req.pred(msg) {
			continue
		}
		w.pending = append(w.pending[:i], w.pending[i+1:]...)
		req.ch <- msg
		return true
	}
	return false
}

// remove retires a wait if it is still live. Returns false when the wait
// was already claimed by a concurrent Offer.
func (w *Waits) remove(req *waitReq) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.pending {
		if r == req {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Await suspends until a message matching scope and pred arrives, the
// timeout elapses (ErrTimedOut), or ctx is cancelled. Only messages
// arriving strictly after registration are considered. A timeout and a
// match are mutually exclusive: if a claim lands while the timer is firing,
// the claim wins and the message is returned.
func (w *Waits) Await(ctx context.Context, scope Scope, pred func(chat.Message) bool, timeout time.Duration) (chat.Message, error) {
	req := &waitReq{
		scope: scope,
		pred:  pred,
		ch:    make(chan chat.Message, 1),
	}
	w.mu.Lock()
	w.seq++
	req.id = w.seq
	w.pending = append(w.pending, req)
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-req.ch:
		return msg, nil
	case <-timer.C:
		if w.remove(req) {
			return chat.Message{}, ErrTimedOut
		}
		// A claim raced the timer; the message is already buffered.
		return <-req.ch, nil
	case <-ctx.Done():
		if w.remove(req) {
			return chat.Message{}, ctx.Err()
		}
		return <-req.ch, nil
	}
}
