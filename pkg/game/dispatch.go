package game

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosspond/wildspawn/pkg/chat"
)

// HandlerFunc implements one chat command. args is the text after the
// trigger, trimmed. Handlers run on their own goroutine; ctx is cancelled
// when the game shuts down.
type HandlerFunc func(ctx context.Context, msg chat.Message, args string)

// command is one registered (trigger, handler) pair.
type command struct {
	trigger string
	fn      HandlerFunc
}

// Dispatcher routes inbound messages to at most one command handler by
// literal prefix match. Registration order is match priority; ties resolve
// first-registered-wins. Handlers launch concurrently and are tracked for
// graceful drain.
type Dispatcher struct {
	prefix string
	strict bool

	// commands is append-only during startup and read-only afterwards.
	commands []command

	baseCtx   context.Context
	wg        sync.WaitGroup
	inflight  atomic.Int64
	accepting atomic.Bool

	// onError is called when a handler panics; used for metrics. May be nil.
	onError func()
	// onUnmatched emits the strict-mode reply. May be nil.
	onUnmatched func(msg chat.Message)
}

// NewDispatcher creates a dispatcher for commands under the given literal
// prefix. strict makes unmatched prefixed input produce a reply instead of
// being silently ignored.
func NewDispatcher(ctx context.Context, prefix string, strict bool) *Dispatcher {
	d := &Dispatcher{
		prefix:  prefix,
		strict:  strict,
		baseCtx: ctx,
	}
	d.accepting.Store(true)
	return d
}

// Register appends a command. Triggers are matched against the text after
// the prefix; the first registered trigger that prefixes the text wins.
func (d *Dispatcher) Register(trigger string, fn HandlerFunc) {
	d.commands = append(d.commands, command{trigger: trigger, fn: fn})
}

// Dispatch routes one inbound message. Non-prefixed messages and messages
// arriving after shutdown are ignored. The selected handler runs on its own
// goroutine; a handler panic is logged and never crashes the dispatcher.
// Returns true when a handler was launched.
func (d *Dispatcher) Dispatch(msg chat.Message) bool {
	if !d.accepting.Load() {
		return false
	}
	if !strings.HasPrefix(msg.Text, d.prefix) {
		return false
	}
	rest := msg.Text[len(d.prefix):]
	for _, cmd := range d.commands {
		if !strings.HasPrefix(rest, cmd.trigger) {
			continue
		}
		args := strings.TrimSpace(rest[len(cmd.trigger):])
		d.launch(cmd, msg, args)
		return true
	}
	if d.strict && d.onUnmatched != nil {
		d.onUnmatched(msg)
	}
	return false
}

// launch runs a handler as a tracked in-flight task.
func (d *Dispatcher) launch(cmd command, msg chat.Message, args string) {
	d.wg.Add(1)
	d.inflight.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("dispatch: handler %q panicked: %v", cmd.trigger, r)
				if d.onError != nil {
					d.onError()
				}
			}
			d.inflight.Add(-1)
			d.wg.Done()
		}()
		cmd.fn(d.baseCtx, msg, args)
	}()
}

// InFlight returns the number of running handlers.
func (d *Dispatcher) InFlight() int {
	return int(d.inflight.Load())
}

// Drain stops accepting new messages and waits for in-flight handlers to
// finish, up to the timeout. Returns false when handlers were still running
// at the deadline; those are abandoned, not killed.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	d.accepting.Store(false)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.Printf("dispatch: drain timed out with %d handler(s) in flight", d.InFlight())
		return false
	}
}
