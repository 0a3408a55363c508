package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mosspond/wildspawn/pkg/chat"
)

func TestDispatchPrefixAndArgs(t *testing.T) {
	d := NewDispatcher(context.Background(), "pkmn ", false)
	argsCh := make(chan string, 1)
	d.Register("spawn", func(_ context.Context, _ chat.Message, args string) {
		argsCh <- args
	})

	if d.Dispatch(chat.Message{Channel: "pond", Text: "hello there"}) {
		t.Error("non-prefixed message dispatched")
	}
	if !d.Dispatch(chat.Message{Channel: "pond", Text: "pkmn spawn Pikachu"}) {
		t.Fatal("prefixed command not dispatched")
	}
	select {
	case args := <-argsCh:
		if args != "Pikachu" {
			t.Errorf("args = %q, want Pikachu", args)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestDispatchFirstRegisteredWins(t *testing.T) {
	d := NewDispatcher(context.Background(), "pkmn ", false)
	hit := make(chan string, 1)
	d.Register("start training", func(context.Context, chat.Message, string) { hit <- "training" })
	d.Register("start", func(context.Context, chat.Message, string) { hit <- "start" })

	d.Dispatch(chat.Message{Text: "pkmn start training"})
	select {
	case got := <-hit:
		if got != "training" {
			t.Errorf("handler %q ran, want the first-registered longer trigger", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no handler ran")
	}
}

func TestDispatchUnmatched(t *testing.T) {
	d := NewDispatcher(context.Background(), "pkmn ", true)
	unmatched := make(chan chat.Message, 1)
	d.onUnmatched = func(msg chat.Message) { unmatched <- msg }
	d.Register("spawn", func(context.Context, chat.Message, string) {})

	if d.Dispatch(chat.Message{Text: "pkmn dance"}) {
		t.Error("unmatched input reported as dispatched")
	}
	select {
	case <-unmatched:
	case <-time.After(time.Second):
		t.Fatal("strict mode produced no unmatched callback")
	}

	// Non-strict: silently ignored.
	d2 := NewDispatcher(context.Background(), "pkmn ", false)
	d2.onUnmatched = func(chat.Message) { t.Error("non-strict dispatcher called onUnmatched") }
	d2.Dispatch(chat.Message{Text: "pkmn dance"})
}

func TestDispatchPanicRecovered(t *testing.T) {
	d := NewDispatcher(context.Background(), "pkmn ", false)
	var errs atomic.Int64
	d.onError = func() { errs.Add(1) }
	d.Register("boom", func(context.Context, chat.Message, string) { panic("kaboom") })
	d.Register("ok", func(context.Context, chat.Message, string) {})

	d.Dispatch(chat.Message{Text: "pkmn boom"})
	if !d.Drain(time.Second) {
		t.Fatal("drain did not complete")
	}
	if errs.Load() != 1 {
		t.Errorf("error callback ran %d times, want 1", errs.Load())
	}
}

func TestDrainWaitsForHandlers(t *testing.T) {
	d := NewDispatcher(context.Background(), "pkmn ", false)
	release := make(chan struct{})
	d.Register("slow", func(context.Context, chat.Message, string) { <-release })

	d.Dispatch(chat.Message{Text: "pkmn slow"})
	if d.Drain(30 * time.Millisecond) {
		t.Fatal("drain reported complete with a handler in flight")
	}
	if d.InFlight() != 1 {
		t.Errorf("in flight = %d, want 1", d.InFlight())
	}

	// After drain starts, new messages are rejected.
	if d.Dispatch(chat.Message{Text: "pkmn slow"}) {
		t.Error("dispatch accepted after drain began")
	}

	close(release)
	if !d.Drain(time.Second) {
		t.Fatal("drain did not complete after handler release")
	}
}
