package events

import "testing"

// recordingSub collects received events and can simulate a dropped client.
type recordingSub struct {
	events []Event
	closed bool
}

func (s *recordingSub) Receive(ev Event) { s.events = append(s.events, ev) }
func (s *recordingSub) Closed() bool     { return s.closed }

func TestEmitRoutesByChannel(t *testing.T) {
	bus := NewBus()
	a := &recordingSub{}
	b := &recordingSub{}
	bus.Subscribe("pond", a)
	bus.Subscribe("meadow", b)

	bus.Emit(Event{Type: EvNotice, Channel: "pond", Text: "hello"})

	if len(a.events) != 1 || a.events[0].Text != "hello" {
		t.Errorf("pond subscriber got %v", a.events)
	}
	if len(b.events) != 0 {
		t.Errorf("meadow subscriber got %v", b.events)
	}
}

func TestEmitRoutesByUser(t *testing.T) {
	bus := NewBus()
	alice := &recordingSub{}
	bob := &recordingSub{}
	bus.SubscribeUser("alice", alice)
	bus.SubscribeUser("bob", bob)

	bus.Emit(Event{Type: EvTraining, User: "alice", Text: "done"})

	if len(alice.events) != 1 {
		t.Errorf("alice got %d events, want 1", len(alice.events))
	}
	if len(bob.events) != 0 {
		t.Errorf("bob got %d events, want 0", len(bob.events))
	}
}

func TestEmitReachesGlobal(t *testing.T) {
	bus := NewBus()
	global := &recordingSub{}
	bus.SubscribeGlobal(global)

	bus.Emit(Event{Type: EvCatch, Channel: "pond"})
	bus.Emit(Event{Type: EvTraining, User: "alice"})

	if len(global.events) != 2 {
		t.Errorf("global subscriber got %d events, want 2", len(global.events))
	}
}

func TestClosedSubscriberSkipped(t *testing.T) {
	bus := NewBus()
	sub := &recordingSub{closed: true}
	bus.Subscribe("pond", sub)

	bus.Emit(Event{Type: EvNotice, Channel: "pond"})
	if len(sub.events) != 0 {
		t.Errorf("closed subscriber received %d events", len(sub.events))
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := &recordingSub{}
	bus.Subscribe("pond", sub)
	bus.Unsubscribe("pond", sub)

	bus.Emit(Event{Type: EvNotice, Channel: "pond"})
	if len(sub.events) != 0 {
		t.Errorf("unsubscribed subscriber received %d events", len(sub.events))
	}
	if bus.ChannelSubscribers("pond") != 0 {
		t.Errorf("channel still has %d subscribers", bus.ChannelSubscribers("pond"))
	}
}

func TestCleanupDropsClosed(t *testing.T) {
	bus := NewBus()
	live := &recordingSub{}
	dead := &recordingSub{closed: true}
	bus.Subscribe("pond", live)
	bus.Subscribe("pond", dead)
	bus.SubscribeUser("alice", dead)

	bus.Cleanup()

	if n := bus.ChannelSubscribers("pond"); n != 1 {
		t.Errorf("pond has %d subscribers after cleanup, want 1", n)
	}
	bus.Emit(Event{Type: EvTraining, User: "alice"})
	if len(dead.events) != 0 {
		t.Error("cleaned-up user subscriber still received events")
	}
}

func TestEventTypeString(t *testing.T) {
	cases := map[EventType]string{
		EvNotice:   "notice",
		EvSpawn:    "spawn",
		EvCatch:    "catch",
		EvEscape:   "escape",
		EvTrade:    "trade",
		EvTraining: "training",
		EvShow:     "show",
		EvShutdown: "shutdown",
	}
	for ty, want := range cases {
		if got := ty.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", ty, got, want)
		}
	}
}
