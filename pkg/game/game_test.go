package game

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mosspond/wildspawn/pkg/boltstore"
	"github.com/mosspond/wildspawn/pkg/chat"
	"github.com/mosspond/wildspawn/pkg/events"
	"github.com/mosspond/wildspawn/pkg/species"
)

// recorder collects every event on the bus for assertions.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Receive(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Closed() bool { return false }

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// waitForEvent polls until an event passes match or the deadline hits.
func (r *recorder) waitForEvent(t *testing.T, match func(events.Event) bool) events.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range r.all() {
			if match(ev) {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event never arrived; saw %v", r.all())
	return events.Event{}
}

func (r *recorder) waitForText(t *testing.T, substr string) events.Event {
	t.Helper()
	return r.waitForEvent(t, func(ev events.Event) bool {
		return strings.Contains(ev.Text, substr)
	})
}

func testGameCatalog() *species.Catalog {
	return species.New([]species.Data{
		{ID: 1, Name: "Bulbasaur", Types: []string{"Grass", "Poison"}, EvoLevel: 16, EvoTargets: []int{2}},
		{ID: 2, Name: "Ivysaur", Types: []string{"Grass", "Poison"}, EvoLevel: 32, EvoTargets: []int{3}},
		{ID: 3, Name: "Venusaur", Types: []string{"Grass", "Poison"}, EvoLevel: species.NeverEvolves},
		{ID: 132, Name: "Ditto", Types: []string{"Normal"}, EvoLevel: species.NeverEvolves},
	})
}

// newTestGame builds a game with fast timeouts around a throwaway store.
func newTestGame(t *testing.T) (*Game, *recorder) {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "game.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	conf := DefaultGameConf()
	conf.CatchTimeout = 1
	conf.TradeTimeout = 1
	conf.TrainingDuration = 1
	conf.SpawnIntervalMin = 1
	conf.SpawnIntervalMax = 1
	conf.DrainTimeout = 2

	g := NewGame(conf, testGameCatalog(), store, nil)
	t.Cleanup(g.Stop)

	rec := &recorder{}
	g.Bus.SubscribeGlobal(rec)
	return g, rec
}

func say(g *Game, author, text string) {
	g.HandleMessage(chat.Message{Author: author, Channel: "pond", Text: text})
}

func TestBotOwnMessagesIgnored(t *testing.T) {
	g, rec := newTestGame(t)
	g.Conf.StrictCommands = true
	g.HandleMessage(chat.Message{Author: g.Conf.BotName, Channel: "pond", Text: "pkmn nonsense"})
	time.Sleep(50 * time.Millisecond)
	if len(rec.all()) != 0 {
		t.Errorf("bot-authored message produced events: %v", rec.all())
	}
}

func TestUnknownCommandStrict(t *testing.T) {
	g, rec := newTestGame(t)
	g.Conf.StrictCommands = true
	g.Dispatcher.strict = true
	say(g, "alice", "pkmn dance")
	ev := rec.waitForText(t, "Unknown command.")
	if ev.Type != events.EvNotice {
		t.Errorf("reply type = %s", ev.Type)
	}
}

func TestHelpCommand(t *testing.T) {
	g, rec := newTestGame(t)
	say(g, "alice", "pkmn help")
	ev := rec.waitForText(t, "Commands:")
	if !strings.Contains(ev.Text, "spawn") || !strings.Contains(ev.Text, "trade") {
		t.Errorf("help text incomplete: %q", ev.Text)
	}
}

func TestShutdownCommand(t *testing.T) {
	g, rec := newTestGame(t)
	say(g, "alice", "pkmn shutdown")
	rec.waitForText(t, "Shutting down.")
	select {
	case <-g.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown never requested")
	}
}
