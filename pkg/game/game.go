// Package game is the concurrent command/session engine: message dispatch,
// deadline-bound waits, background spawner/training tasks, and the command
// handlers that tie them to the inventory.
package game

import (
	"context"
	"log"
	"sync"

	"github.com/mosspond/wildspawn/pkg/boltstore"
	"github.com/mosspond/wildspawn/pkg/chat"
	"github.com/mosspond/wildspawn/pkg/events"
	"github.com/mosspond/wildspawn/pkg/inventory"
	"github.com/mosspond/wildspawn/pkg/species"
)

// Game wires the engine together. All cross-component access goes through
// explicit calls; no component reaches into another's internal state.
type Game struct {
	Conf       *GameConf
	Catalog    *species.Catalog
	Store      *boltstore.Store
	Rules      *inventory.Rules
	Bus        *events.Bus
	Ledger     *Ledger // nil when the activity ledger is disabled
	Texts      *Texts  // nil when no text dir is configured
	Waits      *Waits
	Tasks      *Tasks
	Dispatcher *Dispatcher
	Metrics    *Metrics // nil outside the served process

	rootCtx    context.Context
	rootCancel context.CancelFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewGame builds a game around its collaborators and registers the command
// table. ledger may be nil.
func NewGame(conf *GameConf, catalog *species.Catalog, store *boltstore.Store, ledger *Ledger) *Game {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	g := &Game{
		Conf:       conf,
		Catalog:    catalog,
		Store:      store,
		Rules:      inventory.NewRules(store, conf.TeamCapacity),
		Bus:        events.NewBus(),
		Ledger:     ledger,
		Waits:      NewWaits(),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		shutdownCh: make(chan struct{}),
	}
	g.Tasks = newTasks(g)
	g.Dispatcher = NewDispatcher(rootCtx, conf.CommandPrefix, conf.StrictCommands)
	g.Dispatcher.onUnmatched = func(msg chat.Message) {
		g.notice(msg.Channel, "Unknown command.")
	}
	g.Dispatcher.onError = func() {
		if g.Metrics != nil {
			g.Metrics.HandlerError()
		}
	}
	g.registerCommands()

	if ledger != nil {
		g.Bus.SubscribeGlobal(NewActivityWriter(ledger))
	}
	if conf.TextDir != "" {
		g.Texts = LoadTexts(conf.TextDir)
	}
	return g
}

// HandleMessage is the transport entry point. Messages authored by the bot
// itself are ignored. Every other message is first offered to the live
// waits; only unclaimed messages are considered for command dispatch.
func (g *Game) HandleMessage(msg chat.Message) {
	if msg.Author == g.Conf.BotName {
		return
	}
	if g.Metrics != nil {
		g.Metrics.Message()
	}
	if g.Waits.Offer(msg) {
		return
	}
	if g.Dispatcher.Dispatch(msg) && g.Metrics != nil {
		g.Metrics.Command()
	}
}

// Shutdown requests process shutdown. Safe to call more than once.
func (g *Game) Shutdown() {
	g.shutdownOnce.Do(func() { close(g.shutdownCh) })
}

// ShutdownRequested is closed when a shutdown has been requested.
func (g *Game) ShutdownRequested() <-chan struct{} {
	return g.shutdownCh
}

// Stop tears the engine down: background tasks are cancelled, in-flight
// waits abort, and the dispatcher drains up to the configured grace period.
// Handlers still running past the deadline are abandoned.
func (g *Game) Stop() {
	g.Tasks.StopAll()
	g.rootCancel()
	if g.Dispatcher.Drain(g.Conf.DrainWait()) {
		log.Printf("game: all handlers drained")
	}
}

// notice emits a plain text reply to a channel.
func (g *Game) notice(channel, text string) {
	g.Bus.Emit(events.Event{Type: events.EvNotice, Channel: channel, Text: text})
}
