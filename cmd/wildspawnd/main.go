// Command wildspawnd runs the creature-catching chat game server: a
// websocket chat endpoint in front of the game engine, a bbolt record
// store, and an optional SQLite activity ledger.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mosspond/wildspawn/pkg/boltstore"
	"github.com/mosspond/wildspawn/pkg/chat"
	"github.com/mosspond/wildspawn/pkg/game"
	"github.com/mosspond/wildspawn/pkg/species"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		confPath    = flag.String("config", envDefault("WILDSPAWN_CONFIG", ""), "path to YAML config file")
		boltPath    = flag.String("db", envDefault("WILDSPAWN_DB", ""), "override bolt database path")
		speciesPath = flag.String("species", envDefault("WILDSPAWN_SPECIES", ""), "override species CSV path")
		webPort     = flag.Int("port", 0, "override web listen port")
	)
	flag.Parse()

	conf := game.DefaultGameConf()
	if *confPath != "" {
		var err error
		conf, err = game.LoadGameConf(*confPath)
		if err != nil {
			log.Fatalf("main: %v", err)
		}
	}
	if *boltPath != "" {
		conf.BoltPath = *boltPath
	}
	if *speciesPath != "" {
		conf.SpeciesPath = *speciesPath
	}
	if *webPort != 0 {
		conf.WebPort = *webPort
	}

	catalog, err := species.LoadCSV(conf.SpeciesPath)
	if err != nil {
		log.Fatalf("main: load species: %v", err)
	}
	log.Printf("main: loaded %d species from %s", catalog.Len(), conf.SpeciesPath)

	store, err := boltstore.Open(conf.BoltPath)
	if err != nil {
		log.Fatalf("main: open store: %v", err)
	}

	var ledger *game.Ledger
	if conf.LedgerPath != "" {
		ledger, err = game.OpenLedger(conf.LedgerPath)
		if err != nil {
			log.Fatalf("main: open ledger: %v", err)
		}
	}

	g := game.NewGame(conf, catalog, store, ledger)
	g.Metrics = game.NewMetrics()

	stopWatch := make(chan struct{})
	if g.Texts != nil {
		if err := g.Texts.Watch(stopWatch); err != nil {
			log.Printf("main: text watch disabled: %v", err)
		}
	}
	if ledger != nil {
		ledger.StartRetentionCleanup(conf.LedgerWait(), stopWatch)
	}

	srv := chat.NewServer(chat.Config{
		Host:           conf.WebHost,
		Port:           conf.WebPort,
		AllowedOrigins: conf.AllowedOrigins,
	}, g.Bus, g.HandleMessage, g.Metrics.Handler(g))

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("main: received %s, shutting down", s)
	case <-g.ShutdownRequested():
		log.Printf("main: shutdown requested in game, shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Printf("main: server error: %v", err)
		}
	}

	close(stopWatch)
	g.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Printf("main: server stop: %v", err)
	}
	if ledger != nil {
		if err := ledger.Close(); err != nil {
			log.Printf("main: ledger close: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		log.Printf("main: store close: %v", err)
	}
	log.Printf("main: goodbye")
}
