package game

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mosspond/wildspawn/pkg/events"
)

func TestSpawnerLifecycle(t *testing.T) {
	g, rec := newTestGame(t)

	if err := g.Tasks.StartSpawner("pond"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := g.Tasks.StartSpawner("pond"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start err = %v, want ErrAlreadyActive", err)
	}
	if g.Tasks.SpawnerCount() != 1 {
		t.Errorf("spawner count = %d", g.Tasks.SpawnerCount())
	}

	// The loop spawns promptly.
	rec.waitForEvent(t, func(ev events.Event) bool { return ev.Type == events.EvSpawn })

	if !g.Tasks.StopSpawner("pond") {
		t.Fatal("stop reported no active spawner")
	}
	if g.Tasks.StopSpawner("pond") {
		t.Error("second stop reported an active spawner")
	}
	waitFor(t, func() bool { return g.Tasks.SpawnerCount() == 0 })

	// Stopped means restartable.
	if err := g.Tasks.StartSpawner("pond"); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestSpawnerPerChannel(t *testing.T) {
	g, _ := newTestGame(t)
	if err := g.Tasks.StartSpawner("pond"); err != nil {
		t.Fatalf("start pond: %v", err)
	}
	if err := g.Tasks.StartSpawner("meadow"); err != nil {
		t.Fatalf("start meadow: %v", err)
	}
	if g.Tasks.SpawnerCount() != 2 {
		t.Errorf("spawner count = %d, want 2", g.Tasks.SpawnerCount())
	}
}

func TestTrainingCompletes(t *testing.T) {
	g, rec := newTestGame(t)
	if err := g.Tasks.StartTraining("alice", "pond"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := g.Tasks.StartTraining("alice", "pond"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start err = %v, want ErrAlreadyActive", err)
	}

	// TrainingDuration is 1s in the test conf; the timer completes naturally.
	ev := rec.waitForEvent(t, func(ev events.Event) bool { return ev.Type == events.EvTraining })
	if ev.User != "alice" {
		t.Errorf("completion sent to %q, want alice privately", ev.User)
	}
	if !strings.Contains(ev.Text, "Training finished.") {
		t.Errorf("completion text = %q", ev.Text)
	}
	waitFor(t, func() bool { return g.Tasks.TrainingCount() == 0 })

	if err := g.Tasks.StartTraining("alice", "pond"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
}

func TestTrainingEarlyStop(t *testing.T) {
	g, rec := newTestGame(t)
	g.Conf.TrainingDuration = 3600

	if err := g.Tasks.StartTraining("alice", "pond"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !g.Tasks.StopTraining("alice") {
		t.Fatal("stop reported no active training")
	}

	// Elapsed time is under a minute, so zero experience is awarded.
	ev := rec.waitForEvent(t, func(ev events.Event) bool { return ev.Type == events.EvTraining })
	if !strings.Contains(ev.Text, "0 minutes") {
		t.Errorf("early-stop text = %q", ev.Text)
	}
	if g.Tasks.StopTraining("alice") {
		t.Error("second stop reported active training")
	}
}

func TestStopAllCancelsEverything(t *testing.T) {
	g, _ := newTestGame(t)
	g.Conf.TrainingDuration = 3600
	g.Tasks.StartSpawner("pond")
	g.Tasks.StartTraining("alice", "pond")

	g.Tasks.StopAll()
	if g.Tasks.SpawnerCount() != 0 || g.Tasks.TrainingCount() != 0 {
		t.Errorf("live tasks after StopAll: %d spawners, %d training",
			g.Tasks.SpawnerCount(), g.Tasks.TrainingCount())
	}
	// A dropped training session awards nothing and stays silent.
	time.Sleep(50 * time.Millisecond)
}
