package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/mosspond/wildspawn/pkg/events"
)

// ErrAlreadyActive is returned by idempotent starts when a task is already
// live under the same key.
var ErrAlreadyActive = errors.New("already active")

// spawnerHandle is one live per-channel spawner loop.
type spawnerHandle struct {
	cancel context.CancelFunc
}

// trainingHandle is one live per-user training timer.
type trainingHandle struct {
	user      string
	channel   string
	startedAt time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// Tasks manages the long-lived cancellable background work: at most one
// spawner loop per channel and one training timer per user. Keys are
// removed from the live sets before any task cleanup runs, so a stop racing
// a natural completion never double-removes and a restart is always
// possible.
type Tasks struct {
	g      *Game
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	spawners map[string]*spawnerHandle
	training map[string]*trainingHandle
}

// newTasks creates the registry. Tasks stop when the game shuts down.
func newTasks(g *Game) *Tasks {
	base, cancel := context.WithCancel(context.Background())
	return &Tasks{
		g:        g,
		base:     base,
		cancel:   cancel,
		spawners: make(map[string]*spawnerHandle),
		training: make(map[string]*trainingHandle),
	}
}

// SpawnerCount returns the number of live spawner loops.
func (t *Tasks) SpawnerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spawners)
}

// TrainingCount returns the number of live training timers.
func (t *Tasks) TrainingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.training)
}

// StartSpawner starts the recurring spawn loop for a channel. A second
// start for an already-active channel is a no-op reporting ErrAlreadyActive.
func (t *Tasks) StartSpawner(channel string) error {
	t.mu.Lock()
	if _, ok := t.spawners[channel]; ok {
		t.mu.Unlock()
		return fmt.Errorf("spawner for %s: %w", channel, ErrAlreadyActive)
	}
	ctx, cancel := context.WithCancel(t.base)
	h := &spawnerHandle{cancel: cancel}
	t.spawners[channel] = h
	t.mu.Unlock()

	go t.spawnerLoop(ctx, channel, h)
	return nil
}

// StopSpawner cancels a channel's spawner loop. The key leaves the live set
// before the cancel signal fires. Returns false when none was active.
func (t *Tasks) StopSpawner(channel string) bool {
	t.mu.Lock()
	h, ok := t.spawners[channel]
	if ok {
		delete(t.spawners, channel)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	return true
}

// spawnerLoop repeats {encounter, random pause} until cancelled. An
// in-progress catch wait aborts via the loop context.
func (t *Tasks) spawnerLoop(ctx context.Context, channel string, h *spawnerHandle) {
	defer t.clearSpawner(channel, h)
	for {
		if ctx.Err() != nil {
			return
		}
		t.g.RunEncounter(ctx, channel, "")
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.spawnPause()):
		}
	}
}

// spawnPause picks a uniform random pause between encounters.
func (t *Tasks) spawnPause() time.Duration {
	min, max := t.g.Conf.SpawnIntervalMin, t.g.Conf.SpawnIntervalMax
	return time.Duration(min+rand.Intn(max-min+1)) * time.Second
}

// clearSpawner removes the handle if it still owns the key. A stop followed
// by a fresh start must not lose the successor's entry.
func (t *Tasks) clearSpawner(channel string, h *spawnerHandle) {
	t.mu.Lock()
	if t.spawners[channel] == h {
		delete(t.spawners, channel)
	}
	t.mu.Unlock()
}

// StartTraining arms a training timer for a user. Rejects with
// ErrAlreadyActive when the user is already training; an active timer is
// never overridden.
func (t *Tasks) StartTraining(user, channel string) error {
	t.mu.Lock()
	if _, ok := t.training[user]; ok {
		t.mu.Unlock()
		return fmt.Errorf("training for %s: %w", user, ErrAlreadyActive)
	}
	h := &trainingHandle{
		user:      user,
		channel:   channel,
		startedAt: time.Now(),
		stop:      make(chan struct{}),
	}
	t.training[user] = h
	t.mu.Unlock()

	go t.trainingRun(h)
	return nil
}

// StopTraining triggers early completion of a user's training. No-op when
// none is active.
func (t *Tasks) StopTraining(user string) bool {
	t.mu.Lock()
	h, ok := t.training[user]
	t.mu.Unlock()
	if !ok {
		return false
	}
	h.stopOnce.Do(func() { close(h.stop) })
	return true
}

// trainingRun waits for the deadline or an early stop, then awards each
// team member experience in whole-minute units of elapsed wall time and
// notifies the user privately. A shutdown drops the session without award.
func (t *Tasks) trainingRun(h *trainingHandle) {
	timer := time.NewTimer(t.g.Conf.TrainingWait())
	defer timer.Stop()

	select {
	case <-t.base.Done():
		t.clearTraining(h)
		return
	case <-timer.C:
	case <-h.stop:
	}
	t.clearTraining(h)

	minutes := int(time.Since(h.startedAt) / time.Minute)
	if _, err := t.g.Rules.AwardTeamExperience(t.g.Catalog, h.user, minutes); err != nil {
		log.Printf("tasks: training award for %s: %v", h.user, err)
		t.g.Bus.Emit(events.Event{
			Type: events.EvNotice, User: h.user, Source: h.user,
			Text: "Training ended, but your team could not be updated.",
		})
		return
	}
	t.g.Bus.Emit(events.Event{
		Type: events.EvTraining, User: h.user, Source: h.user,
		Text: fmt.Sprintf("Training finished. You trained for %d minutes.", minutes),
	})
}

// clearTraining removes the handle if it still owns the key.
func (t *Tasks) clearTraining(h *trainingHandle) {
	t.mu.Lock()
	if t.training[h.user] == h {
		delete(t.training, h.user)
	}
	t.mu.Unlock()
}

// StopAll cancels every live task. Used at shutdown.
func (t *Tasks) StopAll() {
	t.cancel()
	t.mu.Lock()
	t.spawners = make(map[string]*spawnerHandle)
	t.training = make(map[string]*trainingHandle)
	t.mu.Unlock()
}
