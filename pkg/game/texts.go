package game

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// defaultHelpText is served when no text directory is configured or the
// help file is missing.
const defaultHelpText = `Commands:
  help                      this text
  spawn [name]              spawn a creature (random without a name)
  catch <name>              catch the creature currently in the channel
  team                      list your team
  box                       list your stored creatures
  show [index]              show one team member
  withdraw <name>           move a creature from box to team
  deposit <name>            move a creature from team to box
  trade <name> @user        offer a trade to another player
  start training            start a training session
  stop training             finish training early
  start spawner             start recurring spawns in this channel
  stop spawner              stop recurring spawns
  history                   your recent activity`

// Texts serves the operator-editable text files. Reads are lock-cheap;
// reloads swap content atomically.
type Texts struct {
	dir string

	mu   sync.RWMutex
	help string
}

// LoadTexts reads the text files under dir. Missing files fall back to the
// built-in defaults; the returned Texts is always usable.
func LoadTexts(dir string) *Texts {
	t := &Texts{dir: dir, help: defaultHelpText}
	t.Reload()
	return t
}

// Help returns the current help text.
func (t *Texts) Help() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.help
}

// Reload re-reads the text files from disk.
func (t *Texts) Reload() {
	data, err := os.ReadFile(filepath.Join(t.dir, "help.txt"))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("texts: read help.txt: %v", err)
		}
		return
	}
	t.mu.Lock()
	t.help = strings.TrimRight(string(data), "\n")
	t.mu.Unlock()
	log.Printf("texts: loaded help.txt from %s", t.dir)
}

// Watch reloads the text files whenever they change on disk, until stop is
// closed. Errors are logged; the watcher never takes the process down.
func (t *Texts) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(t.dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					t.Reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("texts: watch: %v", err)
			}
		}
	}()
	return nil
}

// helpText picks the live help text, preferring the on-disk version.
func (g *Game) helpText() string {
	if g.Texts != nil {
		return g.Texts.Help()
	}
	return defaultHelpText
}
