package skills

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads skills when anything under the skill roots changes.
// Bursts of events collapse into one reload after the debounce interval.
type Watcher struct {
	roots    []string
	reload   func()
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWatcher(roots []string, reload func()) *Watcher {
	return &Watcher{roots: roots, reload: reload, debounce: defaultDebounce}
}

// Start begins watching. Roots that do not exist yet are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		w.addTree(fw, root)
	}

	w.watcher = fw
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx, fw, w.stopCh, w.doneCh)
	return nil
}

// addTree watches root and its immediate skill directories.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) {
	if err := fw.Add(root); err != nil {
		logger.DebugCF("skills", "Skill root not watched", map[string]interface{}{
			"root":  root,
			"error": err.Error(),
		})
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = fw.Add(filepath.Join(root, e.Name()))
		}
	}
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, doneCh, fw := w.stopCh, w.doneCh, w.watcher
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	if err := fw.Close(); err != nil {
		logger.WarnCF("skills", "Failed to close skill watcher", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fw.Add(event.Name)
				}
			}
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.WarnCF("skills", "Skill watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		case <-timer.C:
			pending = false
			logger.InfoC("skills", "Skill directory changed; reloading")
			w.reload()
		}
	}
}
