package ability

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"automatosx/pkg/logger"
)

// Watcher invalidates cache entries early when their backing files change on
// disk, a superset of pure TTL expiry.
type Watcher struct {
	fsw *fsnotify.Watcher
	mgr *Manager
}

// WatchDir starts watching mgr's directory for changes, invalidating the
// corresponding cache entry on write/remove/rename events. Call Close to
// stop watching.
func WatchDir(mgr *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(mgr.dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, mgr: mgr}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(event.Name), ".md")
			w.mgr.Invalidate(name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Get().Warn().Err(err).Msg("ability watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
