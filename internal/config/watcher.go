package config

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of filesystem events editors emit
// when saving a file.
const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the configuration when the file changes on disk.
type Watcher struct {
	mgr  *Manager
	path string
	fw   *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// Watch starts watching the manager's config file for external changes.
// Editors typically replace files via rename, so the parent directory is
// watched rather than the file itself.
func (m *Manager) Watch() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	path := filepath.Clean(m.configPath)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		mgr:  m,
		path: path,
		fw:   fw,
		done: make(chan struct{}),
	}
	go w.loop()

	log.Printf("Config: Watching %s for changes", path)
	return w, nil
}

func (w *Watcher) loop() {
	var reload <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload = time.After(reloadDebounce)

		case <-reload:
			reload = nil
			if err := w.mgr.Load(); err != nil {
				log.Printf("Config: Reload failed: %v", err)
			} else {
				log.Printf("Config: Reloaded after change on disk")
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("Config: Watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
	})
	return err
}
