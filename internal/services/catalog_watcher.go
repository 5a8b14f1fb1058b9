package services

import (
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events (editors write a
// file several times per save) into one reload.
const watchDebounce = 500 * time.Millisecond

// CatalogWatcher reloads the catalog automatically when the index file or
// any item-definition file changes on disk. The reload runs on the
// cooperative loop: sessions are torn down first so none keeps a
// generation that is being replaced.
type CatalogWatcher struct {
	catalog  *CatalogService
	sessions *SessionService
	loop     *LoopService
	watcher  *fsnotify.Watcher
	stop     chan struct{}
}

// NewCatalogWatcher creates a watcher over the data directory.
func NewCatalogWatcher(catalog *CatalogService, sessions *SessionService, loop *LoopService) (*CatalogWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(catalog.dataDir); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(catalog.menusDir()); err != nil {
		w.Close()
		return nil, err
	}

	return &CatalogWatcher{
		catalog:  catalog,
		sessions: sessions,
		loop:     loop,
		watcher:  w,
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (cw *CatalogWatcher) Start() {
	go cw.run()
	log.Println("👀 Watching menu definition files for changes")
}

// Stop stops watching.
func (cw *CatalogWatcher) Stop() {
	close(cw.stop)
	cw.watcher.Close()
}

func (cw *CatalogWatcher) run() {
	var timer *time.Timer
	for {
		select {
		case <-cw.stop:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, cw.reload)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}

// relevant filters events down to writes/creates/removes of definition
// files.
func (cw *CatalogWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.EqualFold(name, CatalogFileName) {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func (cw *CatalogWatcher) reload() {
	log.Println("♻️  Menu definition files changed, reloading catalog...")
	cw.loop.Defer(func() {
		cw.sessions.CloseAll()
		_, errs := cw.catalog.Load()
		CountCatalogReload()
		for _, e := range errs {
			log.Printf("⚠️  - %s", e)
		}
	})
}
