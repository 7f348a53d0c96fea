package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"audiowave/logger"
	"audiowave/repository"

	"github.com/fsnotify/fsnotify"
)

// Watcher follows filesystem changes under the library root and keeps
// the track table current without a full rescan.
type Watcher struct {
	root    string
	scanner *Scanner
	repo    repository.TrackRepository
	fsw     *fsnotify.Watcher
}

func NewWatcher(root string, scanner *Scanner, repo repository.TrackRepository) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w := &Watcher{root: root, scanner: scanner, repo: repo, fsw: fsw}
	if err := w.watchTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	logger.Info("[Library] watching music directory", logger.String("root", w.root))
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("[Library] watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New directories must be added recursively; fsnotify
			// only watches one level.
			if err := w.watchTree(ev.Name); err != nil {
				logger.Warn("[Library] failed to watch new directory",
					logger.String("path", ev.Name), logger.ErrorField(err))
			}
			return
		}
		if err := w.scanner.Register(ev.Name); err != nil {
			logger.Warn("[Library] failed to register new file",
				logger.String("path", ev.Name), logger.ErrorField(err))
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if !IsAudioFile(ev.Name) {
			return
		}
		if err := w.repo.DeleteTrackByURI(ev.Name); err != nil {
			logger.Warn("[Library] failed to remove track",
				logger.String("path", ev.Name), logger.ErrorField(err))
		} else {
			logger.Debug("[Library] removed track", logger.String("uri", ev.Name))
		}
	case ev.Has(fsnotify.Write):
		if !IsAudioFile(ev.Name) {
			return
		}
		if err := w.scanner.Register(ev.Name); err != nil {
			logger.Warn("[Library] failed to register written file",
				logger.String("path", ev.Name), logger.ErrorField(err))
		}
	}
}

// watchTree registers path and every directory below it. It fails when
// path is not a directory, which handle uses to tell files apart.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
