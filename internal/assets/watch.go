package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce coalesces the burst of events editors emit for a single save.
const debounce = 100 * time.Millisecond

// Watcher reports languages whose assets changed under an override
// directory. The directory layout is "<dir>/<language>/<kind>.scm"; the root
// and every existing language directory are watched.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve %s: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("assets: create watcher: %w", err)
	}
	w := &Watcher{dir: abs, watcher: fsw, log: log}

	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("assets: watch %s: %w", abs, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("assets: read %s: %w", abs, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(abs, e.Name()))
		}
	}
	return w, nil
}

func (w *Watcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch query directory")
	}
}

// Run delivers changed language names to onChange until ctx is done or the
// watcher is closed. Events are debounced per language.
func (w *Watcher) Run(ctx context.Context, onChange func(language string)) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.add(ev.Name)
				}
			}
			lang, ok := w.languageOf(ev.Name)
			if !ok {
				continue
			}
			pending[lang] = true
			timer.Reset(debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("query watcher error")

		case <-timer.C:
			for lang := range pending {
				w.log.Info().Str("language", lang).Msg("query assets changed")
				onChange(lang)
			}
			clear(pending)
		}
	}
}

// languageOf maps an event path to its language: either the language
// directory itself or a .scm file directly inside it.
func (w *Watcher) languageOf(name string) (string, bool) {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		return parts[0], true
	case 2:
		if strings.HasSuffix(parts[1], ".scm") {
			return parts[0], true
		}
	}
	return "", false
}

// Close stops the watcher; a pending Run returns nil.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
