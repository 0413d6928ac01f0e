// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package watch observes project source paths and flattens bursts of
// filesystem events into settled change notifications.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Kind describes what happened to a path.
type Kind int

const (
	KindCreate Kind = iota
	KindWrite
	KindRemove
	KindRename
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindWrite:
		return "write"
	case KindRemove:
		return "remove"
	case KindRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a single raw filesystem event. Error is non-nil only for
// watcher-level failures passed downstream instead of being logged here.
type Event struct {
	Path string
	Kind Kind
	Err  error
}

// Watcher wraps fsnotify over a fixed set of roots. It is not restartable:
// once closed, create a new one. Directories created under a watched root
// are picked up on the fly.
type Watcher struct {
	fsw    *fsnotify.Watcher
	ignore *IgnoreSet
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a Watcher over the given paths. Directory paths are added
// recursively; file paths (env file, type config) are watched via their
// parent directory so editors that replace-on-save still register.
func New(paths []string, ignore *IgnoreSet) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:    fsw,
		ignore: ignore,
		events: make(chan Event, 100), // buffered to absorb bursts
		done:   make(chan struct{}),
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// Missing optional paths (e.g. no .env yet) are skipped.
			continue
		}
		if info.IsDir() {
			if err := w.addRecursive(p); err != nil {
				fsw.Close()
				return nil, err
			}
		} else {
			if err := fsw.Add(filepath.Dir(p)); err != nil {
				fsw.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
	}

	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignore.Match(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Events starts the watch goroutine on first call and returns the event
// channel. Subsequent calls return the same channel.
func (w *Watcher) Events() <-chan Event {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return w.events
	}
	w.started = true
	w.mu.Unlock()

	go w.run()
	return w.events
}

func (w *Watcher) run() {
	defer close(w.events)

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignore.Match(ev.Name) {
				continue
			}

			var kind Kind
			switch {
			case ev.Op.Has(fsnotify.Create):
				kind = KindCreate
				// A new directory under a watched root joins the watch.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(ev.Name)
				}
			case ev.Op.Has(fsnotify.Write):
				kind = KindWrite
			case ev.Op.Has(fsnotify.Remove):
				kind = KindRemove
			case ev.Op.Has(fsnotify.Rename):
				kind = KindRename
			default:
				// Chmod and friends never warrant a rebuild.
				continue
			}

			select {
			case w.events <- Event{Path: ev.Name, Kind: kind}:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.events <- Event{Err: err}:
			case <-w.done:
				return
			}
		}
	}
}

// Close stops the watcher and releases resources. Safe to call twice.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.fsw.Close()
}
