package location

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a sidecar file appeared.
	OpCreate EventOp = iota
	// OpModify indicates a sidecar file was rewritten.
	OpModify
	// OpDelete indicates a sidecar file was removed.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MetadataEvent reports an external change to a location's sidecar file.
type MetadataEvent struct {
	// LocationPath is the root of the location whose sidecar changed.
	LocationPath string
	// Op is the operation that occurred (create, modify, delete).
	Op EventOp
}

// Watcher observes location roots for external changes to their
// metadata sidecars. Another process editing, replacing, or deleting a
// sidecar shows up as a MetadataEvent, letting the owner reload or
// self-heal without polling.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan MetadataEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	roots   map[string]bool
}

// NewWatcher creates a new Watcher instance.
// The watcher must be started with Start() before it will emit events.
func NewWatcher() (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		events:  make(chan MetadataEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		roots:   make(map[string]bool),
	}, nil
}

// Start begins watching the given location roots for sidecar changes.
func (w *Watcher) Start(locationPaths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for i, path := range locationPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve location path %s: %w", path, err)
		}
		if err := w.watcher.Add(abs); err != nil {
			// Unwind the watches added so far
			for _, prev := range locationPaths[:i] {
				if prevAbs, absErr := filepath.Abs(prev); absErr == nil {
					_ = w.watcher.Remove(prevAbs)
				}
			}
			return fmt.Errorf("failed to watch location %s: %w", abs, err)
		}
		w.roots[abs] = true
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// AddLocation starts watching an additional location root.
func (w *Watcher) AddLocation(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve location path %s: %w", path, err)
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch location %s: %w", abs, err)
	}
	w.roots[abs] = true
	return nil
}

// RemoveLocation stops watching a location root.
func (w *Watcher) RemoveLocation(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve location path %s: %w", path, err)
	}
	if err := w.watcher.Remove(abs); err != nil {
		return fmt.Errorf("failed to unwatch location %s: %w", abs, err)
	}
	delete(w.roots, abs)
	return nil
}

// Stop stops watching and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.events)
	close(w.errors)

	return nil
}

// Events returns the channel that emits MetadataEvent notifications.
// This channel is closed when the watcher is stopped.
func (w *Watcher) Events() <-chan MetadataEvent {
	return w.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents converts fsnotify events on watched roots into
// MetadataEvent notifications for sidecar files only.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if metaEvent, ok := w.convertEvent(event); ok {
				select {
				case w.events <- metaEvent:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent converts an fsnotify event to a MetadataEvent.
// Returns (MetadataEvent, true) if the event should be processed,
// or (MetadataEvent{}, false) if the event should be ignored.
func (w *Watcher) convertEvent(event fsnotify.Event) (MetadataEvent, bool) {
	// Only sidecar files are interesting; everything else in a
	// location root belongs to the indexer.
	if filepath.Base(event.Name) != MetadataFileName {
		return MetadataEvent{}, false
	}

	w.mu.Lock()
	watched := w.roots[filepath.Dir(event.Name)]
	w.mu.Unlock()
	if !watched {
		return MetadataEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		// Treat rename as delete (the new name will trigger a create)
		op = OpDelete
	default:
		// Ignore chmod and other events
		return MetadataEvent{}, false
	}

	return MetadataEvent{
		LocationPath: filepath.Dir(event.Name),
		Op:           op,
	}, true
}
