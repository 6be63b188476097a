// Package watch reports debounced batches of changed source files under a
// directory tree.
package watch

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period that closes a batch.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches a directory tree and emits the paths, relative to the
// root, of files that changed. Changes arriving within the debounce window
// of each other are delivered as one sorted, de-duplicated batch.
type Watcher struct {
	root     string
	debounce time.Duration
	match    func(rel string) bool

	fs      *fsnotify.Watcher
	batches chan []string
	errs    chan error
	fire    chan struct{}
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// New starts watching root. match filters relative paths; nil accepts all.
func New(root string, debounce time.Duration, match func(rel string) bool) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addWatchTree(fsw, root); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if match == nil {
		match = func(string) bool { return true }
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		match:    match,
		fs:       fsw,
		batches:  make(chan []string, 8),
		errs:     make(chan error, 8),
		fire:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		pending:  make(map[string]bool),
	}
	go w.loop()
	return w, nil
}

// Batches delivers changed paths. The channel is closed by Close.
func (w *Watcher) Batches() <-chan []string {
	return w.batches
}

// Errors delivers watcher errors. Errors are dropped when nobody reads them.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher. Pending changes are dropped. It is safe to call
// more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

// loop is the only sender on batches and the one that closes it.
func (w *Watcher) loop() {
	defer close(w.batches)

	for {
		select {
		case <-w.done:
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// Report files that were inside before the watch existed.
					_ = addWatchTree(w.fs, event.Name)
					w.addExisting(event.Name)
					continue
				}
			}
			w.addPath(event.Name)

		case <-w.fire:
			w.flush()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) addPath(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.match(rel) {
		w.add(rel)
	}
}

func (w *Watcher) addExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			w.addPath(path)
		}
		return nil
	})
}

func (w *Watcher) add(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[rel] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.signal)
}

// signal runs on the timer goroutine and hands the flush to loop.
func (w *Watcher) signal() {
	select {
	case w.fire <- struct{}{}:
	default:
	}
}

// flush runs on the loop goroutine only.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	slices.Sort(batch)
	select {
	case w.batches <- batch:
	case <-w.done:
	}
}

func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})
}
