package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/legible/internal/errors"
)

// DefaultWatchDebounce is how long a file must stay quiet before it is re-checked.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch blocks until ctx is done, calling onChange with each watched path
// after it changes. Bursts of events for the same file within debounce are
// folded into one call.
//
// Parent directories are watched rather than the files themselves, so editors
// that save by writing a temp file and renaming it over the original keep
// triggering callbacks.
func Watch(ctx context.Context, paths []string, debounce time.Duration, onChange func(path string)) error {
	if len(paths) == 0 {
		return errors.NewInvalidRequest("at least one path is required")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	targets := make(map[string]string, len(paths)) // abs -> as given
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("invalid path %q: %v", p, err))
		}
		targets[abs] = p
		dirs[filepath.Dir(abs)] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternal(fmt.Errorf("create watcher: %w", err))
	}
	defer w.Close()

	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return errors.NewInternal(fmt.Errorf("watch %s: %w", dir, err))
		}
		log.Debug().Str("dir", dir).Msg("watching")
	}

	pending := make(map[string]bool)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			orig, watched := targets[abs]
			if !watched || !isContentChange(ev.Op) {
				continue
			}
			pending[orig] = true
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for _, p := range sortedKeys(pending) {
				onChange(p)
			}
			clear(pending)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// isContentChange reports whether an event can change a file's contents.
// Chmod and Remove are ignored; a file renamed over the target shows up as Create.
func isContentChange(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
