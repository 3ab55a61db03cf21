package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for further edits before
// re-analyzing.
const DefaultDebounce = 100 * time.Millisecond

// ResultHandler receives each analysis. err is a scan failure, such as a
// file that does not parse mid-edit; the watch continues after it.
type ResultHandler func(r *Result, err error)

// Watch analyzes dir, then re-analyzes it whenever a .go file in it changes,
// until ctx is canceled. Bursts of edits are collapsed into one analysis per
// debounce window. The handler is called from a single goroutine.
func Watch(ctx context.Context, dir string, opts Options, debounce time.Duration, fn ResultHandler) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	fn(Analyze(ctx, dir, opts))

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending []string
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			pending = append(pending, filepath.Base(event.Name))
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			opts.logger().Debug("re-analyzing", "dir", dir, "changed", pending)
			pending = pending[:0]
			fn(Analyze(ctx, dir, opts))

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.logger().Warn("watch error", "dir", dir, "error", err)
		}
	}
}

// relevant reports whether event may change the analysis.
func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".go") {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "#") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
