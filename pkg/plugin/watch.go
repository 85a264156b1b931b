package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const watchedOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Watch observes dir for agent files appearing, changing or disappearing after
// the registry was loaded. The registry is not reloaded; it is only marked
// stale so operators know a restart is needed. Watching stops when ctx ends.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create agents watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch agents directory: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !r.relevant(event) {
					continue
				}
				r.markStale()
				r.log.Warn("agents directory changed; restart to reload agents",
					slog.String("file", filepath.Base(event.Name)),
					slog.String("op", event.Op.String()),
				)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Error("agents watcher error", slog.Any("error", err))
			}
		}
	}()
	return nil
}

func (r *Registry) relevant(event fsnotify.Event) bool {
	if event.Op&watchedOps == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, r.extension)
}
