package registry

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch re-registers agent definitions when files in dir are created or
// modified. Removal events are ignored: the registry only grows or
// overwrites, matching explicit re-registration semantics. Watch blocks
// until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	r.logger.Info("watching agent definitions", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !isDefinitionFile(event.Name) {
				continue
			}
			if err := r.loadFile(event.Name); err != nil {
				r.logger.Warn("skipping malformed agent definition", "file", event.Name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("agent definitions watcher error", "error", err)
		}
	}
}
