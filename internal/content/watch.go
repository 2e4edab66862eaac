package content

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 100 * time.Millisecond

// Watch invalidates cached pages when their markdown files change. It blocks until
// ctx is cancelled. Directories created after Watch starts are picked up.
func (p *Pages) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("content: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, p.dir); err != nil {
		return fmt.Errorf("content: watch %s: %w", p.dir, err)
	}
	p.logger.Info("watching content", zap.String("dir", p.dir))

	pending := map[string]*time.Timer{}
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if err := watchTree(watcher, event.Name); err != nil {
					p.logger.Debug("watch new path", zap.String("path", event.Name), zap.Error(err))
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			slug, ok := slugFromPath(event.Name)
			if !ok {
				continue
			}
			// Editors write in bursts; evict once the burst settles.
			if t, ok := pending[slug]; ok {
				t.Reset(watchDebounce)
				continue
			}
			path := event.Name
			pending[slug] = time.AfterFunc(watchDebounce, func() {
				removed := p.Invalidate(slug)
				p.logger.Debug("content changed",
					zap.String("path", path), zap.String("slug", slug), zap.Int("evicted", removed))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("content watcher error", zap.Error(err))
		}
	}
}

// watchTree adds root and every non-hidden directory below it.
func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func slugFromPath(path string) (string, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return "", false
	}
	slug := sanitizeSlug(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return slug, slug != ""
}
