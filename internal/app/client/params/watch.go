package params

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slog"
)

const reloadDelay = 200 * time.Millisecond

// Watch перечитывает параметры при изменении YAML-файлов извне.
// Блокируется до отмены ctx.
func (r *Repository) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ошибка создания наблюдателя: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("ошибка наблюдения за %s: %w", r.dir, err)
	}

	// серия событий от одной записи схлопывается в одну перезагрузку
	var timer *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isParamFile(ev.Name) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := r.Reload(); err != nil {
				r.log.Warn("ошибка перезагрузки параметров", slog.Any("error", err))
				continue
			}
			r.log.Info("параметры перезагружены после изменения на диске")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("ошибка наблюдателя", slog.Any("error", err))
		}
	}
}

func isParamFile(name string) bool {
	base := filepath.Base(name)
	return filepath.Ext(base) == ".yaml" && !strings.HasPrefix(base, ".")
}
