package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "relaybot/pkg/logx"
)

// Watch observes the config file and invokes onChange (debounced) when
// its content changes on disk. The running configuration is immutable,
// so the callback is expected to do no more than warn that a restart is
// required.
//
// Watch returns a non-nil error when the underlying watcher breaks;
// callers should run it under a restart policy.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dir := filepath.Dir(abs)
	file := filepath.Base(abs)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors commonly replace the
	// file via rename, which drops a direct file watch.
	if err := w.Add(dir); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		lastHash uint64
		timer    *time.Timer
	)
	lastHash = hashFile(abs)

	// Coalesce editor write bursts; only fire when content actually changed.
	debounce := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(300*time.Millisecond, func() {
			mu.Lock()
			defer mu.Unlock()
			h := hashFile(abs)
			if h == 0 || h == lastHash {
				return
			}
			lastHash = h
			onChange()
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	if !log.IsZero() {
		log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("config watcher event channel closed")
			}
			// Compare by basename (robust across absolute/relative paths).
			if strings.EqualFold(filepath.Base(ev.Name), file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					debounce()
				}
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return errors.New("config watcher error channel closed")
			}
			if werr == nil {
				continue
			}
			// Overflow means we may have missed events; re-check once.
			if strings.Contains(strings.ToLower(werr.Error()), "overflow") {
				debounce()
				continue
			}
			if !log.IsZero() {
				log.Warn("config watch error", logx.Err(werr), logx.String("dir", dir))
			}
			if strings.Contains(strings.ToLower(werr.Error()), "closed") {
				return werr
			}
		}
	}
}

func hashFile(path string) uint64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	// FNV-1a.
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}
