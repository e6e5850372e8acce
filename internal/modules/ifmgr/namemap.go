package ifmgr

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// NameMap is the persisted logical-to-physical interface name mapping
// ("wan0 = eth0", one per line, "#" comments), hot-reloaded from disk
// via fsnotify so an operator can repoint a logical name without a
// daemon restart (spec.md §4's component M).
type NameMap struct {
	mu      sync.RWMutex
	path    string
	m       map[string]string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewNameMap loads path and starts watching it for changes.
func NewNameMap(path string, logger *slog.Logger) (*NameMap, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nm := &NameMap{path: path, m: make(map[string]string), logger: logger}
	if err := nm.reload(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	nm.watcher = w
	go nm.watch()
	return nm, nil
}

func (nm *NameMap) watch() {
	for {
		select {
		case ev, ok := <-nm.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := nm.reload(); err != nil {
				nm.logger.Warn("ifmgr: failed to reload interface name map", "path", nm.path, "error", err)
				continue
			}
			nm.logger.Info("ifmgr: reloaded interface name map", "path", nm.path)
		case err, ok := <-nm.watcher.Errors:
			if !ok {
				return
			}
			nm.logger.Warn("ifmgr: name map watcher error", "error", err)
		}
	}
}

func (nm *NameMap) reload() error {
	f, err := os.Open(nm.path)
	if err != nil {
		return err
	}
	defer f.Close()

	m := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := sc.Err(); err != nil {
		return err
	}

	nm.mu.Lock()
	nm.m = m
	nm.mu.Unlock()
	return nil
}

// Physical returns the physical device name logical maps to, or
// logical itself if there is no mapping entry for it.
func (nm *NameMap) Physical(logical string) string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if p, ok := nm.m[logical]; ok {
		return p
	}
	return logical
}

// Close stops the filesystem watcher.
func (nm *NameMap) Close() {
	if nm.watcher != nil {
		_ = nm.watcher.Close()
	}
}
