// Package scripts maintains a library of named scripts loaded from a
// directory, with optional hot-reloading when files change on disk.
package scripts

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// Script is a named script sourced from the library directory.
type Script struct {
	Name         string
	Content      string
	LastModified time.Time
	Checksum     string
}

// Metadata describes a script without carrying its content.
type Metadata struct {
	Name         string
	LastModified time.Time
	Checksum     string
	Size         int
}

// Registry loads and serves scripts from a directory. All reads go through
// the afero filesystem so tests can run against an in-memory tree.
type Registry struct {
	fs      afero.Fs
	dir     string
	mu      sync.RWMutex
	scripts map[string]*Script
	watcher *fsnotify.Watcher
}

// NewRegistry creates a registry over the given filesystem and directory.
func NewRegistry(fs afero.Fs, dir string) *Registry {
	return &Registry{
		fs:      fs,
		dir:     dir,
		scripts: make(map[string]*Script),
	}
}

// Load scans the library directory and loads every script file. A missing
// directory is not an error, the library is simply empty.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := afero.DirExists(r.fs, r.dir)
	if err != nil {
		return fmt.Errorf("failed to check scripts directory: %w", err)
	}
	if !exists {
		slog.Debug("Scripts directory does not exist, library is empty", "path", r.dir)
		return nil
	}

	loaded := 0
	err = afero.Walk(r.fs, r.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isScriptFile(path) {
			return nil
		}
		if err := r.loadFileLocked(path, info.ModTime()); err != nil {
			slog.Error("Failed to load script", "path", path, "error", err)
			return nil // keep walking
		}
		loaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan scripts directory: %w", err)
	}

	slog.Info("Loaded script library", "directory", r.dir, "scripts", loaded)
	return nil
}

// Get retrieves a script by name.
func (r *Registry) Get(name string) (*Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	return s, ok
}

// List returns metadata for every loaded script, sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.scripts))
	for _, s := range r.scripts {
		out = append(out, Metadata{
			Name:         s.Name,
			LastModified: s.LastModified,
			Checksum:     s.Checksum,
			Size:         len(s.Content),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reload re-reads one script from disk, or drops it if the file is gone.
func (r *Registry) Reload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, name+".tengo")
	info, err := r.fs.Stat(path)
	if err != nil {
		delete(r.scripts, name)
		slog.Info("Script removed from library", "script", name)
		return nil
	}
	return r.loadFileLocked(path, info.ModTime())
}

// StartWatcher begins monitoring the library directory for changes. It is a
// no-op when hot reload is disabled or the directory does not exist. The
// watcher requires a real filesystem.
func (r *Registry) StartWatcher(ctx context.Context, enableHotReload bool) error {
	if !enableHotReload {
		slog.Info("Hot-reload disabled, skipping file system watcher setup")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		return nil
	}
	exists, err := afero.DirExists(r.fs, r.dir)
	if err != nil || !exists {
		slog.Debug("Scripts directory does not exist, skipping watcher setup", "path", r.dir)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch scripts directory: %w", err)
	}
	r.watcher = watcher

	go r.watchFiles(ctx)

	slog.Debug("Started file system watcher for script hot-reloading", "directory", r.dir)
	return nil
}

// StopWatcher stops the file system watcher.
func (r *Registry) StopWatcher() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
		slog.Info("File system watcher stopped")
	}
}

func (r *Registry) watchFiles(ctx context.Context) {
	r.mu.RLock()
	watcher := r.watcher
	r.mu.RUnlock()
	if watcher == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			r.StopWatcher()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			r.handleFileEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File system watcher error", "error", err)
		}
	}
}

func (r *Registry) handleFileEvent(event fsnotify.Event) {
	if !isScriptFile(event.Name) {
		return
	}
	name := scriptName(event.Name)

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		slog.Info("Script file changed, reloading", "script", name, "path", event.Name)
		if err := r.Reload(name); err != nil {
			slog.Error("Failed to reload script", "script", name, "error", err)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		slog.Info("Script file removed", "script", name, "path", event.Name)
		r.mu.Lock()
		delete(r.scripts, name)
		r.mu.Unlock()
	}
}

func (r *Registry) loadFileLocked(path string, modTime time.Time) error {
	content, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}

	name := scriptName(path)
	r.scripts[name] = &Script{
		Name:         name,
		Content:      string(content),
		LastModified: modTime,
		Checksum:     checksum(string(content)),
	}

	slog.Debug("Loaded script", "script", name, "size", len(content))
	return nil
}

func isScriptFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".tengo"
}

func scriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func checksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
