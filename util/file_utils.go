package util

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TempDirPrefix = "segments"

// creates a uniquely named directory under root
// for the segments of a single download
func CreateTempDir(root string) (string, error) {
	path := filepath.Join(root, TempDirPrefix+uuid.NewString())
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}

// Registry tracks output files that are being written so they
// can be removed if the process is interrupted before they
// are complete.
type Registry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		paths: make(map[string]struct{}),
	}
}

// marks a path as in-flight
func (r *Registry) Track(path string) {
	r.mu.Lock()
	r.paths[path] = struct{}{}
	r.mu.Unlock()
}

// forgets a path whose file is complete
func (r *Registry) Release(path string) {
	r.mu.Lock()
	delete(r.paths, path)
	r.mu.Unlock()
}

// deletes a partial file and forgets it
func (r *Registry) Remove(path string) {
	r.Release(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.S().Warnf("failed to remove partial output %s: %v", path, err)
	}
}

func (r *Registry) Tracked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.paths))
	for path := range r.paths {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// forcefully removes every tracked file
func (r *Registry) Cleanup() {
	for _, path := range r.Tracked() {
		zap.S().Warnf("removing incomplete output: %s", path)
		r.Remove(path)
	}
}

// removes leftover segment directories older than maxAge
func CleanupOldFiles(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), TempDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > maxAge {
			path := filepath.Join(dir, entry.Name())
			zap.S().Debugf("removing old directory: %s", path)
			os.RemoveAll(path)
		}
	}
}
