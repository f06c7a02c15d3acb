// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"syncwarden/pkg/resource"
)

// DefaultDebounce is how long Watch waits for further file events before notifying.
const DefaultDebounce = 500 * time.Millisecond

// DirectoryConfig configures a Directory source.
type DirectoryConfig struct {
	// Path is the repository checkout or manifest root.
	Path string

	// Subdir is read relative to Path. Empty reads Path itself.
	Subdir string

	// DefaultNamespace applies to namespaced manifests without a namespace.
	DefaultNamespace string

	// Debounce coalesces bursts of file events. Zero uses DefaultDebounce.
	Debounce time.Duration
}

// Directory reads *.yaml and *.yml files below a directory, recursively.
type Directory struct {
	root             string
	defaultNamespace string
	debounce         time.Duration
	logger           *slog.Logger
}

// NewDirectory creates a Directory source.
func NewDirectory(cfg DirectoryConfig, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Directory{
		root:             filepath.Join(cfg.Path, cfg.Subdir),
		defaultNamespace: cfg.DefaultNamespace,
		debounce:         debounce,
		logger:           logger.With("component", "source"),
	}
}

// Reference implements Source.
func (d *Directory) Reference() string {
	return "dir:" + d.root
}

// Fetch implements Source. Files are read in lexical path order.
func (d *Directory) Fetch(ctx context.Context) ([]resource.Spec, error) {
	files, err := d.manifestFiles()
	if err != nil {
		return nil, err
	}

	var specs []resource.Spec
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			rel = path
		}

		parsed, err := ParseManifests(data, rel, d.defaultNamespace)
		if err != nil {
			return nil, err
		}
		specs = append(specs, parsed...)
	}

	d.logger.Debug("Fetched desired state", "reference", d.Reference(), "files", len(files), "resources", len(specs))
	return specs, nil
}

func (d *Directory) manifestFiles() ([]string, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to open source %s: %w", d.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", d.root)
	}

	var files []string
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isYAMLFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk source %s: %w", d.root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Watch implements Source using fsnotify. Newly created subdirectories are
// added to the watch set as they appear.
func (d *Directory) Watch(ctx context.Context, notify func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			d.logger.Error("Error closing file watcher", "error", err)
		}
	}()

	if err := d.addWatches(watcher, d.root); err != nil {
		return err
	}

	deb := newDebouncer(d.debounce, notify)
	defer deb.stop()

	d.logger.Info("Watching desired state", "path", d.root, "debounce", d.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := d.addWatches(watcher, event.Name); err != nil {
						d.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
					}
					deb.record()
					continue
				}
			}
			if !isYAMLFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			d.logger.Debug("Manifest changed", "path", event.Name, "op", event.Op.String())
			deb.record()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("File watcher error", "error", err)
		}
	}
}

func (d *Directory) addWatches(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != d.root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
