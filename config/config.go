/*
Copyright (C) 2023-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config holds collabd's process-wide tunables, the same
// shape as the teacher's storage.SettingsT/storage.Settings
// (storage/settings.go): a plain struct of defaults, changeable at
// runtime, with fsnotify watching the backing file for live reload
// instead of requiring a restart.
package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"

	"github.com/zed-industries/zed-sub044/logx"
)

// Settings is collabd's tunable set, mirroring storage.SettingsT's
// "flat struct of defaults" shape.
type Settings struct {
	ListenAddr string `json:"listen_addr"`

	// MaxDeferredOpsBytes bounds the working set of a buffer's
	// deferred-operations queue (see buffer's Open Question
	// resolution in DESIGN.md: unbounded by count, but an operator
	// still wants a soft memory ceiling to alarm on). Parsed from a
	// human-readable size string ("64MiB") via docker/go-units, the
	// teacher's own dependency for exactly this kind of value.
	MaxDeferredOpsBytes string `json:"max_deferred_ops_bytes"`

	// FragmentArenaPreallocate sizes the initial capacity hint for a
	// freshly joined buffer's fragment slice, also human-sized.
	FragmentArenaPreallocate string `json:"fragment_arena_preallocate"`

	SendQueueDepth          int `json:"send_queue_depth"`
	MaxConcurrentBroadcasts int `json:"max_concurrent_broadcasts"`

	SQLBackend string `json:"sql_backend"` // "postgres" or "mysql"
	SQLDSN     string `json:"sql_dsn"`

	BlobBackend string `json:"blob_backend"` // "file", "s3", or "ceph"
	BlobPath    string `json:"blob_path"`     // FileStore basepath, or S3/Ceph prefix
}

// Defaults mirrors storage.Settings' package-level default value
// literal.
func Defaults() Settings {
	return Settings{
		ListenAddr:               ":8095",
		MaxDeferredOpsBytes:      "64MiB",
		FragmentArenaPreallocate: "4KiB",
		SendQueueDepth:           64,
		MaxConcurrentBroadcasts:  4,
		SQLBackend:               "postgres",
		BlobBackend:              "file",
		BlobPath:                 "data/snapshots",
	}
}

// MaxDeferredOpsBytesValue parses MaxDeferredOpsBytes ("64MiB"-style)
// into a byte count via docker/go-units, the teacher's own
// human-size-parsing dependency.
func (s Settings) MaxDeferredOpsBytesValue() (int64, error) {
	return units.RAMInBytes(s.MaxDeferredOpsBytes)
}

// FragmentArenaPreallocateValue parses FragmentArenaPreallocate the
// same way.
func (s Settings) FragmentArenaPreallocateValue() (int64, error) {
	return units.RAMInBytes(s.FragmentArenaPreallocate)
}

// Watcher holds the live-reloadable Settings plus the fsnotify watch
// on its backing file, following InitSettings's "call this after you
// filled Settings" shape but adding the reload loop the teacher never
// needed (its settings only ever changed via the in-process
// ChangeSettings RPC, not an externally edited file).
type Watcher struct {
	mu       sync.RWMutex
	current  Settings
	path     string
	log      *logx.Logger
	watcher  *fsnotify.Watcher
	onChange func(Settings)
}

// Load reads Settings from path (falling back to Defaults if the
// file doesn't exist) and starts watching it for changes. onChange,
// if non-nil, is invoked with every successfully reloaded Settings.
func Load(path string, log *logx.Logger, onChange func(Settings)) (*Watcher, error) {
	w := &Watcher{current: Defaults(), path: path, log: log, onChange: onChange}
	if err := w.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		// A config file that doesn't exist yet simply runs on
		// defaults until one is created at this path; not fatal.
		log.Infof("config: not watching %s: %v", path, err)
	}
	w.watcher = fw
	go w.watchLoop()
	return w, nil
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				w.log.Errorf("config: reload %s failed: %v", w.path, err)
				continue
			}
			w.log.Infof("config: reloaded %s", w.path)
			if w.onChange != nil {
				w.onChange(w.Current())
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Errorf("config: watch error: %v", err)
		}
	}
}

func (w *Watcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	next := Defaults()
	if err := json.Unmarshal(data, &next); err != nil {
		return err
	}
	w.mu.Lock()
	w.current = next
	w.mu.Unlock()
	return nil
}

// Current returns the most recently loaded Settings.
func (w *Watcher) Current() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching the config file.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
