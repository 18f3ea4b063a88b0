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

// Command collabd is the collaboration server entry point: it hosts
// buffers, upgrades websocket connections, and relays CRDT operations
// between collaborators, the same "define HTTP endpoint, run forever"
// shape as the teacher's own scm.HTTPServe (scm/network.go), but with
// a fixed collab.Server handler instead of a Scheme callback, and
// dc0d/onexit-registered shutdown hooks (the teacher's own dependency
// for exactly this) instead of relying on the process just dying.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dc0d/onexit"
	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/bufferlog"
	"github.com/zed-industries/zed-sub044/collab"
	"github.com/zed-industries/zed-sub044/config"
	"github.com/zed-industries/zed-sub044/logx"
)

func main() {
	log := logx.New(logx.LevelInfo)

	configPath := "collabd.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	log.Infof("collabd: loading config from %s", configPath)
	watcher, err := config.Load(configPath, log, func(s config.Settings) {
		log.Infof("collabd: config reloaded (listen_addr=%s)", s.ListenAddr)
	})
	if err != nil {
		log.Errorf("collabd: config load failed, running on defaults: %v", err)
	}
	var settings config.Settings
	if watcher != nil {
		settings = watcher.Current()
		onexit.Register(func() {
			log.Infof("collabd: closing config watcher")
			watcher.Close()
		})
	} else {
		settings = config.Defaults()
	}

	opLog := bufferlog.New()
	buffers := collab.NewBufferRegistry(opLog)
	collaboratorSets := newCollaboratorSetRegistry()

	server := collab.NewServer(buffers, collaboratorSets.For, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/buffers/", func(w http.ResponseWriter, r *http.Request) {
		id, err := bufferIDFromPath(r.URL.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		server.ServeHTTP(w, r, id)
	})

	httpServer := &http.Server{
		Addr:           settings.ListenAddr,
		Handler:        mux,
		ReadTimeout:    300 * time.Second,
		WriteTimeout:   300 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	onexit.Register(func() {
		log.Infof("collabd: shutting down HTTP listener")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	})

	go func() {
		log.Infof("collabd: listening on %s", settings.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("collabd: listener exited: %v", err)
		}
	}()

	waitForSignal(log)
}

// waitForSignal blocks until SIGINT/SIGTERM, then runs every
// onexit-registered hook before returning, the Go-idiomatic analogue
// of the teacher's process-level onexit usage in storage/settings.go.
func waitForSignal(log *logx.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Infof("collabd: received %v, shutting down", s)
	onexit.Exit(0)
}

// bufferIDFromPath extracts the buffer id from a "/buffers/<uuid>"
// request path.
func bufferIDFromPath(path string) (collab.BufferID, error) {
	trimmed := strings.TrimPrefix(path, "/buffers/")
	return uuid.Parse(trimmed)
}

// collaboratorSetRegistry lazily allocates one collab.CollaboratorSet
// per hosted buffer, since spec.md's collaborator set is scoped to a
// single buffer's lifetime rather than the whole process.
type collaboratorSetRegistry struct {
	sets map[collab.BufferID]*collab.CollaboratorSet
}

func newCollaboratorSetRegistry() *collaboratorSetRegistry {
	return &collaboratorSetRegistry{sets: make(map[collab.BufferID]*collab.CollaboratorSet)}
}

func (r *collaboratorSetRegistry) For(id collab.BufferID) *collab.CollaboratorSet {
	if s, ok := r.sets[id]; ok {
		return s
	}
	s := collab.NewCollaboratorSet()
	r.sets[id] = s
	return s
}
