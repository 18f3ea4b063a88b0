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
package collab

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zed-industries/zed-sub044/logx"
)

// Server serves one websocket endpoint per hosted buffer, upgrading
// each connection and relaying decoded operations through a Session —
// the same upgrade/read-loop/mutex-write shape the teacher's own
// scm.HTTPServe websocket handler uses, generalized from an
// interpreter callback to the fixed Edit/Undo operation protocol.
type Server struct {
	Buffers       *BufferRegistry
	Collaborators func(BufferID) *CollaboratorSet // per-buffer collaborator sets, keyed by the caller
	Log           *logx.Logger

	upgrader websocket.Upgrader
}

// NewServer returns a Server ready to accept collaborators; origin
// checking is left permissive like the teacher's own embedded
// websocket endpoint, since this is meant to sit behind a reverse
// proxy that enforces its own origin policy.
func NewServer(buffers *BufferRegistry, collaborators func(BufferID) *CollaboratorSet, log *logx.Logger) *Server {
	return &Server{
		Buffers:       buffers,
		Collaborators: collaborators,
		Log:           log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request, joins the named buffer, and pumps
// decoded operations in both directions until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request, id BufferID) {
	host, ok := s.Buffers.Lookup(id)
	if !ok {
		http.Error(w, "unknown buffer", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("collab: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	set := s.Collaborators(id)
	session := Join(host, set)
	defer session.Close()

	host.mu.Lock()
	reply := JoinReply{
		Replica: session.Replica(),
		Epoch:   host.epoch,
		Text:    host.buf.Text(),
		Version: host.buf.Version(),
	}
	host.mu.Unlock()

	var writeMu sync.Mutex
	writeMu.Lock()
	err = conn.WriteMessage(websocket.BinaryMessage, EncodeJoinReply(reply))
	writeMu.Unlock()
	if err != nil {
		s.Log.Errorf("collab: failed to send join reply: %v", err)
		return
	}

	done := make(chan struct{})
	go s.pumpOutgoing(conn, session, &writeMu, done)
	s.pumpIncoming(conn, session, &writeMu, done)
}

// pumpOutgoing drains a session's send channel onto the websocket
// connection until done closes, serializing writes under writeMu
// (gorilla/websocket connections are not safe for concurrent writers).
func (s *Server) pumpOutgoing(conn *websocket.Conn, session *Session, writeMu *sync.Mutex, done chan struct{}) {
	for {
		select {
		case frame := <-session.send:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.BinaryMessage, frame)
			writeMu.Unlock()
			if err != nil {
				session.Lost()
				return
			}
		case <-done:
			return
		}
	}
}

// pumpIncoming reads frames off the connection, decodes them, and
// delivers them to the session until the connection errors or closes.
func (s *Server) pumpIncoming(conn *websocket.Conn, session *Session, writeMu *sync.Mutex, done chan struct{}) {
	defer close(done)
	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); !ok {
				s.Log.Errorf("collab: read error: %v", err)
			}
			session.Lost()
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		op, err := DecodeOperation(msg)
		if err != nil {
			s.Log.Errorf("collab: dropping malformed frame: %v", err)
			continue
		}
		session.Deliver(op)
	}
}
