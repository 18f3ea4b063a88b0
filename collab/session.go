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
	"context"
	"sync"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/bufferlog"
	"github.com/zed-industries/zed-sub044/clock"
)

// State is a collaborator's join-lifecycle state.
type State int

const (
	// StateClosed is a session that never joined, or has left for
	// good (its replica id has been returned to the pool).
	StateClosed State = iota
	// StateJoined is actively exchanging operations with its buffer.
	StateJoined
	// StateLost is a session whose transport dropped but whose
	// replica id and undelivered sends are kept around for Rejoin,
	// until the buffer's collaborator set evicts it outright.
	StateLost
)

// Session is one collaborator's view of one hosted buffer: its
// allocated replica, the shared CRDT state, and the bounded send path
// that keeps a single slow reader from stalling every other
// collaborator's broadcasts.
type Session struct {
	mu      sync.Mutex
	state   State
	replica clock.ReplicaID
	epoch   uint64

	host *hostedBuffer
	set  *CollaboratorSet
	send chan []byte
}

// sendQueueDepth bounds how many outgoing frames a session buffers
// for a collaborator before Broadcast starts dropping, per
// CollaboratorSet.Broadcast's non-blocking send.
const sendQueueDepth = 64

// Join allocates a fresh replica id on host for this session and
// returns the session in StateJoined, with a new send channel for the
// transport goroutine to drain.
func Join(host *hostedBuffer, set *CollaboratorSet) *Session {
	send := make(chan []byte, sendQueueDepth)
	replica := set.AllocateReplica(send)
	host.mu.Lock()
	epoch := host.epoch
	host.mu.Unlock()
	return &Session{
		state:   StateJoined,
		replica: replica,
		epoch:   epoch,
		host:    host,
		set:     set,
		send:    send,
	}
}

// Rejoin restores a previously-lost session to StateJoined under the
// same replica id, re-registering its send channel with set, or
// returns KindEpochMismatch if the buffer has since been reloaded
// from a snapshot (the replica must rejoin fresh and re-derive its
// anchors from the new base text in that case).
func (s *Session) Rejoin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLost {
		return newError(KindNotCollaborator, nil)
	}
	s.host.mu.Lock()
	currentEpoch := s.host.epoch
	s.host.mu.Unlock()
	if currentEpoch != s.epoch {
		return newError(KindEpochMismatch, nil)
	}
	s.set.tree.ReplaceOrInsert(&collaborator{replica: s.replica, send: s.send})
	s.state = StateJoined
	return nil
}

// Lost transitions the session to StateLost on transport failure,
// keeping its replica id reserved (not returned to AllocateReplica's
// pool) so a subsequent Rejoin can resume it without the buffer
// seeing a double-join.
func (s *Session) Lost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateJoined {
		return
	}
	s.state = StateLost
}

// Close ends the session for good, returning its replica id to the
// collaborator set.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.set.Remove(s.replica)
	s.state = StateClosed
}

// Replica returns the replica id this session ticks the buffer's
// clock with.
func (s *Session) Replica() clock.ReplicaID {
	return s.replica
}

// SubmitEdit applies a locally-authored edit against the hosted
// buffer under a per-buffer lock (so concurrent sessions on the same
// buffer serialize, matching spec.md §5's single-writer-per-buffer
// rule), then broadcasts the resulting operation to every other
// collaborator.
func (s *Session) SubmitEdit(ranges []buffer.ByteRange, texts [][]byte) (buffer.EditOperation, error) {
	s.host.mu.Lock()
	op, err := s.host.buf.Edit(ranges, texts)
	epoch := s.host.epoch
	s.host.mu.Unlock()
	if err != nil {
		return buffer.EditOperation{}, newError(KindInvalidEdit, err)
	}
	if s.host.log != nil {
		s.host.log.Append(s.host.id, epoch, op)
	}
	s.broadcast(op)
	return op, nil
}

// Deliver applies a remote operation (already decoded) to the hosted
// buffer and re-broadcasts it to every collaborator but its origin,
// so the relay fans out in a single hub-and-spoke hop regardless of
// how many collaborators are attached.
func (s *Session) Deliver(op buffer.Operation) {
	s.host.mu.Lock()
	s.host.buf.ApplyRemote(op)
	epoch := s.host.epoch
	s.host.mu.Unlock()
	if s.host.log != nil {
		s.host.log.Append(s.host.id, epoch, op)
	}
	s.broadcast(op)
}

// Backfill returns every operation this buffer has logged at the
// session's epoch since afterSeq, for a rejoining collaborator to
// replay locally before resuming live delivery. It returns nil if no
// log is attached (logging is optional; callers fall back to a full
// resync in that case).
func (s *Session) Backfill(afterSeq uint64) []bufferlog.Row {
	if s.host.log == nil {
		return nil
	}
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	return s.host.log.OperationsSince(s.host.id, epoch, afterSeq)
}

func (s *Session) broadcast(op buffer.Operation) {
	frame, err := EncodeOperation(op)
	if err != nil {
		return
	}
	if err := s.host.sendLimit.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer s.host.sendLimit.Release(1)
	s.set.Broadcast(frame, s.replica)
}
