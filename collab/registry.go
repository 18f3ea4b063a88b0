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
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"
	nlrm "github.com/launix-de/NonLockingReadMap"
	"golang.org/x/sync/semaphore"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/bufferlog"
	"github.com/zed-industries/zed-sub044/clock"
)

// maxConcurrentBroadcasts bounds how many of this buffer's edits can
// be mid-fan-out to collaborators at once, so a burst of edits from a
// busy session can't pile up unboundedly many goroutines each holding
// their own fully-encoded frame while slow readers drain.
const maxConcurrentBroadcasts = 4

// BufferID names a shared buffer across the cluster.
type BufferID = uuid.UUID

// hostedBuffer is one buffer this process currently serves: the live
// CRDT state plus the epoch counter bumped on every snapshot/rejoin
// boundary (spec.md §4.4's epoch mechanism, used to reject edits from
// a session that missed a snapshot).
type hostedBuffer struct {
	id        BufferID
	buf       *buffer.Buffer
	epoch     uint64
	mu        sync.Mutex
	sendLimit *semaphore.Weighted
	log       *bufferlog.Log
}

func (b *hostedBuffer) GetKey() string { return b.id.String() }

// ComputeSize satisfies NonLockingReadMap's Sizable requirement with a
// coarse estimate (exact accounting isn't needed; this map is read
// far more than it's written, which is the whole point of using it).
func (b *hostedBuffer) ComputeSize() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint(64 + b.buf.Len())
}

// BufferRegistry holds every buffer this process currently hosts. It
// is backed by NonLockingReadMap because lookups (one per incoming
// edit) vastly outnumber registrations (one per buffer create/load),
// exactly the access pattern that map is built for.
type BufferRegistry struct {
	m   nlrm.NonLockingReadMap[hostedBuffer, string]
	log *bufferlog.Log
}

// NewBufferRegistry returns an empty registry whose hosted buffers
// append every applied operation to log for rejoin replay.
func NewBufferRegistry(log *bufferlog.Log) *BufferRegistry {
	return &BufferRegistry{m: nlrm.New[hostedBuffer, string](), log: log}
}

// Host registers buf under id at epoch 1, or bumps the epoch of an
// existing registration (used when a buffer is reloaded from a
// snapshot after every collaborator dropped).
func (r *BufferRegistry) Host(id BufferID, buf *buffer.Buffer) *hostedBuffer {
	if existing := r.m.Get(id.String()); existing != nil {
		existing.mu.Lock()
		existing.buf = buf
		existing.epoch++
		existing.mu.Unlock()
		return existing
	}
	h := &hostedBuffer{id: id, buf: buf, epoch: 1, sendLimit: semaphore.NewWeighted(maxConcurrentBroadcasts), log: r.log}
	r.m.Set(h)
	return h
}

// Lookup returns the hosted buffer for id, if this process serves it.
func (r *BufferRegistry) Lookup(id BufferID) (*hostedBuffer, bool) {
	h := r.m.Get(id.String())
	return h, h != nil
}

// Evict removes a buffer this process no longer hosts (every
// collaborator left and its state was flushed to persistence).
func (r *BufferRegistry) Evict(id BufferID) {
	r.m.Remove(id.String())
}

// collaborator is one live replica's registration within a single
// hosted buffer's session.
type collaborator struct {
	replica clock.ReplicaID
	send    chan []byte
}

// CollaboratorSet tracks the live collaborators of one buffer, kept
// in replica-id order (google/btree) so "smallest unused id" and
// ordered broadcast are both cheap.
type CollaboratorSet struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*collaborator]
}

func NewCollaboratorSet() *CollaboratorSet {
	return &CollaboratorSet{
		tree: btree.NewG[*collaborator](8, func(a, b *collaborator) bool {
			return a.replica < b.replica
		}),
	}
}

// AllocateReplica returns the smallest ReplicaID not currently in use,
// never 0 (reserved for the server/base text per spec.md §3), and
// registers send as that replica's outgoing channel.
func (s *CollaboratorSet) AllocateReplica(send chan []byte) clock.ReplicaID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := clock.ReplicaID(1)
	s.tree.Ascend(func(c *collaborator) bool {
		if c.replica != id {
			return false // gap found at id
		}
		id++
		return true
	})
	s.tree.ReplaceOrInsert(&collaborator{replica: id, send: send})
	return id
}

// Remove drops a replica from the set (its session closed or was
// lost).
func (s *CollaboratorSet) Remove(id clock.ReplicaID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(&collaborator{replica: id})
}

// Broadcast enqueues msg on every collaborator's send channel except
// except, dropping it for any collaborator whose channel is full
// rather than blocking the broadcaster on a slow reader.
func (s *CollaboratorSet) Broadcast(msg []byte, except clock.ReplicaID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Ascend(func(c *collaborator) bool {
		if c.replica != except {
			select {
			case c.send <- msg:
			default:
			}
		}
		return true
	})
}

// Len reports how many replicas are currently live.
func (s *CollaboratorSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}
