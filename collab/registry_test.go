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
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/bufferlog"
	"github.com/zed-industries/zed-sub044/clock"
)

func TestHostRegistersAtEpochOne(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	id := uuid.New()
	h := r.Host(id, buffer.New(clock.ReplicaID(1)))
	if h.epoch != 1 {
		t.Fatalf("expected fresh host at epoch 1, got %d", h.epoch)
	}
	got, ok := r.Lookup(id)
	if !ok || got != h {
		t.Fatalf("expected Lookup to return the hosted buffer just registered")
	}
}

func TestHostBumpsEpochOnReregistration(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	id := uuid.New()
	first := r.Host(id, buffer.New(clock.ReplicaID(1)))
	second := r.Host(id, buffer.New(clock.ReplicaID(1)))
	if second != first {
		t.Fatalf("expected re-hosting the same id to reuse the same hostedBuffer")
	}
	if second.epoch != 2 {
		t.Fatalf("expected epoch to bump to 2, got %d", second.epoch)
	}
}

func TestLookupUnknownBufferFails(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	if _, ok := r.Lookup(uuid.New()); ok {
		t.Fatal("expected Lookup to fail for an unregistered buffer")
	}
}

func TestEvictRemovesBuffer(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	id := uuid.New()
	r.Host(id, buffer.New(clock.ReplicaID(1)))
	r.Evict(id)
	if _, ok := r.Lookup(id); ok {
		t.Fatal("expected the evicted buffer to be gone")
	}
}

func TestAllocateReplicaNeverAllocatesZero(t *testing.T) {
	s := NewCollaboratorSet()
	id := s.AllocateReplica(make(chan []byte, 1))
	if id == 0 {
		t.Fatal("replica id 0 is reserved and must never be allocated")
	}
}

func TestAllocateReplicaFillsSmallestGap(t *testing.T) {
	s := NewCollaboratorSet()
	a := s.AllocateReplica(make(chan []byte, 1))
	b := s.AllocateReplica(make(chan []byte, 1))
	c := s.AllocateReplica(make(chan []byte, 1))
	if a != 1 || b != 2 || c != 3 {
		t.Fatalf("expected 1,2,3 in order, got %d,%d,%d", a, b, c)
	}
	s.Remove(b)
	d := s.AllocateReplica(make(chan []byte, 1))
	if d != 2 {
		t.Fatalf("expected the freed id 2 to be reused, got %d", d)
	}
}

func TestCollaboratorSetLenTracksLiveReplicas(t *testing.T) {
	s := NewCollaboratorSet()
	if s.Len() != 0 {
		t.Fatalf("expected empty set, got %d", s.Len())
	}
	id := s.AllocateReplica(make(chan []byte, 1))
	if s.Len() != 1 {
		t.Fatalf("expected 1 live replica, got %d", s.Len())
	}
	s.Remove(id)
	if s.Len() != 0 {
		t.Fatalf("expected 0 after removal, got %d", s.Len())
	}
}

func TestBroadcastExcludesOrigin(t *testing.T) {
	s := NewCollaboratorSet()
	chA := make(chan []byte, 1)
	chB := make(chan []byte, 1)
	a := s.AllocateReplica(chA)
	s.AllocateReplica(chB)

	s.Broadcast([]byte("hello"), a)

	select {
	case <-chA:
		t.Fatal("origin replica must not receive its own broadcast")
	default:
	}
	select {
	case msg := <-chB:
		if string(msg) != "hello" {
			t.Fatalf("unexpected payload %q", msg)
		}
	default:
		t.Fatal("expected the other replica to receive the broadcast")
	}
}

func TestBroadcastDropsOnFullChannelWithoutBlocking(t *testing.T) {
	s := NewCollaboratorSet()
	ch := make(chan []byte) // unbuffered: any send blocks unless dropped
	s.AllocateReplica(ch)

	done := make(chan struct{})
	go func() {
		s.Broadcast([]byte("x"), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full channel instead of dropping")
	}
}
