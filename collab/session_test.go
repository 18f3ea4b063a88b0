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

	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/bufferlog"
	"github.com/zed-industries/zed-sub044/clock"
)

func TestJoinAllocatesReplicaAndMarksJoined(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	host := r.Host(uuid.New(), buffer.New(clock.ReplicaID(1)))
	set := NewCollaboratorSet()

	s := Join(host, set)
	if s.state != StateJoined {
		t.Fatalf("expected StateJoined, got %v", s.state)
	}
	if s.Replica() == 0 {
		t.Fatal("Join must never allocate replica 0")
	}
	if set.Len() != 1 {
		t.Fatalf("expected the collaborator set to record 1 live replica, got %d", set.Len())
	}
}

func TestLostThenRejoinRestoresJoinedState(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	host := r.Host(uuid.New(), buffer.New(clock.ReplicaID(1)))
	set := NewCollaboratorSet()
	s := Join(host, set)

	s.Lost()
	if s.state != StateLost {
		t.Fatalf("expected StateLost, got %v", s.state)
	}
	if set.Len() != 0 {
		t.Fatalf("expected Lost to leave the replica out of the live set until Rejoin, got %d", set.Len())
	}

	if err := s.Rejoin(); err != nil {
		t.Fatalf("expected Rejoin to succeed, got %v", err)
	}
	if s.state != StateJoined {
		t.Fatalf("expected StateJoined after Rejoin, got %v", s.state)
	}
	if set.Len() != 1 {
		t.Fatalf("expected Rejoin to restore the replica to the live set, got %d", set.Len())
	}
}

func TestRejoinFailsWithoutPriorLoss(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	host := r.Host(uuid.New(), buffer.New(clock.ReplicaID(1)))
	set := NewCollaboratorSet()
	s := Join(host, set)

	err := s.Rejoin()
	if err == nil {
		t.Fatal("expected an error rejoining a session that was never lost")
	}
	if cerr, ok := err.(*Error); !ok || cerr.Kind != KindNotCollaborator {
		t.Fatalf("expected KindNotCollaborator, got %v", err)
	}
}

func TestRejoinFailsAfterEpochBump(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	id := uuid.New()
	host := r.Host(id, buffer.New(clock.ReplicaID(1)))
	set := NewCollaboratorSet()
	s := Join(host, set)
	s.Lost()

	r.Host(id, buffer.New(clock.ReplicaID(1))) // reload bumps the epoch

	err := s.Rejoin()
	if err == nil {
		t.Fatal("expected an error rejoining after the buffer's epoch advanced")
	}
	if cerr, ok := err.(*Error); !ok || cerr.Kind != KindEpochMismatch {
		t.Fatalf("expected KindEpochMismatch, got %v", err)
	}
	if s.state != StateLost {
		t.Fatalf("expected a failed Rejoin to leave the session StateLost, got %v", s.state)
	}
}

func TestCloseReturnsReplicaToPool(t *testing.T) {
	r := NewBufferRegistry(bufferlog.New())
	host := r.Host(uuid.New(), buffer.New(clock.ReplicaID(1)))
	set := NewCollaboratorSet()
	s := Join(host, set)
	replica := s.Replica()

	s.Close()
	if set.Len() != 0 {
		t.Fatalf("expected Close to remove the replica from the live set, got %d", set.Len())
	}

	other := Join(host, set)
	if other.Replica() != replica {
		t.Fatalf("expected the freed replica id %d to be reused, got %d", replica, other.Replica())
	}
}

func TestSubmitEditAppendsToLogAndBroadcasts(t *testing.T) {
	log := bufferlog.New()
	r := NewBufferRegistry(log)
	id := uuid.New()
	host := r.Host(id, buffer.NewFromText(clock.ReplicaID(1), []byte("hello")))
	set := NewCollaboratorSet()
	author := Join(host, set)

	peerCh := make(chan []byte, 1)
	peer := set.AllocateReplica(peerCh)
	_ = peer

	op, err := author.SubmitEdit([]buffer.ByteRange{{Start: 0, End: 5}}, [][]byte{[]byte("bye")})
	if err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}
	if op.NewText == nil {
		t.Fatal("expected a non-nil operation back from SubmitEdit")
	}

	select {
	case frame := <-peerCh:
		decoded, err := DecodeOperation(frame)
		if err != nil {
			t.Fatalf("decode broadcast frame: %v", err)
		}
		if _, ok := decoded.(buffer.EditOperation); !ok {
			t.Fatalf("expected an EditOperation broadcast, got %T", decoded)
		}
	default:
		t.Fatal("expected the edit to be broadcast to the other collaborator")
	}

	rows := log.OperationsSince(id, 1, 0)
	if len(rows) != 1 {
		t.Fatalf("expected the edit to be appended to the log, got %d rows", len(rows))
	}
}

func TestDeliverAppliesRemoteAndBroadcastsExceptOrigin(t *testing.T) {
	log := bufferlog.New()
	r := NewBufferRegistry(log)
	id := uuid.New()
	buf := buffer.NewFromText(clock.ReplicaID(1), []byte("hello"))
	host := r.Host(id, buf)
	set := NewCollaboratorSet()
	s := Join(host, set)

	remoteText := buffer.NewFromText(clock.ReplicaID(2), []byte("hello"))
	op, err := remoteText.Edit([]buffer.ByteRange{{Start: 0, End: 0}}, [][]byte{[]byte("X")})
	if err != nil {
		t.Fatalf("building remote op: %v", err)
	}

	s.Deliver(op)

	if host.buf.Len() != len("Xhello") {
		t.Fatalf("expected the remote edit to be applied, got length %d", host.buf.Len())
	}
	rows := log.OperationsSince(id, 1, 0)
	if len(rows) != 1 {
		t.Fatalf("expected Deliver to append to the log, got %d rows", len(rows))
	}
}

func TestBackfillReturnsNilWithoutALog(t *testing.T) {
	r := NewBufferRegistry(nil)
	host := r.Host(uuid.New(), buffer.New(clock.ReplicaID(1)))
	set := NewCollaboratorSet()
	s := Join(host, set)
	if rows := s.Backfill(0); rows != nil {
		t.Fatalf("expected nil backfill with no log attached, got %v", rows)
	}
}

func TestBackfillReturnsLoggedOperations(t *testing.T) {
	log := bufferlog.New()
	r := NewBufferRegistry(log)
	host := r.Host(uuid.New(), buffer.NewFromText(clock.ReplicaID(1), []byte("hello")))
	set := NewCollaboratorSet()
	s := Join(host, set)

	if _, err := s.SubmitEdit([]buffer.ByteRange{{Start: 5, End: 5}}, [][]byte{[]byte("!")}); err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}
	if _, err := s.SubmitEdit([]buffer.ByteRange{{Start: 0, End: 0}}, [][]byte{[]byte(">")}); err != nil {
		t.Fatalf("SubmitEdit: %v", err)
	}

	rows := s.Backfill(1)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after seq 1, got %d", len(rows))
	}
	if rows[0].Seq != 2 {
		t.Fatalf("expected seq 2, got %d", rows[0].Seq)
	}
}
