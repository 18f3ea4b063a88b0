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
	"bytes"
	"reflect"
	"testing"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/clock"
	"github.com/zed-industries/zed-sub044/sumtree"
)

func TestEncodeDecodeEditOperationRoundTrips(t *testing.T) {
	g := clock.NewGlobal()
	g = g.Merge(clock.FromCounters(map[clock.ReplicaID]uint32{1: 3, 2: 5}))
	op := buffer.EditOperation{
		Timestamp: clock.Lamport{Replica: 1, Counter: 4},
		Version:   g,
		Ranges: []buffer.AnchorRange{
			{
				Start: buffer.Anchor{InsertionID: clock.Lamport{Replica: 0, Counter: 0}, InsertionOffset: 2, Bias: sumtree.Left},
				End:   buffer.Anchor{InsertionID: clock.Lamport{Replica: 0, Counter: 0}, InsertionOffset: 5, Bias: sumtree.Right},
			},
		},
		NewText: [][]byte{[]byte("hello")},
	}

	frame, err := EncodeOperation(op)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeOperation(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(buffer.EditOperation)
	if !ok {
		t.Fatalf("expected EditOperation, got %T", decoded)
	}
	if got.Timestamp != op.Timestamp {
		t.Fatalf("timestamp mismatch: %+v != %+v", got.Timestamp, op.Timestamp)
	}
	if !reflect.DeepEqual(got.Ranges, op.Ranges) {
		t.Fatalf("ranges mismatch: %+v != %+v", got.Ranges, op.Ranges)
	}
	if len(got.NewText) != 1 || !bytes.Equal(got.NewText[0], op.NewText[0]) {
		t.Fatalf("text mismatch: %+v != %+v", got.NewText, op.NewText)
	}
	if got.Version.Get(1) != 3 || got.Version.Get(2) != 5 {
		t.Fatalf("version mismatch: replica1=%d replica2=%d", got.Version.Get(1), got.Version.Get(2))
	}
}

func TestEncodeDecodeUndoOperationRoundTrips(t *testing.T) {
	op := buffer.UndoOperation{
		Timestamp: clock.Lamport{Replica: 2, Counter: 9},
		Version:   clock.NewGlobal(),
		Counts: map[clock.Lamport]uint32{
			{Replica: 1, Counter: 1}: 1,
			{Replica: 1, Counter: 2}: 3,
		},
	}
	frame, err := EncodeOperation(op)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeOperation(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(buffer.UndoOperation)
	if !ok {
		t.Fatalf("expected UndoOperation, got %T", decoded)
	}
	if !reflect.DeepEqual(got.Counts, op.Counts) {
		t.Fatalf("counts mismatch: %+v != %+v", got.Counts, op.Counts)
	}
}

func TestDecodeOperationRejectsUnknownOpcode(t *testing.T) {
	if _, err := DecodeOperation([]byte{99}); err == nil {
		t.Fatal("expected an error for an unrecognized opcode")
	}
}

func TestDecodeOperationRejectsTruncatedFrame(t *testing.T) {
	frame, err := EncodeOperation(buffer.EditOperation{Version: clock.NewGlobal()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeOperation(frame[:len(frame)-1]); err == nil {
		t.Fatal("expected an error for a truncated frame")
	}
}

func TestJoinReplyRoundTrips(t *testing.T) {
	reply := JoinReply{
		Replica: 7,
		Epoch:   3,
		Text:    []byte("hello world"),
		Version: clock.FromCounters(map[clock.ReplicaID]uint32{1: 2}),
	}
	frame := EncodeJoinReply(reply)
	decoded, err := DecodeJoinReply(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Replica != reply.Replica || decoded.Epoch != reply.Epoch {
		t.Fatalf("header mismatch: %+v != %+v", decoded, reply)
	}
	if !bytes.Equal(decoded.Text, reply.Text) {
		t.Fatalf("text mismatch: %q != %q", decoded.Text, reply.Text)
	}
	if decoded.Version.Get(1) != 2 {
		t.Fatalf("version mismatch: %d", decoded.Version.Get(1))
	}
}

func TestDecodeJoinReplyRejectsWrongOpcode(t *testing.T) {
	frame, _ := EncodeOperation(buffer.EditOperation{Version: clock.NewGlobal()})
	if _, err := DecodeJoinReply(frame); err == nil {
		t.Fatal("expected an error when decoding a non-join frame as a JoinReply")
	}
}
