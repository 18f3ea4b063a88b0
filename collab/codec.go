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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/clock"
	"github.com/zed-industries/zed-sub044/sumtree"
)

// Wire opcodes framing a message on the websocket transport. opJoin
// is sent once by the server immediately after a successful upgrade;
// every later frame in either direction is opEdit or opUndo.
const (
	opJoin byte = 0
	opEdit byte = 1
	opUndo byte = 2
)

// JoinReply is the server's first message to a newly joined
// collaborator: the replica id it was allocated, the buffer's current
// epoch, and a snapshot of its visible text and version to seed a
// local Buffer from (spec.md §4.4's join response).
type JoinReply struct {
	Replica clock.ReplicaID
	Epoch   uint64
	Text    []byte
	Version clock.Global
}

// EncodeJoinReply serializes a JoinReply as a single framed message.
func EncodeJoinReply(j JoinReply) []byte {
	var buf bytes.Buffer
	buf.WriteByte(opJoin)
	binary.Write(&buf, binary.BigEndian, uint16(j.Replica))
	writeUvarint(&buf, j.Epoch)
	writeBytes(&buf, j.Text)
	writeGlobal(&buf, j.Version)
	return buf.Bytes()
}

// DecodeJoinReply parses a message produced by EncodeJoinReply.
func DecodeJoinReply(data []byte) (JoinReply, error) {
	r := bytes.NewReader(data)
	opcode, err := r.ReadByte()
	if err != nil {
		return JoinReply{}, newError(KindCorruption, err)
	}
	if opcode != opJoin {
		return JoinReply{}, newError(KindUnknownOperation, fmt.Errorf("opcode %d is not a join reply", opcode))
	}
	var replica uint16
	if err := binary.Read(r, binary.BigEndian, &replica); err != nil {
		return JoinReply{}, newError(KindCorruption, err)
	}
	epoch, err := readUvarint(r)
	if err != nil {
		return JoinReply{}, newError(KindCorruption, err)
	}
	text, err := readBytes(r)
	if err != nil {
		return JoinReply{}, newError(KindCorruption, err)
	}
	version, err := readGlobal(r)
	if err != nil {
		return JoinReply{}, newError(KindCorruption, err)
	}
	return JoinReply{Replica: clock.ReplicaID(replica), Epoch: epoch, Text: text, Version: version}, nil
}

// EncodeOperation serializes an operation into a single framed
// binary message (the format collabd's broadcasts and the sqlstore
// operation rows use).
func EncodeOperation(op buffer.Operation) ([]byte, error) {
	var buf bytes.Buffer
	switch o := op.(type) {
	case buffer.EditOperation:
		buf.WriteByte(opEdit)
		writeLamport(&buf, o.Timestamp)
		writeGlobal(&buf, o.Version)
		writeUvarint(&buf, uint64(len(o.Ranges)))
		for i, r := range o.Ranges {
			writeAnchor(&buf, r.Start)
			writeAnchor(&buf, r.End)
			writeBytes(&buf, o.NewText[i])
		}
		return buf.Bytes(), nil
	case buffer.UndoOperation:
		buf.WriteByte(opUndo)
		writeLamport(&buf, o.Timestamp)
		writeGlobal(&buf, o.Version)
		writeUvarint(&buf, uint64(len(o.Counts)))
		for ts, count := range o.Counts {
			writeLamport(&buf, ts)
			writeUvarint(&buf, uint64(count))
		}
		return buf.Bytes(), nil
	default:
		return nil, newError(KindUnknownOperation, fmt.Errorf("unrecognized operation type %T", op))
	}
}

// DecodeOperation parses a framed binary message back into an
// Operation. A malformed frame returns KindCorruption; a well-formed
// frame whose opcode this codec doesn't know returns
// KindUnknownOperation.
func DecodeOperation(data []byte) (buffer.Operation, error) {
	r := bytes.NewReader(data)
	opcode, err := r.ReadByte()
	if err != nil {
		return nil, newError(KindCorruption, err)
	}
	switch opcode {
	case opEdit:
		ts, err := readLamport(r)
		if err != nil {
			return nil, newError(KindCorruption, err)
		}
		version, err := readGlobal(r)
		if err != nil {
			return nil, newError(KindCorruption, err)
		}
		n, err := readUvarint(r)
		if err != nil {
			return nil, newError(KindCorruption, err)
		}
		ranges := make([]buffer.AnchorRange, n)
		texts := make([][]byte, n)
		for i := range ranges {
			start, err := readAnchor(r)
			if err != nil {
				return nil, newError(KindCorruption, err)
			}
			end, err := readAnchor(r)
			if err != nil {
				return nil, newError(KindCorruption, err)
			}
			text, err := readBytes(r)
			if err != nil {
				return nil, newError(KindCorruption, err)
			}
			ranges[i] = buffer.AnchorRange{Start: start, End: end}
			texts[i] = text
		}
		return buffer.EditOperation{Timestamp: ts, Version: version, Ranges: ranges, NewText: texts}, nil
	case opUndo:
		ts, err := readLamport(r)
		if err != nil {
			return nil, newError(KindCorruption, err)
		}
		version, err := readGlobal(r)
		if err != nil {
			return nil, newError(KindCorruption, err)
		}
		n, err := readUvarint(r)
		if err != nil {
			return nil, newError(KindCorruption, err)
		}
		counts := make(map[clock.Lamport]uint32, n)
		for i := uint64(0); i < n; i++ {
			target, err := readLamport(r)
			if err != nil {
				return nil, newError(KindCorruption, err)
			}
			count, err := readUvarint(r)
			if err != nil {
				return nil, newError(KindCorruption, err)
			}
			counts[target] = uint32(count)
		}
		return buffer.UndoOperation{Timestamp: ts, Version: version, Counts: counts}, nil
	default:
		return nil, newError(KindUnknownOperation, fmt.Errorf("opcode %d", opcode))
	}
}

func writeLamport(buf *bytes.Buffer, t clock.Lamport) {
	binary.Write(buf, binary.BigEndian, uint16(t.Replica))
	binary.Write(buf, binary.BigEndian, t.Counter)
}

func readLamport(r *bytes.Reader) (clock.Lamport, error) {
	var replica uint16
	var counter uint32
	if err := binary.Read(r, binary.BigEndian, &replica); err != nil {
		return clock.Lamport{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &counter); err != nil {
		return clock.Lamport{}, err
	}
	return clock.Lamport{Replica: clock.ReplicaID(replica), Counter: counter}, nil
}

func writeGlobal(buf *bytes.Buffer, g clock.Global) {
	writeUvarint(buf, uint64(g.Len()))
	g.Iter(func(replica clock.ReplicaID, counter uint32) {
		binary.Write(buf, binary.BigEndian, uint16(replica))
		binary.Write(buf, binary.BigEndian, counter)
	})
}

func readGlobal(r *bytes.Reader) (clock.Global, error) {
	n, err := readUvarint(r)
	if err != nil {
		return clock.Global{}, err
	}
	counts := make(map[clock.ReplicaID]uint32, n)
	for i := uint64(0); i < n; i++ {
		var replica uint16
		var counter uint32
		if err := binary.Read(r, binary.BigEndian, &replica); err != nil {
			return clock.Global{}, err
		}
		if err := binary.Read(r, binary.BigEndian, &counter); err != nil {
			return clock.Global{}, err
		}
		counts[clock.ReplicaID(replica)] = counter
	}
	return clock.FromCounters(counts), nil
}

func writeAnchor(buf *bytes.Buffer, a buffer.Anchor) {
	writeLamport(buf, a.InsertionID)
	writeUvarint(buf, uint64(a.InsertionOffset))
	if a.Bias == sumtree.Right {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readAnchor(r *bytes.Reader) (buffer.Anchor, error) {
	id, err := readLamport(r)
	if err != nil {
		return buffer.Anchor{}, err
	}
	offset, err := readUvarint(r)
	if err != nil {
		return buffer.Anchor{}, err
	}
	biasByte, err := r.ReadByte()
	if err != nil {
		return buffer.Anchor{}, err
	}
	bias := sumtree.Left
	if biasByte == 1 {
		bias = sumtree.Right
	}
	return buffer.Anchor{InsertionID: id, InsertionOffset: int(offset), Bias: bias}, nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}
