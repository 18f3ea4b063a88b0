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

// Package bufferlog is the in-memory operation log a buffer's edits
// are appended to as they're applied, keyed by (buffer, epoch) so a
// rejoining collaborator can replay exactly the operations logged
// after a given sequence number within its epoch — what
// Session.Backfill (package collab) reads from instead of forcing
// every dropped connection back to a full snapshot.
package bufferlog

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/buffer"
)

// Row is one logged operation: the buffer and epoch it belongs to,
// its sequence number within that epoch (monotonic, gap-free), and
// the operation itself.
type Row struct {
	BufferID uuid.UUID
	Epoch    uint64
	Seq      uint64
	Op       buffer.Operation
}

// Log is an in-memory append-only operation log, one per hosted
// buffer. A real deployment backs this with persistence/sqlstore;
// this type is the in-process index OperationsSince queries against,
// and is what a sqlstore-backed implementation would hydrate on
// startup.
type Log struct {
	mu   sync.Mutex
	rows map[uuid.UUID]map[uint64][]Row // bufferID -> epoch -> rows in seq order
	seq  map[uuid.UUID]map[uint64]uint64
}

// New returns an empty log.
func New() *Log {
	return &Log{
		rows: make(map[uuid.UUID]map[uint64][]Row),
		seq:  make(map[uuid.UUID]map[uint64]uint64),
	}
}

// Append records op as the next row in (bufferID, epoch)'s sequence.
func (l *Log) Append(bufferID uuid.UUID, epoch uint64, op buffer.Operation) Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rows[bufferID] == nil {
		l.rows[bufferID] = make(map[uint64][]Row)
		l.seq[bufferID] = make(map[uint64]uint64)
	}
	l.seq[bufferID][epoch]++
	row := Row{BufferID: bufferID, Epoch: epoch, Seq: l.seq[bufferID][epoch], Op: op}
	l.rows[bufferID][epoch] = append(l.rows[bufferID][epoch], row)
	return row
}

// OperationsSince returns every row logged for bufferID at epoch
// strictly after afterSeq, in sequence order — what a rejoining
// collaborator (still on the same epoch) replays to catch up.
func (l *Log) OperationsSince(bufferID uuid.UUID, epoch uint64, afterSeq uint64) []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.rows[bufferID][epoch]
	idx := sort.Search(len(all), func(i int) bool { return all[i].Seq > afterSeq })
	if idx == len(all) {
		return nil
	}
	out := make([]Row, len(all)-idx)
	copy(out, all[idx:])
	return out
}

// LatestSeq returns the highest sequence number logged for
// (bufferID, epoch), or 0 if nothing has been logged yet.
func (l *Log) LatestSeq(bufferID uuid.UUID, epoch uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq[bufferID][epoch]
}
