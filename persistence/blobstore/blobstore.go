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

// Package blobstore holds large epoch-snapshot text blobs behind a
// single interface with interchangeable backends, the same shape as
// the teacher's storage.PersistenceEngine (storage/persistence.go):
// one schema.json-like object per snapshot, selectable between a
// local filesystem, S3, and Ceph/RADOS backend.
package blobstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Store persists and retrieves one snapshot blob per (buffer, epoch).
// A snapshot is the buffer's full visible text as of the epoch
// boundary, written once when collaborators all leave or on an
// operator-forced `bufferctl export-snapshot`, and read rarely (a
// buffer reload or a cold-start rejoin after a long gap).
type Store interface {
	WriteSnapshot(ctx context.Context, bufferID uuid.UUID, epoch uint64, data []byte) error
	ReadSnapshot(ctx context.Context, bufferID uuid.UUID, epoch uint64) ([]byte, error)
}

// objectKey is the layout every backend agrees on: one object per
// (buffer, epoch), mirroring the teacher's "<prefix>/<shard>-<col>"
// naming convention.
func objectKey(bufferID uuid.UUID, epoch uint64) string {
	return fmt.Sprintf("%s/epoch-%d.snapshot", bufferID.String(), epoch)
}
