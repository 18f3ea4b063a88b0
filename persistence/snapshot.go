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

// Package persistence ties bufferlog's in-memory operation index to
// durable storage: persistence/sqlstore for the per-operation log and
// persistence/blobstore for whole-buffer epoch snapshots. This file
// holds the cold-backup export path bufferctl's export-snapshot
// command drives.
package persistence

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
)

// ExportSnapshot compresses text with xz for cold storage: an epoch
// snapshot is written once and read rarely (an operator-initiated
// backup or a disaster-recovery restore), so xz's higher compression
// ratio is worth its slower throughput here, unlike the
// per-operation log rows in sqlstore which favor lz4's speed on a hot
// append path.
func ExportSnapshot(text []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(text); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImportSnapshot reverses ExportSnapshot.
func ImportSnapshot(compressed []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
