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

// Package sqlstore is the durable backing store bufferlog.Log indexes
// in memory: every applied operation is appended as a row keyed by
// (buffer, epoch, seq), queryable by "operations after seq" for
// rejoin replay — the SQL-backed widening of spec.md §6's bare
// buffer-row schema that db/queries/buffers.rs's "operations since
// version" query calls for (see DESIGN.md). Two backends are
// supported behind one *Store, selected by Backend, mirroring the
// teacher's own multi-backend storage.PersistenceEngine pattern
// (storage/persistence.go) applied to a SQL target instead of a
// blob target.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pierrec/lz4/v4"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/buffer"
	"github.com/zed-industries/zed-sub044/bufferlog"
	"github.com/zed-industries/zed-sub044/collab"
)

// Backend selects which database/sql driver a Store talks through.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
)

// Store is a SQL-backed operation log, one row per applied operation.
// Row payloads are lz4-compressed before insertion, exactly as the
// teacher compresses its own column storage (pierrec/lz4 is already
// its dependency for that purpose) — operation frames are small and
// numerous, so a fast block compressor suits the hot append path
// better than xz's higher ratio (used by the cold snapshot-export
// path, persistence.ExportSnapshot, instead).
type Store struct {
	db      *sql.DB
	backend Backend
}

// Open connects to dsn using backend's driver and ensures the
// operation-log schema exists.
func Open(ctx context.Context, backend Backend, dsn string) (*Store, error) {
	driver := "postgres"
	if backend == BackendMySQL {
		driver = "mysql"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, backend: backend}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) placeholder(i int) string {
	if s.backend == BackendMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", i)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS buffer_operations (
	buffer_id CHAR(36) NOT NULL,
	epoch BIGINT NOT NULL,
	seq BIGINT NOT NULL,
	payload BLOB,
	PRIMARY KEY (buffer_id, epoch, seq)
)`)
	return err
}

// AppendOperation inserts op as row (bufferID, epoch, seq). Callers
// (bufferlog.Log's owner) are responsible for assigning a gap-free
// seq; a duplicate insert is a programmer error and returns the
// driver's constraint-violation error unchanged.
func (s *Store) AppendOperation(ctx context.Context, bufferID uuid.UUID, epoch, seq uint64, op buffer.Operation) error {
	frame, err := collab.EncodeOperation(op)
	if err != nil {
		return err
	}
	payload := compress(frame)
	query := fmt.Sprintf(
		"INSERT INTO buffer_operations (buffer_id, epoch, seq, payload) VALUES (%s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
	)
	_, err = s.db.ExecContext(ctx, query, bufferID.String(), epoch, seq, payload)
	return err
}

// OperationsSince returns every row logged for bufferID at epoch with
// seq strictly greater than afterSeq, in sequence order — the query
// db/queries/buffers.rs's rejoin path needs widened into this schema
// (see DESIGN.md).
func (s *Store) OperationsSince(ctx context.Context, bufferID uuid.UUID, epoch, afterSeq uint64) ([]bufferlog.Row, error) {
	query := fmt.Sprintf(
		"SELECT seq, payload FROM buffer_operations WHERE buffer_id = %s AND epoch = %s AND seq > %s ORDER BY seq",
		s.placeholder(1), s.placeholder(2), s.placeholder(3),
	)
	rows, err := s.db.QueryContext(ctx, query, bufferID.String(), epoch, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bufferlog.Row
	for rows.Next() {
		var seq uint64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, err
		}
		frame, err := decompress(payload)
		if err != nil {
			return nil, err
		}
		op, err := collab.DecodeOperation(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, bufferlog.Row{BufferID: bufferID, Epoch: epoch, Seq: seq, Op: op})
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// compress block-compresses frame with lz4, the same compressor the
// teacher already depends on for column storage.
func compress(frame []byte) []byte {
	out := make([]byte, lz4.CompressBlockBound(len(frame)))
	var c lz4.Compressor
	n, err := c.CompressBlock(frame, out)
	if err != nil || n == 0 {
		// incompressible or too small to benefit; store raw behind a
		// leading 0 byte the inverse recognizes.
		return append([]byte{0}, frame...)
	}
	header := make([]byte, 9)
	header[0] = 1
	putUint64(header[1:], uint64(len(frame)))
	return append(header, out[:n]...)
}

func decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if payload[0] == 0 {
		return payload[1:], nil
	}
	origLen := getUint64(payload[1:9])
	dst := make([]byte, origLen)
	n, err := lz4.UncompressBlock(payload[9:], dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
