//go:build ceph

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
package blobstore

import (
	"context"
	"path"
	"sync"

	"github.com/ceph/go-ceph/rados"
	"github.com/google/uuid"
)

// CephConfig names a RADOS pool to store snapshots in, mirroring
// storage.CephFactory's field set.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// CephStore stores snapshot blobs as RADOS objects, one per (buffer,
// epoch), directly mirroring storage.CephStorage's connection
// lifecycle: lazily connect, open one IOContext against the
// configured pool, and keep it open for the process lifetime.
type CephStore struct {
	cfg CephConfig

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
}

func NewCephStore(cfg CephConfig) *CephStore {
	return &CephStore{cfg: cfg}
}

func (s *CephStore) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	conn, err := rados.NewConnWithClusterAndUser(s.cfg.ClusterName, s.cfg.UserName)
	if err != nil {
		return err
	}
	if s.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(s.cfg.ConfFile); err != nil {
			return err
		}
	} else {
		_ = conn.ReadDefaultConfigFile()
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	ioctx, err := conn.OpenIOContext(s.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return err
	}
	s.conn = conn
	s.ioctx = ioctx
	s.opened = true
	return nil
}

func (s *CephStore) obj(bufferID uuid.UUID, epoch uint64) string {
	return path.Join(s.cfg.Prefix, objectKey(bufferID, epoch))
}

func (s *CephStore) WriteSnapshot(_ context.Context, bufferID uuid.UUID, epoch uint64, data []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.ioctx.WriteFull(s.obj(bufferID, epoch), data)
}

func (s *CephStore) ReadSnapshot(_ context.Context, bufferID uuid.UUID, epoch uint64) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	obj := s.obj(bufferID, epoch)
	stat, err := s.ioctx.Stat(obj)
	if err != nil {
		return nil, err
	}
	data := make([]byte, stat.Size)
	n, err := s.ioctx.Read(obj, data, 0)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}
