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
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore is the default backend: one file per snapshot under
// Basepath, directly mirroring storage.FileFactory/FileStorage's
// layout (a schema.json-style file per logical object, written
// whole and read whole — no partial-object updates).
type FileStore struct {
	Basepath string
}

func (f *FileStore) path(bufferID uuid.UUID, epoch uint64) string {
	return filepath.Join(f.Basepath, objectKey(bufferID, epoch))
}

func (f *FileStore) WriteSnapshot(_ context.Context, bufferID uuid.UUID, epoch uint64, data []byte) error {
	p := f.path(bufferID, epoch)
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *FileStore) ReadSnapshot(_ context.Context, bufferID uuid.UUID, epoch uint64) ([]byte, error) {
	return os.ReadFile(f.path(bufferID, epoch))
}
