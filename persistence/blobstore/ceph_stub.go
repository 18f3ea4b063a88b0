//go:build !ceph

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

// CephConfig names a RADOS pool to store snapshots in. This stub
// build (no -tags=ceph) panics on use, matching
// storage.persistence-ceph-stub.go's fallback when go-ceph's cgo
// bindings aren't available in the build environment.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// CephStore is unusable in this build; construct it with NewCephStore
// only in a binary built with -tags=ceph.
type CephStore struct{}

func NewCephStore(CephConfig) *CephStore {
	panic("blobstore: ceph support not compiled in. Build with: go build -tags=ceph")
}
