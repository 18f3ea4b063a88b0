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

// Package collab implements the collaboration layer: joining a shared
// buffer, allocating replica ids, relaying edit/undo operations
// between collaborators over a websocket transport, and recovering a
// dropped session without losing unacknowledged edits.
package collab

import "fmt"

// Kind classifies a collaboration error the way a client needs to
// react to it: retry, resync, or give up.
type Kind int

const (
	// KindInvalidEdit means the operation's ranges were malformed
	// (overlapping or unordered) and were rejected before any
	// mutation — safe to drop, nothing to resync.
	KindInvalidEdit Kind = iota
	// KindUnknownOperation means the wire frame named an operation
	// type this version of the codec doesn't recognize.
	KindUnknownOperation
	// KindEpochMismatch means the sender's epoch no longer matches
	// the buffer's current epoch (a rejoin or snapshot happened
	// concurrently) — the caller must rejoin before retrying.
	KindEpochMismatch
	// KindTransport covers any I/O or protocol-framing failure on the
	// underlying connection.
	KindTransport
	// KindNotCollaborator means the session tried to act on a buffer
	// it never successfully joined, or called Rejoin while not in
	// StateLost.
	KindNotCollaborator
	// KindCorruption means a received frame failed to decode as a
	// well-formed operation at all (distinct from UnknownOperation,
	// which decodes fine but names an unsupported variant).
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindInvalidEdit:
		return "invalid_edit"
	case KindUnknownOperation:
		return "unknown_operation"
	case KindEpochMismatch:
		return "epoch_mismatch"
	case KindTransport:
		return "transport"
	case KindNotCollaborator:
		return "not_collaborator"
	case KindCorruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with the underlying cause, the uniform error
// type every exported collab operation returns.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(k Kind, cause error) *Error {
	return &Error{Kind: k, Cause: cause}
}
