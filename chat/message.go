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

// Package chat implements the per-channel message log: an
// append-mostly sum-tree of messages ordered by id, supporting
// pagination, an optimistic-send/ack-last pending-message protocol,
// and a live event stream for connected collaborators.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/sumtree"
)

// MessageID orders messages within a channel; Counter is assigned by
// the server on save, so pending (unsaved) messages use their Nonce
// for identity until the server's ack assigns them one.
type MessageID struct {
	Counter uint64
}

func (id MessageID) Less(other MessageID) bool { return id.Counter < other.Counter }

func (id MessageID) CompareTo(d MessagePos) int {
	switch {
	case id.Counter < d.MaxID.Counter:
		return -1
	case id.Counter > d.MaxID.Counter:
		return 1
	default:
		return 0
	}
}

// Message is one chat entry. Nonce is a client-generated identifier
// used to de-duplicate an optimistic send against the server's
// eventual ack, per spec.md §4.4's ack-last requirement; it survives
// even after ID is assigned so a client can match its own echo.
type Message struct {
	ID        MessageID
	Nonce     uuid.UUID
	SenderID  uint64
	Body      string
	SentAt    time.Time
	Reactions map[string][]uint64 // emoji -> sender ids, last-write-wins per sender
}

func (m Message) Summary() MessageSummary { return MessageSummary{MaxID: m.ID, Count: 1} }

func (m Message) Key() MessageID { return m.ID }

// MessageSummary is the channel log's sum-tree monoid: the running
// maximum id plus count, the same {max_id, count} shape spec.md §3
// describes for SumTree<Message> (and the one buffer's insertion index
// already reuses for fragments).
type MessageSummary struct {
	MaxID MessageID
	Count int
}

func (s MessageSummary) Add(other MessageSummary) MessageSummary {
	if other.Count == 0 {
		return s
	}
	if s.Count == 0 || s.MaxID.Less(other.MaxID) {
		return MessageSummary{MaxID: other.MaxID, Count: s.Count + other.Count}
	}
	return MessageSummary{MaxID: s.MaxID, Count: s.Count + other.Count}
}

func (s MessageSummary) ItemCount() int { return s.Count }

// MessagePos is the running-max-id dimension, used to seek directly
// to a message by id in O(log n).
type MessagePos MessageID

func (d MessagePos) AddSummary(s MessageSummary) MessagePos {
	if s.Count == 0 {
		return d
	}
	return MessagePos(s.MaxID)
}

// MessageCount pages through the log positionally (first-loaded-page
// cursor, newest-first history scroll).
type MessageCount = sumtree.Count[MessageSummary]
