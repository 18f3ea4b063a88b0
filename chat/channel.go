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
package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/zed-industries/zed-sub044/sumtree"
)

// EventKind distinguishes the two things a ChannelChatEvent can carry.
type EventKind int

const (
	// EventSaved means a message was durably appended and assigned an
	// ID (either a fresh send or an ack for a pending one).
	EventSaved EventKind = iota
	// EventReaction means a message's Reactions changed in place.
	EventReaction
)

// ChannelChatEvent is pushed to every connected collaborator as
// messages arrive, supplementing the base spec with the live-update
// path a chat log needs beyond plain request/response pagination.
type ChannelChatEvent struct {
	Kind    EventKind
	Message Message
}

// Channel is one chat channel's message log: a sum-tree of saved
// messages plus the set of messages a client has sent optimistically
// but not yet had acked by the server.
type Channel struct {
	mu       sync.Mutex
	messages sumtree.Tree[Message, MessageSummary]
	nextID   uint64

	// pending holds sent-but-unacked messages keyed by client nonce,
	// so SaveMessage's ack can find and promote the right one instead
	// of appending a duplicate (spec.md §4.4 ack-last requirement).
	pending map[uuid.UUID]Message

	subscribers []chan ChannelChatEvent
}

// NewChannel returns an empty channel.
func NewChannel() *Channel {
	return &Channel{pending: make(map[uuid.UUID]Message)}
}

// Subscribe registers a channel that receives every future event;
// the returned channel is buffered and events are dropped (not
// blocked on) for a subscriber that falls behind, matching the
// collaboration layer's broader "don't let one slow reader stall
// everyone" policy.
func (c *Channel) Subscribe() <-chan ChannelChatEvent {
	ch := make(chan ChannelChatEvent, 32)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

func (c *Channel) publish(ev ChannelChatEvent) {
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SendPending records an optimistic send under its client nonce,
// without assigning it a durable id yet — the caller echoes it back
// to the sender immediately while the server-side save proceeds
// asynchronously.
func (c *Channel) SendPending(msg Message) {
	c.mu.Lock()
	c.pending[msg.Nonce] = msg
	c.mu.Unlock()
}

// SaveMessage durably appends a message, assigning it the next id in
// sequence. If nonce matches a message recorded via SendPending, that
// pending entry is promoted (its body/sender are taken from the
// pending copy, not re-sent) and removed from the pending set — the
// ack-last rule that keeps an optimistic send from ever appearing
// twice.
func (c *Channel) SaveMessage(nonce uuid.UUID, fallback Message) Message {
	c.mu.Lock()
	msg, ok := c.pending[nonce]
	if !ok {
		msg = fallback
	}
	delete(c.pending, nonce)
	c.nextID++
	msg.ID = MessageID{Counter: c.nextID}
	c.messages = c.messages.Push(msg)
	c.mu.Unlock()

	c.publish(ChannelChatEvent{Kind: EventSaved, Message: msg})
	return msg
}

// React applies a last-write-wins reaction toggle for sender on the
// message named by id, publishing an EventReaction on change.
func (c *Channel) React(id MessageID, emoji string, sender uint64, add bool) {
	c.mu.Lock()
	items := c.messages.Items()
	var updated Message
	found := false
	for i, m := range items {
		if m.ID != id {
			continue
		}
		if m.Reactions == nil {
			m.Reactions = make(map[string][]uint64)
		}
		senders := m.Reactions[emoji]
		filtered := senders[:0]
		for _, s := range senders {
			if s != sender {
				filtered = append(filtered, s)
			}
		}
		if add {
			filtered = append(filtered, sender)
		}
		m.Reactions[emoji] = filtered
		items[i] = m
		updated = m
		found = true
		break
	}
	if found {
		c.messages = sumtree.FromItems[Message, MessageSummary](items)
	}
	c.mu.Unlock()
	if found {
		c.publish(ChannelChatEvent{Kind: EventReaction, Message: updated})
	}
}

// Page returns up to limit messages strictly before before if
// before is non-nil, or the most recent limit messages otherwise —
// the first-loaded-message pagination cursor a client walks backward
// through history with, one page at a time, without ever re-fetching
// the message it already has at the boundary.
func (c *Channel) Page(before *MessageID, limit int) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.messages.Items()
	end := len(items)
	if before != nil {
		end = 0
		for _, m := range items {
			if !m.ID.Less(*before) {
				break
			}
			end++
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, end-start)
	copy(out, items[start:end])
	return out
}

// MissingAncestors reports which of the requested ids this channel
// does not currently hold, so a client that received a message
// referencing an id it never fetched (e.g. a reply) can request
// exactly the gap instead of re-paginating from scratch.
func (c *Channel) MissingAncestors(ids []MessageID) []MessageID {
	c.mu.Lock()
	defer c.mu.Unlock()
	have := make(map[MessageID]bool, c.messages.Len())
	for _, m := range c.messages.Items() {
		have[m.ID] = true
	}
	var missing []MessageID
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
