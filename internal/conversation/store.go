// Package conversation keeps the ordered, deduplicated message log for the
// active peer.
package conversation

import (
	"sync"

	"safechat/internal/domain"
)

// Store is the per-peer conversation log. Messages are kept in insertion
// order and deduplicated on id only; the log is replaced wholesale when the
// active peer changes. All methods are safe for concurrent use and each
// mutation is atomic.
type Store struct {
	mu         sync.Mutex
	activePeer string
	messages   []domain.DisplayMessage
	seen       map[string]struct{}
}

// NewStore returns an empty store with no active peer.
func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// Reset clears the log and makes peerID the active peer. An empty peerID
// leaves no conversation selected.
func (s *Store) Reset(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePeer = peerID
	s.messages = nil
	s.seen = make(map[string]struct{})
}

// Seed replaces the log with fetched history, in received order. Duplicate
// ids within the history collapse to their first occurrence.
func (s *Store) Seed(history []domain.DisplayMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]domain.DisplayMessage, 0, len(history))
	s.seen = make(map[string]struct{}, len(history))
	for _, msg := range history {
		if _, dup := s.seen[msg.ID]; dup {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		s.messages = append(s.messages, msg)
	}
}

// AppendIfNew inserts msg at the tail unless an entry with the same id
// already exists, and reports whether it was inserted. This is the single
// dedup gate for both the local optimistic echo and server pushes. The echo
// carries a client-generated id distinct from any server id, so the same
// logical message can legitimately appear twice if the server echoes sends
// back under its own id; that is accepted behavior, not reconciled here.
func (s *Store) AppendIfNew(msg domain.DisplayMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[msg.ID]; dup {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	return true
}

// Messages returns a snapshot of the log in order.
func (s *Store) Messages() []domain.DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DisplayMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// ActivePeer returns the peer the log is currently scoped to, or "".
func (s *Store) ActivePeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// IsRelevant reports whether a pushed message belongs in the currently
// displayed log: it must be exactly between localID and activePeerID, in
// either direction.
func IsRelevant(msg domain.DisplayMessage, localID, activePeerID string) bool {
	if localID == "" || activePeerID == "" {
		return false
	}
	return (msg.SenderID == localID && msg.RecipientID == activePeerID) ||
		(msg.SenderID == activePeerID && msg.RecipientID == localID)
}
