package repository

import (
	"context"
	"sync"

	"github.com/hilthontt/interchange/internal/domain"
)

type membershipStore struct {
	rooms map[string]string // userID -> roomID
	mu    *sync.RWMutex
}

// NewMembershipStore returns the in-process store. It is neither shared across
// processes nor kept across restarts.
func NewMembershipStore() domain.MembershipStore {
	return &membershipStore{
		rooms: make(map[string]string),
		mu:    &sync.RWMutex{},
	}
}

func (s *membershipStore) RecordJoin(ctx context.Context, userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[userID] = roomID
	return nil
}

func (s *membershipStore) CurrentRoom(ctx context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomID, ok := s.rooms[userID]
	return roomID, ok, nil
}

func (s *membershipStore) Forget(ctx context.Context, userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.rooms[userID]; ok && current == roomID {
		delete(s.rooms, userID)
	}
	return nil
}
