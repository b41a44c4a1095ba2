package memory

import (
	"sync"

	"exam-prep-service/internal/battle"
)

// RoomStore is an in-memory implementation of battle.RoomRepository.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*battle.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*battle.Room),
	}
}

func (s *RoomStore) Put(room *battle.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID()] = room
}

func (s *RoomStore) Get(roomID string) (*battle.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) DeleteIfEmpty(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || !room.IsEmpty() {
		return false
	}
	delete(s.rooms, roomID)
	return true
}
