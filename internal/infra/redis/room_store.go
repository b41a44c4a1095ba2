package redis

import (
	"context"
	"sync"
	"time"

	"exam-prep-service/internal/battle"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of battle.RoomRepository.
// Rooms stay in a local map so the in-process broadcast keeps working;
// Redis only carries a liveness marker per room.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	rooms map[string]*battle.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*battle.Room),
	}
}

func (s *RoomStore) Put(room *battle.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID()] = room
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(room.ID()), "1", s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(roomID)).Err()
	return true
}

func (s *RoomStore) key(roomID string) string {
	return "battle:room:" + roomID
}
