package ws

import "sync"

// RoomManager tracks which sockets on this node sit in which room.
// Rooms exist only while they have at least one local socket.
type RoomManager struct {
	rooms map[string]map[string]*Client // roomID → socketID → client
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]*Client),
	}
}

// Add places cl in its room. created reports whether the room was new on this node.
func (rm *RoomManager) Add(cl *Client) (created, added bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[cl.RoomID]
	if !ok {
		room = make(map[string]*Client)
		rm.rooms[cl.RoomID] = room
		created = true
	}

	if _, exists := room[cl.ID]; exists {
		return created, false
	}
	room[cl.ID] = cl
	return created, true
}

// Remove takes cl out of its room. deleted reports whether the room is now gone.
func (rm *RoomManager) Remove(cl *Client) (removed, deleted bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[cl.RoomID]
	if !ok {
		return false, false
	}
	if _, ok := room[cl.ID]; !ok {
		return false, false
	}

	delete(room, cl.ID)
	if len(room) == 0 {
		delete(rm.rooms, cl.RoomID)
		return true, true
	}
	return true, false
}

// Broadcast queues f for every local socket in roomID and returns how many accepted it.
func (rm *RoomManager) Broadcast(roomID string, f *Frame) int {
	rm.mu.RLock()
	room := rm.rooms[roomID]
	clients := make([]*Client, 0, len(room))
	for _, cl := range room {
		clients = append(clients, cl)
	}
	rm.mu.RUnlock()

	delivered := 0
	for _, cl := range clients {
		if cl.Emit(f) {
			delivered++
		}
	}
	return delivered
}

func (rm *RoomManager) Size(roomID string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return len(rm.rooms[roomID])
}

func (rm *RoomManager) Rooms() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return len(rm.rooms)
}

// DisconnectAll closes every local socket. Their read pumps then unwind
// through the normal disconnect path.
func (rm *RoomManager) DisconnectAll() {
	rm.mu.RLock()
	var clients []*Client
	for _, room := range rm.rooms {
		for _, cl := range room {
			clients = append(clients, cl)
		}
	}
	rm.mu.RUnlock()

	for _, cl := range clients {
		cl.Close()
	}
}
