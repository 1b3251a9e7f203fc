package domain

type RoomEventKind string

const (
	RoomCreated RoomEventKind = "create-room"
	RoomJoined  RoomEventKind = "join-room"
	RoomLeft    RoomEventKind = "leave-room"
	RoomDeleted RoomEventKind = "delete-room"
)

func (k RoomEventKind) Valid() bool {
	switch k {
	case RoomCreated, RoomJoined, RoomLeft, RoomDeleted:
		return true
	}
	return false
}

// RoomEvent describes a room lifecycle transition observed on some node of the cluster.
type RoomEvent struct {
	Kind         RoomEventKind `json:"kind"`
	RoomID       string        `json:"roomId"`
	ConnectionID string        `json:"connectionId,omitempty"`
	NodeID       string        `json:"nodeId"`
	// Remote is set when the transition happened on another process and was
	// mirrored through the shared log.
	Remote bool `json:"-"`
}
