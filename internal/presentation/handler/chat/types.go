package chat

import (
	"context"

	"github.com/hilthontt/interchange/internal/infrastructure/ws"
)

// Session is what the authorization gate attaches to a socket for its whole life.
type Session struct {
	RoomID string
	UserID string
}

// Broadcaster is the slice of the room adapter the gateway drives.
type Broadcaster interface {
	Join(ctx context.Context, cl *ws.Client)
	Leave(ctx context.Context, cl *ws.Client)
	Publish(ctx context.Context, roomID, event string, payload []byte) error
}

// Observer receives gateway outcomes; metrics hook in here.
type Observer interface {
	Connected()
	Disconnected()
	Rejected(reason string)
	Message(outcome string)
}

type nopObserver struct{}

func (nopObserver) Connected()      {}
func (nopObserver) Disconnected()   {}
func (nopObserver) Rejected(string) {}
func (nopObserver) Message(string)  {}
