// Package adapter bridges the sockets attached to this node with the shared
// event log, so that a room spans every node of the cluster.
package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hilthontt/interchange/internal/domain"
	"github.com/hilthontt/interchange/internal/infrastructure/eventlog"
	"github.com/hilthontt/interchange/internal/infrastructure/logging"
	"github.com/hilthontt/interchange/internal/infrastructure/ws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "github.com/hilthontt/interchange/adapter"

type RoomEventHandler func(domain.RoomEvent)

// RemoteDeliveryHandler sees every message record from another node after it
// was fanned out to the local members of its room.
type RemoteDeliveryHandler func(roomID string, delivered int)

type Adapter struct {
	node   string
	log    eventlog.Log
	rooms  *ws.RoomManager
	logger *zap.SugaredLogger

	mu       sync.RWMutex
	handlers map[domain.RoomEventKind][]RoomEventHandler
	remote   []RemoteDeliveryHandler
}

type Option func(*Adapter)

// WithNodeID pins the node identity; by default every adapter gets a fresh one.
func WithNodeID(id string) Option {
	return func(a *Adapter) {
		a.node = id
	}
}

func New(log eventlog.Log, rooms *ws.RoomManager, logger *zap.SugaredLogger, opts ...Option) *Adapter {
	a := &Adapter{
		node:     uuid.NewString(),
		log:      log,
		rooms:    rooms,
		handlers: make(map[domain.RoomEventKind][]RoomEventHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.With(logger, logging.Adapter, logging.Delivery).With(string(logging.NodeID), a.node)
	return a
}

func (a *Adapter) NodeID() string {
	return a.node
}

func (a *Adapter) OnRoomCreated(h RoomEventHandler) { a.on(domain.RoomCreated, h) }
func (a *Adapter) OnRoomJoined(h RoomEventHandler)  { a.on(domain.RoomJoined, h) }
func (a *Adapter) OnRoomLeft(h RoomEventHandler)    { a.on(domain.RoomLeft, h) }
func (a *Adapter) OnRoomDeleted(h RoomEventHandler) { a.on(domain.RoomDeleted, h) }

func (a *Adapter) OnRemoteDelivery(h RemoteDeliveryHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remote = append(a.remote, h)
}

func (a *Adapter) on(kind domain.RoomEventKind, h RoomEventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[kind] = append(a.handlers[kind], h)
}

// Start subscribes to the shared log. Without it the node cannot take part
// in cross-node delivery, so callers treat an error as fatal.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.log.Subscribe(ctx, a.consume); err != nil {
		return fmt.Errorf("subscribe to shared log: %w", err)
	}
	a.logger.Infow("adapter subscribed to shared log")
	return nil
}

// Join attaches a local socket to its room and announces the transition.
func (a *Adapter) Join(ctx context.Context, cl *ws.Client) {
	created, added := a.rooms.Add(cl)
	if created {
		a.transition(ctx, domain.RoomEvent{Kind: domain.RoomCreated, RoomID: cl.RoomID})
	}
	if added {
		a.transition(ctx, domain.RoomEvent{Kind: domain.RoomJoined, RoomID: cl.RoomID, ConnectionID: cl.ID})
	}
}

// Leave detaches a local socket and announces the transition.
func (a *Adapter) Leave(ctx context.Context, cl *ws.Client) {
	removed, deleted := a.rooms.Remove(cl)
	if removed {
		a.transition(ctx, domain.RoomEvent{Kind: domain.RoomLeft, RoomID: cl.RoomID, ConnectionID: cl.ID})
	}
	if deleted {
		a.transition(ctx, domain.RoomEvent{Kind: domain.RoomDeleted, RoomID: cl.RoomID})
	}
}

// Publish appends the event to the shared log and delivers it to local members
// of roomID. Other nodes deliver it to theirs when they consume the record.
// When the append fails nothing is delivered anywhere and the error wraps
// domain.ErrPublishFailed.
func (a *Adapter) Publish(ctx context.Context, roomID, event string, payload []byte) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "adapter.Publish")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", roomID), attribute.String("event", event))

	rec := eventlog.Record{
		Node:    a.node,
		Room:    roomID,
		Kind:    eventlog.KindMessage,
		Event:   event,
		Payload: payload,
	}
	if err := a.log.Append(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		a.logger.Warnw("publish dropped", string(logging.RoomID), roomID, string(logging.EventName), event, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrPublishFailed, err)
	}

	delivered := a.rooms.Broadcast(roomID, ws.NewSerialized(event, payload))
	span.SetAttributes(attribute.Int("delivered.local", delivered))
	return nil
}

func (a *Adapter) transition(ctx context.Context, ev domain.RoomEvent) {
	ev.NodeID = a.node
	a.dispatch(ev)

	rec := eventlog.Record{
		Node:       a.node,
		Room:       ev.RoomID,
		Kind:       eventlog.KindLifecycle,
		Event:      string(ev.Kind),
		Connection: ev.ConnectionID,
	}
	// Lifecycle mirroring is best effort; delivery never depends on it.
	if err := a.log.Append(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Warnw("lifecycle event not mirrored", string(logging.RoomID), ev.RoomID, "kind", ev.Kind, "error", err)
	}
}

func (a *Adapter) dispatch(ev domain.RoomEvent) {
	a.mu.RLock()
	handlers := append([]RoomEventHandler(nil), a.handlers[ev.Kind]...)
	a.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (a *Adapter) consume(ctx context.Context, rec eventlog.Record) error {
	if rec.Node == a.node {
		return nil
	}

	switch rec.Kind {
	case eventlog.KindMessage:
		delivered := a.rooms.Broadcast(rec.Room, ws.NewSerialized(rec.Event, rec.Payload))

		a.mu.RLock()
		handlers := append([]RemoteDeliveryHandler(nil), a.remote...)
		a.mu.RUnlock()
		for _, h := range handlers {
			h(rec.Room, delivered)
		}
	case eventlog.KindLifecycle:
		kind := domain.RoomEventKind(rec.Event)
		if !kind.Valid() {
			return fmt.Errorf("unknown lifecycle event %q", rec.Event)
		}
		a.dispatch(domain.RoomEvent{
			Kind:         kind,
			RoomID:       rec.Room,
			ConnectionID: rec.Connection,
			NodeID:       rec.Node,
			Remote:       true,
		})
	}
	return nil
}
