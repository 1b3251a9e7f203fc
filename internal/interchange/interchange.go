// Package interchange wires the room adapter, the membership store and the
// socket gateway into one node of the relay.
package interchange

import (
	"context"
	"fmt"

	"github.com/hilthontt/interchange/internal/domain"
	"github.com/hilthontt/interchange/internal/infrastructure/adapter"
	"github.com/hilthontt/interchange/internal/infrastructure/configs"
	"github.com/hilthontt/interchange/internal/infrastructure/logging"
	"github.com/hilthontt/interchange/internal/infrastructure/metrics"
	"github.com/hilthontt/interchange/internal/presentation/handler/chat"
	"go.uber.org/zap"
)

type Interchange struct {
	adapter *adapter.Adapter
	gateway *chat.Gateway
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

func New(a *adapter.Adapter, store domain.MembershipStore, cfg configs.Config, logger *zap.SugaredLogger, m *metrics.Metrics) *Interchange {
	gw := chat.NewGateway(a, store, chat.Options{
		Token:              cfg.Auth.Token,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		ForgetOnDisconnect: cfg.Membership.ForgetOnDisconnect,
		MaxFrameBytes:      cfg.HTTP.MaxFrameBytes,
	}, observer{m}, logger)

	return &Interchange{
		adapter: a,
		gateway: gw,
		metrics: m,
		logger:  logging.With(logger, logging.Adapter, logging.Lifecycle).With(string(logging.NodeID), a.NodeID()),
	}
}

// SetAdapterEvents installs the lifecycle observers. Call it once, before Start.
func (i *Interchange) SetAdapterEvents() {
	i.adapter.OnRoomCreated(func(ev domain.RoomEvent) {
		i.record(ev)
		if !ev.Remote {
			i.metrics.LocalRooms.Inc()
		}
		i.logger.Infow(fmt.Sprintf("room %s was created", ev.RoomID), i.fields(ev)...)
	})
	i.adapter.OnRoomJoined(func(ev domain.RoomEvent) {
		i.record(ev)
		i.logger.Infow(fmt.Sprintf("socketId:%s has joined room %s", ev.ConnectionID, ev.RoomID), i.fields(ev)...)
	})
	i.adapter.OnRoomLeft(func(ev domain.RoomEvent) {
		i.record(ev)
		i.logger.Infow(fmt.Sprintf("socketId:%s has left room %s", ev.ConnectionID, ev.RoomID), i.fields(ev)...)
	})
	i.adapter.OnRoomDeleted(func(ev domain.RoomEvent) {
		i.record(ev)
		if !ev.Remote {
			i.metrics.LocalRooms.Dec()
		}
		i.logger.Infow(fmt.Sprintf("room %s was deleted", ev.RoomID), i.fields(ev)...)
	})
	i.adapter.OnRemoteDelivery(func(roomID string, delivered int) {
		if delivered > 0 {
			i.metrics.Messages.WithLabelValues(metrics.OutcomeRemote).Inc()
		}
	})
}

// Start joins the node to the shared log. An error here is fatal for the process.
func (i *Interchange) Start(ctx context.Context) error {
	if err := i.adapter.Start(ctx); err != nil {
		return fmt.Errorf("start interchange: %w", err)
	}
	i.logger.Infow("interchange started")
	return nil
}

func (i *Interchange) Gateway() *chat.Gateway {
	return i.gateway
}

func (i *Interchange) record(ev domain.RoomEvent) {
	i.metrics.RoomEvents.WithLabelValues(string(ev.Kind), origin(ev)).Inc()
}

func (i *Interchange) fields(ev domain.RoomEvent) []any {
	return logging.Fields(map[logging.ExtraKey]any{
		logging.RoomID:       ev.RoomID,
		logging.ConnectionID: ev.ConnectionID,
		logging.EventName:    string(ev.Kind),
		logging.Origin:       origin(ev),
		logging.OriginNode:   ev.NodeID,
	})
}

func origin(ev domain.RoomEvent) string {
	if ev.Remote {
		return "remote"
	}
	return "local"
}

// observer feeds gateway outcomes into the node's metrics.
type observer struct {
	m *metrics.Metrics
}

func (o observer) Connected()    { o.m.ActiveConnections.Inc() }
func (o observer) Disconnected() { o.m.ActiveConnections.Dec() }

func (o observer) Rejected(reason string) {
	o.m.AuthRejected.WithLabelValues(reason).Inc()
}

func (o observer) Message(outcome string) {
	o.m.Messages.WithLabelValues(outcome).Inc()
}
