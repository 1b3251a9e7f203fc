package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/interchange/internal/domain"
	"github.com/hilthontt/interchange/internal/infrastructure/json"
	"github.com/hilthontt/interchange/internal/infrastructure/logging"
	"github.com/hilthontt/interchange/internal/infrastructure/metrics"
	"github.com/hilthontt/interchange/internal/infrastructure/ws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tracerName = "github.com/hilthontt/interchange/gateway"

type Options struct {
	Token              string
	AllowedOrigins     []string
	ForgetOnDisconnect bool
	// MaxFrameBytes caps inbound frames; zero keeps ws.DefaultMaxFrameSize.
	MaxFrameBytes int64
}

type Gateway struct {
	adapter  Broadcaster
	store    domain.MembershipStore
	opts     Options
	upgrader *websocket.Upgrader
	observer Observer
	logger   *zap.SugaredLogger
}

func NewGateway(adapter Broadcaster, store domain.MembershipStore, opts Options, observer Observer, logger *zap.SugaredLogger) *Gateway {
	if observer == nil {
		observer = nopObserver{}
	}

	return &Gateway{
		adapter:  adapter,
		store:    store,
		opts:     opts,
		upgrader: ws.NewUpgrader(opts.AllowedOrigins),
		observer: observer,
		logger:   logging.With(logger, logging.Socket, logging.Handshake),
	}
}

// Authorize is the handshake gate. It runs before any room is touched; a
// rejected handshake never becomes a socket.
func (g *Gateway) Authorize(r *http.Request) (Session, error) {
	query := r.URL.Query()
	session := Session{
		RoomID: query.Get("roomId"),
		UserID: query.Get("userId"),
	}
	if session.RoomID == "" || session.UserID == "" {
		return Session{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrMissingIdentity)
	}

	token := query.Get("token")
	if token == "" {
		// The header form requires the Bearer scheme; a bare value is not a credential.
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = bearer
		}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.opts.Token)) != 1 {
		return Session{}, domain.ErrUnauthorized
	}

	return session, nil
}

// ServeWS authorizes the handshake, upgrades it and runs the socket until it disconnects.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	session, err := g.Authorize(r)
	if err != nil {
		reason := "token"
		if errors.Is(err, domain.ErrMissingIdentity) {
			reason = "identity"
		}
		g.observer.Rejected(reason)
		g.logger.Infow("handshake rejected", string(logging.ClientIp), r.RemoteAddr, string(logging.Reason), err.Error())
		json.WriteUnauthorized(w, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warnw("websocket upgrade failed", string(logging.RoomID), session.RoomID, "error", err)
		return
	}

	cl := ws.NewClient(conn, session.RoomID, session.UserID, g.logger)
	cl.SetReadLimit(g.opts.MaxFrameBytes)
	g.serve(context.WithoutCancel(r.Context()), cl)
}

// serve owns one socket from join to disconnect. Its context ends with the
// socket, which abandons any store or log call still in flight.
func (g *Gateway) serve(parent context.Context, cl *ws.Client) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger := g.logger.With(
		string(logging.ConnectionID), cl.ID,
		string(logging.RoomID), cl.RoomID,
		string(logging.UserID), cl.UserID,
	)
	logger.Infow("socket connected")
	g.observer.Connected()

	go cl.WritePump()

	g.adapter.Join(ctx, cl)
	if err := g.store.RecordJoin(ctx, cl.UserID, cl.RoomID); err != nil {
		logger.Errorw("failed to record membership", "error", err)
	}

	reason := cl.ReadPump(func(f ws.Frame) {
		switch f.Event {
		case ws.EntireMsg:
			g.handleEntireMsg(ctx, cl, f.Data, logger)
		default:
			logger.Debugw("ignoring unknown event", string(logging.EventName), f.Event)
		}
	})
	cancel()

	logger.Infow("socket disconnected", string(logging.Reason), disconnectReason(reason))
	g.observer.Disconnected()

	g.adapter.Leave(parent, cl)
	if g.opts.ForgetOnDisconnect {
		if err := g.store.Forget(parent, cl.UserID, cl.RoomID); err != nil {
			logger.Warnw("failed to forget membership", "error", err)
		}
	}
}

func (g *Gateway) handleEntireMsg(ctx context.Context, cl *ws.Client, data []byte, logger *zap.SugaredLogger) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "gateway.entireMsg")
	defer span.End()
	span.SetAttributes(attribute.String("socket.id", cl.ID))

	outcome, err := g.relay(ctx, cl, data)
	g.observer.Message(outcome)
	span.SetAttributes(attribute.String("outcome", outcome))

	switch {
	case err == nil:
	case domain.IsValidationError(err):
		logger.Infow("entireMsg rejected", "error", err)
		code := ws.CodeValidationFailed
		if errors.Is(err, domain.ErrMalformedMessage) {
			code = ws.CodeMalformedMessage
		}
		cl.Emit(ws.NewError(code, err.Error()))
	case errors.Is(err, domain.ErrNoRoom):
		logger.Debugw("dropping message from user without a room")
	default:
		span.RecordError(err)
		logger.Errorw("entireMsg failed", "error", err)
	}
}

// relay runs the entireMsg pipeline and reports the outcome for metrics.
func (g *Gateway) relay(ctx context.Context, cl *ws.Client, data []byte) (string, error) {
	in, err := domain.DecodeInbound(data)
	if err != nil {
		return metrics.OutcomeInvalid, err
	}

	roomID, ok, err := g.store.CurrentRoom(ctx, cl.UserID)
	if err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("resolve room: %w", err)
	}
	if !ok {
		return metrics.OutcomeNoRoom, domain.ErrNoRoom
	}

	payload, err := in.Outbound().Encode()
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	if err := g.adapter.Publish(ctx, roomID, ws.EntireMsg, payload); err != nil {
		return metrics.OutcomeFailed, err
	}
	return metrics.OutcomePublished, nil
}

func disconnectReason(err error) string {
	var closeErr *websocket.CloseError
	switch {
	case err == nil:
		return "server shutdown"
	case errors.Is(err, websocket.ErrReadLimit):
		return "frame too large"
	case errors.As(err, &closeErr):
		return fmt.Sprintf("client close (%d)", closeErr.Code)
	default:
		return "transport error"
	}
}
