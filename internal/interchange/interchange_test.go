package interchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/interchange/internal/infrastructure/adapter"
	"github.com/hilthontt/interchange/internal/infrastructure/configs"
	"github.com/hilthontt/interchange/internal/infrastructure/eventlog"
	"github.com/hilthontt/interchange/internal/infrastructure/metrics"
	"github.com/hilthontt/interchange/internal/infrastructure/repository"
	"github.com/hilthontt/interchange/internal/infrastructure/ws"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

type node struct {
	srv     *httptest.Server
	metrics *metrics.Metrics
	logs    *zapobserver.ObservedLogs
}

func testConfig() configs.Config {
	var cfg configs.Config
	cfg.Auth.Token = "token-for-client"
	return cfg
}

// startNode runs one interchange against log, the way main wires it.
func startNode(t *testing.T, log eventlog.Log, nodeID string) *node {
	t.Helper()

	core, logs := zapobserver.New(zapcore.InfoLevel)
	logger := zap.New(core).Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rooms := ws.NewRoomManager()
	m := metrics.New()
	a := adapter.New(log, rooms, logger, adapter.WithNodeID(nodeID))

	ic := New(a, repository.NewMembershipStore(), testConfig(), logger, m)
	ic.SetAdapterEvents()
	require.NoError(t, ic.Start(ctx))

	srv := httptest.NewServer(http.HandlerFunc(ic.Gateway().ServeWS))
	t.Cleanup(func() {
		rooms.DisconnectAll()
		srv.Close()
	})

	return &node{srv: srv, metrics: m, logs: logs}
}

func (n *node) dial(t *testing.T, roomID, userID, token string) (*websocket.Conn, error) {
	t.Helper()

	q := url.Values{"roomId": {roomID}, "userId": {userID}, "token": {token}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(n.srv.URL, "http")+"/ws?"+q.Encode(), nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, err
}

func (n *node) logged(message string) bool {
	return n.logs.FilterMessage(message).Len() > 0
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	data, err := json.Marshal(`{"msg":"` + msg + `"}`)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ws.Frame{Event: ws.EntireMsg, Data: data}))
}

func readMsg(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var f ws.Frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, ws.EntireMsg, f.Event)

	var serialized string
	require.NoError(t, json.Unmarshal(f.Data, &serialized))
	return serialized
}

func TestInterchange_SingleNode(t *testing.T) {
	log := eventlog.NewMemory("single", zap.NewNop().Sugar())
	t.Cleanup(func() { _ = log.Close() })
	n := startNode(t, log, "node-a")

	_, err := n.dial(t, "r1", "mallory", "nope")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(n.metrics.AuthRejected.WithLabelValues("token")))

	alice, err := n.dial(t, "r1", "alice", "token-for-client")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return n.logged("room r1 was created") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(n.metrics.LocalRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(n.metrics.RoomEvents.WithLabelValues("create-room", "local")))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(n.metrics.ActiveConnections) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sendMsg(t, alice, "hi")
	assert.JSONEq(t, `{"msg":"hi"}`, readMsg(t, alice))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(n.metrics.Messages.WithLabelValues(metrics.OutcomePublished)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool { return n.logged("room r1 was deleted") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(n.metrics.LocalRooms))
	assert.Equal(t, 0.0, testutil.ToFloat64(n.metrics.ActiveConnections))
}

func TestInterchange_CrossNodeDelivery(t *testing.T) {
	log := eventlog.NewMemory("cluster", zap.NewNop().Sugar())
	t.Cleanup(func() { _ = log.Close() })
	nodeA := startNode(t, log, "node-a")
	nodeB := startNode(t, log, "node-b")

	bob, err := nodeB.dial(t, "r1", "bob", "token-for-client")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return nodeA.logged("room r1 was created") }, 2*time.Second, 5*time.Millisecond)

	alice, err := nodeA.dial(t, "r1", "alice", "token-for-client")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(nodeA.metrics.RoomEvents.WithLabelValues("join-room", "local")) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sendMsg(t, alice, "hi")
	assert.JSONEq(t, `{"msg":"hi"}`, readMsg(t, alice))
	assert.JSONEq(t, `{"msg":"hi"}`, readMsg(t, bob))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(nodeB.metrics.Messages.WithLabelValues(metrics.OutcomeRemote)) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(nodeA.metrics.RoomEvents.WithLabelValues("create-room", "remote")))
}
