package eventlog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collector struct {
	mu      sync.Mutex
	records []Record
}

func (c *collector) handle(ctx context.Context, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *collector) snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

func messageRecord(room, text string) Record {
	return Record{
		Node:    "node-a",
		Room:    room,
		Kind:    KindMessage,
		Event:   "entireMsg",
		Payload: []byte(fmt.Sprintf(`{"msg":%q}`, text)),
	}
}

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, messageRecord("r1", "hi").Validate())

	rec := messageRecord("", "hi")
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)

	rec = messageRecord("r1", "hi")
	rec.Kind = "gossip"
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRecord)
}

// exerciseLog checks fan-out to every subscriber and FIFO order within a room.
func exerciseLog(t *testing.T, log Log) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second := &collector{}, &collector{}
	require.NoError(t, log.Subscribe(ctx, first.handle))
	require.NoError(t, log.Subscribe(ctx, second.handle))

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, messageRecord("r1", fmt.Sprintf("m%d", i))))
	}

	for _, c := range []*collector{first, second} {
		require.Eventually(t, func() bool { return len(c.snapshot()) == 5 }, 3*time.Second, 10*time.Millisecond)

		for i, rec := range c.snapshot() {
			assert.NotEmpty(t, rec.ID)
			assert.Equal(t, "node-a", rec.Node)
			assert.Equal(t, "r1", rec.Room)
			assert.Equal(t, KindMessage, rec.Kind)
			assert.JSONEq(t, fmt.Sprintf(`{"msg":"m%d"}`, i), string(rec.Payload))
		}
	}

	assert.NoError(t, log.Ping(ctx))
	assert.ErrorIs(t, log.Append(ctx, Record{}), ErrInvalidRecord)
}

func TestMemoryLog(t *testing.T) {
	log := NewMemory("test", zap.NewNop().Sugar())
	defer log.Close()

	exerciseLog(t, log)
}

func TestRedisStreamLog(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	stream := fmt.Sprintf("interchange:test:%d", time.Now().UnixNano())
	defer client.Del(context.Background(), stream)

	// Entries appended before Subscribe are not replayed.
	log := NewRedisStream(client, RedisStreamOptions{Stream: stream, BlockTimeout: 100 * time.Millisecond}, zap.NewNop().Sugar())
	require.NoError(t, log.Append(context.Background(), messageRecord("r1", "before")))
	defer log.Close()

	exerciseLog(t, log)
}

func TestRecordFromValues(t *testing.T) {
	rec, err := recordFromValues("1-0", map[string]any{
		fieldNode:       "node-b",
		fieldRoom:       "r2",
		fieldKind:       "lifecycle",
		fieldEvent:      "join-room",
		fieldConnection: "sock-1",
		fieldPayload:    "",
	})
	require.NoError(t, err)
	assert.Equal(t, "1-0", rec.ID)
	assert.Equal(t, KindLifecycle, rec.Kind)
	assert.Equal(t, "sock-1", rec.Connection)
	assert.Nil(t, rec.Payload)

	_, err = recordFromValues("2-0", map[string]any{fieldRoom: "r2"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
