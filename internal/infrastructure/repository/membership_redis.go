package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/interchange/internal/domain"
	"github.com/redis/go-redis/v9"
)

// forgetScript deletes the hash field only while it still names the given room,
// so a disconnect never clobbers a newer join from another socket.
var forgetScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

type redisMembershipStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisMembershipStore keeps every user's room in one Redis hash, shared by all nodes.
func NewRedisMembershipStore(client redis.UniversalClient, key string) domain.MembershipStore {
	if key == "" {
		key = "interchange:membership"
	}

	return &redisMembershipStore{
		client: client,
		key:    key,
	}
}

func (s *redisMembershipStore) RecordJoin(ctx context.Context, userID, roomID string) error {
	if err := s.client.HSet(ctx, s.key, userID, roomID).Err(); err != nil {
		return fmt.Errorf("record join for %s: %w", userID, err)
	}
	return nil
}

func (s *redisMembershipStore) CurrentRoom(ctx context.Context, userID string) (string, bool, error) {
	roomID, err := s.client.HGet(ctx, s.key, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup room for %s: %w", userID, err)
	}
	return roomID, true, nil
}

func (s *redisMembershipStore) Forget(ctx context.Context, userID, roomID string) error {
	if err := forgetScript.Run(ctx, s.client, []string{s.key}, userID, roomID).Err(); err != nil {
		return fmt.Errorf("forget %s: %w", userID, err)
	}
	return nil
}
