package callstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// activeTTL bounds how long a stale marker can linger if the ended
// transition never cleans it up; Postgres stays authoritative.
const activeTTL = 2 * time.Hour

// Store mirrors transient call state into Redis so clients can show
// busy/in-call presence without hitting Postgres.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(userID uuid.UUID) string {
	return fmt.Sprintf("call:active:%s", userID)
}

// MarkActive records both parties as occupied by sessionID.
func (s *Store) MarkActive(ctx context.Context, sessionID, partyA, partyB uuid.UUID) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key(partyA), sessionID.String(), activeTTL)
	pipe.Set(ctx, key(partyB), sessionID.String(), activeTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Clear removes both parties' markers once the call has ended.
func (s *Store) Clear(ctx context.Context, partyA, partyB uuid.UUID) error {
	return s.client.Del(ctx, key(partyA), key(partyB)).Err()
}

// ActiveSession returns the session currently occupying the user, or nil.
func (s *Store) ActiveSession(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	val, err := s.client.Get(ctx, key(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
