package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"StreamCursor/cursor"
	"StreamCursor/tools/errs"
)

// Config for dialing the checkpoint backend.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Dial builds and pings a redis client. The caller owns the client and
// injects it into NewStore; there is no package-level singleton.
func Dial(c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.ErrTransport.WrapMsg("redis ping failed", "addr", c.Addr, "cause", err)
	}
	return rdb, nil
}

// Store persists the committed ledger per source uid so a restarted
// source resumes from its last commit instead of the stream head.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) (*Store, error) {
	if client == nil {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("nil redis client")
	}
	return &Store{client: client}, nil
}

func key(uid string) string { return "cursor:ledger:" + uid }

func (s *Store) Save(ctx context.Context, uid string, ledger cursor.OffsetLedger) error {
	if ledger.IsCeiling() {
		return errs.ErrInvalidConfiguration.WrapMsg("refusing to persist a ceiling snapshot")
	}
	buf, err := json.Marshal(ledger)
	if err != nil {
		return errs.Wrap(err)
	}
	if err := s.client.Set(ctx, key(uid), buf, 0).Err(); err != nil {
		return errs.ErrTransport.WrapMsg("checkpoint save failed", "uid", uid, "cause", err)
	}
	return nil
}

// Load returns nil without error when no checkpoint exists yet.
func (s *Store) Load(ctx context.Context, uid string) (*cursor.OffsetLedger, error) {
	buf, err := s.client.Get(ctx, key(uid)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg("checkpoint load failed", "uid", uid, "cause", err)
	}
	var ledger cursor.OffsetLedger
	if err := json.Unmarshal(buf, &ledger); err != nil {
		return nil, errs.ErrInvalidConfiguration.WrapMsg("corrupt checkpoint", "uid", uid, "cause", err)
	}
	return &ledger, nil
}

func (s *Store) Delete(ctx context.Context, uid string) error {
	if err := s.client.Del(ctx, key(uid)).Err(); err != nil {
		return errs.ErrTransport.WrapMsg("checkpoint delete failed", "uid", uid, "cause", err)
	}
	return nil
}
