package session

import (
	"context"
	"fmt"

	"github.com/nerrad567/appaccess/internal/infrastructure/config"
)

// Open builds the Store selected by sc. The returned close function releases
// any connection the store holds and is never nil.
func Open(ctx context.Context, sc config.ClientSessionConfig, rc config.RedisConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch sc.Backend {
	case config.SessionBackendMemory:
		return NewMemoryStore(), noop, nil
	case config.SessionBackendFile, "":
		return NewFileStore(sc.Path), noop, nil
	case config.SessionBackendRedis:
		client, err := Dial(ctx, rc.Addr, rc.Password, rc.DB)
		if err != nil {
			return nil, noop, err
		}
		return NewRedisStore(client, sc.Key, 0), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown session backend %q", sc.Backend)
	}
}
