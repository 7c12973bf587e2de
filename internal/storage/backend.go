package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/VancelleGo/config"
	"github.com/dyike/VancelleGo/consts"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a string-keyed document store. Values are opaque bytes; writes to
// one key never touch another and the last write wins.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open builds the backend selected in the configuration.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StoreBackend {
	case consts.BackendFile, "":
		return NewFileBackend(cfg.DataDir)
	case consts.BackendSQLite:
		return NewSQLiteBackend(cfg.ResolvedSQLitePath())
	case consts.BackendRedis:
		return NewRedisBackend(ctx, cfg.RedisURL)
	case consts.BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
