// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package kvstore persists small pieces of client state under fixed keys.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/wxbridge/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: closed")

// Store is a string key/value store.
type Store interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open selects the backend named in cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		if err := ensureParent(cfg.Path); err != nil {
			return nil, err
		}
		return NewFileStore(cfg.Path), nil
	case config.StoreSQLite:
		if err := ensureParent(cfg.Path); err != nil {
			return nil, err
		}
		return OpenSQLite(ctx, cfg.Path)
	case config.StoreBadger:
		return OpenBadger(cfg.Path)
	case config.StoreRedis:
		return OpenRedis(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("kvstore: unsupported backend %q", cfg.Backend)
	}
}

func ensureParent(path string) error {
	if path == "" {
		return errors.New("kvstore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("kvstore: create directory: %w", err)
	}
	return nil
}
