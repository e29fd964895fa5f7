// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package keystream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultLength is the number of keystream bytes derived per seed.
const DefaultLength = 131072

var (
	// ErrUnavailable means no keystream could be derived. Callers must not
	// treat their buffer as decrypted.
	ErrUnavailable = errors.New("keystream unavailable")

	// ErrInvalidSeed is returned for seeds that are not unsigned decimal integers.
	ErrInvalidSeed = errors.New("invalid keystream seed")
)

// Cipher derives and caches keystreams by seed.
// The cache lives for the process lifetime; entries are never evicted.
type Cipher struct {
	gen    Generator
	length int
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
	group singleflight.Group
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithGenerator replaces the ISAAC-64 generator.
func WithGenerator(g Generator) Option {
	return func(c *Cipher) { c.gen = g }
}

// WithLength overrides DefaultLength.
func WithLength(n int) Option {
	return func(c *Cipher) {
		if n > 0 {
			c.length = n
		}
	}
}

// NewCipher returns a Cipher using ISAAC-64 unless overridden.
func NewCipher(opts ...Option) *Cipher {
	c := &Cipher{
		gen:    Isaac64Generator{},
		length: DefaultLength,
		logger: xglog.WithComponent("keystream"),
		cache:  make(map[string][]byte),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ParseSeed parses the decimal seed carried in a decode key.
func ParseSeed(seed string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(seed), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	return v, nil
}

// Derive returns the keystream for seed, generating it at most once.
// Concurrent callers for the same seed share a single generation.
// The returned slice is shared with the cache and must not be modified.
func (c *Cipher) Derive(ctx context.Context, seed string) ([]byte, error) {
	if ks, ok := c.cached(seed); ok {
		derivationsTotal.WithLabelValues("cached").Inc()
		return ks, nil
	}
	num, err := ParseSeed(seed)
	if err != nil {
		derivationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	ch := c.group.DoChan(seed, func() (any, error) {
		if ks, ok := c.cached(seed); ok {
			return ks, nil
		}
		start := time.Now()
		ks, err := c.gen.Generate(num, c.length)
		generateDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		if len(ks) == 0 {
			return nil, errors.New("generator returned no bytes")
		}
		c.mu.Lock()
		c.cache[seed] = ks
		cacheEntries.Set(float64(len(c.cache)))
		c.mu.Unlock()

		c.logger.Debug().
			Str("event", "keystream.derived").
			Str(xglog.FieldSeed, seed).
			Int("bytes", len(ks)).
			Dur("took", time.Since(start)).
			Msg("keystream derived")
		return ks, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			derivationsTotal.WithLabelValues("error").Inc()
			c.logger.Warn().
				Err(res.Err).
				Str("event", "keystream.derive_failed").
				Str(xglog.FieldSeed, seed).
				Msg("keystream derivation failed")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, res.Err)
		}
		if res.Shared {
			derivationsTotal.WithLabelValues("shared").Inc()
		} else {
			derivationsTotal.WithLabelValues("generated").Inc()
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cipher) cached(seed string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ks, ok := c.cache[seed]
	return ks, ok
}

// Len reports how many seeds are cached.
func (c *Cipher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Apply XORs buf in place with ks starting at offset 0.
func Apply(buf, ks []byte) {
	ApplyAt(buf, 0, ks)
}

// ApplyAt XORs buf in place, treating buf[0] as absolute stream offset off.
// Bytes whose absolute offset is at or beyond len(ks) are left unchanged;
// the keystream never wraps.
func ApplyAt(buf []byte, off int64, ks []byte) {
	if off < 0 || off >= int64(len(ks)) {
		return
	}
	rest := ks[off:]
	n := len(buf)
	if len(rest) < n {
		n = len(rest)
	}
	for i := 0; i < n; i++ {
		buf[i] ^= rest[i]
	}
}
