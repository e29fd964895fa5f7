// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package keystream

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	xglog "github.com/ManuGH/wxbridge/internal/log"
)

// ErrNoKeyMaterial is returned when neither a seed nor a prefix is supplied.
var ErrNoKeyMaterial = errors.New("missing decryption seed or prefix")

// FileKey selects the keystream used by DecryptFile. Seed wins over Prefix.
type FileKey struct {
	// Seed is the decimal decode key of the media item.
	Seed string
	// Prefix is a base64 keystream supplied directly, truncated to PrefixLen when set.
	Prefix    string
	PrefixLen int
}

// DecryptFile decrypts the encrypted head of a downloaded file in place and
// returns the number of bytes transformed.
func (c *Cipher) DecryptFile(ctx context.Context, path string, key FileKey) (int, error) {
	ks, err := c.fileKeystream(ctx, key)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, len(ks))
	n, err := f.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	Apply(head[:n], ks)
	if _, err := f.WriteAt(head[:n], 0); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}

	c.logger.Info().
		Str("event", "keystream.file_decrypted").
		Str(xglog.FieldPath, path).
		Int("bytes", n).
		Msg("decrypted file header")
	return n, nil
}

func (c *Cipher) fileKeystream(ctx context.Context, key FileKey) ([]byte, error) {
	if key.Seed != "" {
		return c.Derive(ctx, key.Seed)
	}
	if key.Prefix == "" {
		return nil, ErrNoKeyMaterial
	}
	ks, err := base64.StdEncoding.DecodeString(key.Prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: decode prefix: %w", ErrUnavailable, err)
	}
	if key.PrefixLen > 0 && key.PrefixLen < len(ks) {
		ks = ks[:key.PrefixLen]
	}
	return ks, nil
}
