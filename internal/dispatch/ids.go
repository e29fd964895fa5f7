// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dispatch

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var errBadIdentifier = errors.New("invalid encoded identifier")

// DecodeIdentifier turns a base64 oid/nid query value into its decimal form.
// The payload is either the decimal digits themselves or an 8-byte big-endian integer.
func DecodeIdentifier(encoded string) (string, error) {
	s := strings.TrimSpace(encoded)
	if s == "" {
		return "", fmt.Errorf("%w: empty", errBadIdentifier)
	}
	raw, err := decodeBase64Loose(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", errBadIdentifier, encoded)
	}
	if len(raw) > 0 && allDigits(raw) {
		return string(raw), nil
	}
	if len(raw) == 8 {
		return strconv.FormatUint(binary.BigEndian.Uint64(raw), 10), nil
	}
	return "", fmt.Errorf("%w: %d decoded bytes", errBadIdentifier, len(raw))
}

func decodeBase64Loose(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(trimmed); err == nil {
			return b, nil
		}
	}
	return nil, errBadIdentifier
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IdentifiersFromURL extracts object and nonce ids from a share URL's oid and nid parameters.
// The URL may itself be percent-encoded.
func IdentifiersFromURL(raw string) (objectID, nonceID string, err error) {
	if unescaped, uerr := url.PathUnescape(raw); uerr == nil {
		raw = unescaped
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if objectID, err = DecodeIdentifier(q.Get("oid")); err != nil {
		return "", "", fmt.Errorf("oid: %w", err)
	}
	if nonceID, err = DecodeIdentifier(q.Get("nid")); err != nil {
		return "", "", fmt.Errorf("nid: %w", err)
	}
	return objectID, nonceID, nil
}
