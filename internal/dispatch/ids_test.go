// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dispatch

import (
	"encoding/base64"
	"encoding/binary"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIdentifier(t *testing.T) {
	digits := base64.StdEncoding.EncodeToString([]byte("14123456789012345678"))
	got, err := DecodeIdentifier(digits)
	require.NoError(t, err)
	assert.Equal(t, "14123456789012345678", got)

	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], 1234567890123)
	got, err = DecodeIdentifier(base64.RawURLEncoding.EncodeToString(raw[:]))
	require.NoError(t, err)
	assert.Equal(t, "1234567890123", got)

	_, err = DecodeIdentifier("")
	require.Error(t, err)
	_, err = DecodeIdentifier(base64.StdEncoding.EncodeToString([]byte("abc")))
	require.Error(t, err)
	_, err = DecodeIdentifier("%%%")
	require.Error(t, err)
}

func TestIdentifiersFromURL(t *testing.T) {
	oid := base64.StdEncoding.EncodeToString([]byte("111"))
	nid := base64.StdEncoding.EncodeToString([]byte("222"))
	share := "https://channels.weixin.qq.com/web/pages/feed?oid=" + url.QueryEscape(oid) + "&nid=" + url.QueryEscape(nid)

	o, n, err := IdentifiersFromURL(share)
	require.NoError(t, err)
	assert.Equal(t, "111", o)
	assert.Equal(t, "222", n)

	o, n, err = IdentifiersFromURL(url.QueryEscape(share))
	require.NoError(t, err)
	assert.Equal(t, "111", o)
	assert.Equal(t, "222", n)

	_, _, err = IdentifiersFromURL("https://example.com/?nid=" + url.QueryEscape(nid))
	require.Error(t, err)
}
