// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package keystream

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGenerator struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (g *countingGenerator) Generate(seed uint64, n int) ([]byte, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return nil, g.err
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(seed) + byte(i)
	}
	return out, nil
}

func TestApply_PrefixOnly(t *testing.T) {
	buf := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	ks := []byte{0xff, 0x0f, 0xf0, 0x01}

	Apply(buf, ks)

	assert.Equal(t, []byte{0xff, 0x0e, 0xf2, 0x02, 4, 5, 6, 7, 8, 9}, buf)
}

func TestApply_SelfInverse(t *testing.T) {
	orig := []byte("the quick brown fox jumps over the lazy dog")
	ks := []byte("0123456789")
	buf := bytes.Clone(orig)

	Apply(buf, ks)
	assert.NotEqual(t, orig[:len(ks)], buf[:len(ks)])
	assert.Equal(t, orig[len(ks):], buf[len(ks):])

	Apply(buf, ks)
	assert.Equal(t, orig, buf)
}

func TestApplyAt_AbsoluteOffset(t *testing.T) {
	ks := []byte{1, 2, 3, 4, 5, 6}
	whole := make([]byte, 8)
	Apply(whole, ks)

	// Same result when the buffer arrives in two chunks.
	first, second := make([]byte, 3), make([]byte, 5)
	ApplyAt(first, 0, ks)
	ApplyAt(second, 3, ks)
	assert.Equal(t, whole, append(first, second...))

	past := []byte{9, 9}
	ApplyAt(past, 6, ks)
	assert.Equal(t, []byte{9, 9}, past)
}

func TestDerive_CachesResult(t *testing.T) {
	gen := &countingGenerator{}
	c := NewCipher(WithGenerator(gen), WithLength(16))

	a, err := c.Derive(context.Background(), "42")
	require.NoError(t, err)
	b, err := c.Derive(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestDerive_ConcurrentSingleGeneration(t *testing.T) {
	gen := &countingGenerator{delay: 50 * time.Millisecond}
	c := NewCipher(WithGenerator(gen), WithLength(32))

	const callers = 8
	results := make([][]byte, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ks, err := c.Derive(context.Background(), "7")
			assert.NoError(t, err)
			results[i] = ks
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestDerive_InvalidSeed(t *testing.T) {
	gen := &countingGenerator{}
	c := NewCipher(WithGenerator(gen))

	_, err := c.Derive(context.Background(), "abc")
	require.ErrorIs(t, err, ErrInvalidSeed)
	assert.Zero(t, gen.calls.Load())
}

func TestDerive_GeneratorFailureIsUnavailable(t *testing.T) {
	gen := &countingGenerator{err: errors.New("boom")}
	c := NewCipher(WithGenerator(gen))

	_, err := c.Derive(context.Background(), "1")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, c.Len(), "failures are not cached")
}

func TestDerive_ContextCancelled(t *testing.T) {
	gen := &countingGenerator{delay: 200 * time.Millisecond}
	c := NewCipher(WithGenerator(gen))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Derive(ctx, "5")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsaac64_Deterministic(t *testing.T) {
	g := Isaac64Generator{}
	a, err := g.Generate(123456789, DefaultLength)
	require.NoError(t, err)
	b, err := g.Generate(123456789, DefaultLength)
	require.NoError(t, err)
	c, err := g.Generate(987654321, DefaultLength)
	require.NoError(t, err)

	assert.Len(t, a, DefaultLength)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestIsaac64_Lengths(t *testing.T) {
	g := Isaac64Generator{}
	_, err := g.Generate(1, 0)
	require.Error(t, err)

	short, err := g.Generate(1, 5)
	require.NoError(t, err)
	assert.Len(t, short, 5)
}
