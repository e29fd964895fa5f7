// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package keystream

import (
	"encoding/binary"
	"fmt"
)

const (
	isaacSizeLog = 8
	isaacSize    = 1 << isaacSizeLog
	isaacGolden  = 0x9e3779b97f4a7c13
)

// Generator produces the raw keystream for a numeric seed.
type Generator interface {
	Generate(seed uint64, n int) ([]byte, error)
}

// Isaac64Generator is the ISAAC-64 generator the host decoder uses.
// The seed occupies the first word of the initial result block; the stream is
// written little-endian word by word and then reversed as a whole.
type Isaac64Generator struct{}

// Generate returns n keystream bytes for seed.
func (Isaac64Generator) Generate(seed uint64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("keystream length must be positive: %d", n)
	}
	var st isaac64
	st.rsl[0] = seed
	st.init()

	words := (n + 7) / 8
	buf := make([]byte, words*8)
	for i := 0; i < words; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], st.next())
	}
	buf = buf[:n]
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf, nil
}

type isaac64 struct {
	rsl     [isaacSize]uint64
	mem     [isaacSize]uint64
	a, b, c uint64
	cnt     int
}

func (s *isaac64) next() uint64 {
	if s.cnt == 0 {
		s.generate()
		s.cnt = isaacSize
	}
	s.cnt--
	return s.rsl[s.cnt]
}

func (s *isaac64) ind(x uint64) uint64 {
	return s.mem[(x>>3)&(isaacSize-1)]
}

func (s *isaac64) step(mix uint64, i, i2 int, r *int) {
	x := s.mem[i]
	s.a = mix + s.mem[i2]
	y := s.ind(x) + s.a + s.b
	s.mem[i] = y
	s.b = s.ind(y>>isaacSizeLog) + x
	s.rsl[*r] = s.b
	*r++
}

func (s *isaac64) generate() {
	s.c++
	s.b += s.c
	half := isaacSize / 2
	r := 0
	for i := 0; i < isaacSize; i += 4 {
		i2 := (i + half) % isaacSize
		s.step(^(s.a ^ (s.a << 21)), i, i2, &r)
		s.step(s.a^(s.a>>5), i+1, i2+1, &r)
		s.step(s.a^(s.a<<12), i+2, i2+2, &r)
		s.step(s.a^(s.a>>33), i+3, i2+3, &r)
	}
}

func isaacMix(v *[8]uint64) {
	v[0] -= v[4]
	v[5] ^= v[7] >> 9
	v[7] += v[0]
	v[1] -= v[5]
	v[6] ^= v[0] << 9
	v[0] += v[1]
	v[2] -= v[6]
	v[7] ^= v[1] >> 23
	v[1] += v[2]
	v[3] -= v[7]
	v[0] ^= v[2] << 15
	v[2] += v[3]
	v[4] -= v[0]
	v[1] ^= v[3] >> 14
	v[3] += v[4]
	v[5] -= v[1]
	v[2] ^= v[4] << 20
	v[4] += v[5]
	v[6] -= v[2]
	v[3] ^= v[5] >> 17
	v[5] += v[6]
	v[7] -= v[3]
	v[4] ^= v[6] << 14
	v[6] += v[7]
}

func (s *isaac64) init() {
	var v [8]uint64
	for i := range v {
		v[i] = isaacGolden
	}
	for i := 0; i < 4; i++ {
		isaacMix(&v)
	}
	for pass := 0; pass < 2; pass++ {
		src := &s.rsl
		if pass == 1 {
			src = &s.mem
		}
		for i := 0; i < isaacSize; i += 8 {
			for j := 0; j < 8; j++ {
				v[j] += src[i+j]
			}
			isaacMix(&v)
			copy(s.mem[i:i+8], v[:])
		}
	}
	s.a, s.b, s.c = 0, 0, 0
	s.generate()
	s.cnt = isaacSize
}
