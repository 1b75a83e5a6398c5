// Package gameid generates identifiers for games and action records, and
// the short room codes players type to join a lobby.
package gameid

import (
	"crypto/rand"
	"time"
)

// Base32 alphabet used for encoded ids (Crockford's base32)
const idAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Room codes use a reduced alphabet without 0/O/1/I so codes survive
// being read aloud or scribbled on a napkin.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the number of characters in a room code
const RoomCodeLength = 6

// RandSource allows tests to inject deterministic randomness
type RandSource interface {
	IntN(n int) int
}

// Generator produces ids and room codes with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil RandSource means crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// New creates a new id using the default crypto/rand source
func New() string {
	return NewGenerator(nil).New()
}

// New creates a time-sortable id: a UUIDv7 encoded as a 26-character
// base32 string.
func (g *Generator) New() string {
	return encodeBase32(g.uuidv7())
}

// RoomCode generates a 6-character join code
func (g *Generator) RoomCode() string {
	code := make([]byte, RoomCodeLength)
	if g.randSource != nil {
		for i := range code {
			code[i] = roomCodeAlphabet[g.randSource.IntN(len(roomCodeAlphabet))]
		}
		return string(code)
	}

	raw := make([]byte, RoomCodeLength)
	mustRead(raw)
	for i := range code {
		code[i] = roomCodeAlphabet[int(raw[i])%len(roomCodeAlphabet)]
	}
	return string(code)
}

// uuidv7 creates a 128-bit UUIDv7: 48-bit millisecond timestamp, version
// and variant bits, and random tail.
func (g *Generator) uuidv7() [16]byte {
	var uuid [16]byte

	now := time.Now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.IntN(256))
		}
	} else {
		mustRead(uuid[6:])
	}

	// Version 7, variant 10
	uuid[6] = (uuid[6] & 0x0f) | 0x70
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return uuid
}

// encodeBase32 encodes 16 bytes as 26 base32 characters. Two zero bits
// of left padding bring 128 bits to an even 130, so the first character
// never exceeds '7' and ids stay byte-comparable in timestamp order.
func encodeBase32(data [16]byte) string {
	var out [26]byte

	// Treat the padded 130 bits as a big-endian integer and peel off 5
	// bits at a time from the most significant end.
	bits := uint(2)
	var acc uint64
	pos := 0
	for i := 0; i < 16; i++ {
		acc = acc<<8 | uint64(data[i])
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = idAlphabet[(acc>>bits)&0x1f]
			pos++
		}
	}

	return string(out[:])
}

func mustRead(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
}
