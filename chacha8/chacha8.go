// Package chacha8 implements the F1 generator's keystream contract: a
// ChaCha8 stream keyed by the plot identifier, consumed as a sequence of
// 32-bit outputs (spec.md §4.3, §6 "ChaCha8: keystream(key, blockIndex,
// nBlocks) -> bytes").
//
// golang.org/x/crypto/chacha20 hard-codes the standard 20-round ChaCha
// core with no exposed knob to reduce the round count, so it cannot
// produce a real ChaCha8 stream; none of the example repos carry a
// reduced-round ChaCha library either. The block function below is a
// direct, from-scratch implementation of Bernstein's ChaCha core run
// for 8 rounds (four double-rounds) instead of the usual 20, following
// the same quarter-round network golang.org/x/crypto/chacha20 itself
// uses internally.
package chacha8

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// blockSize is the number of bytes the ChaCha core produces per counter
// increment, matching golang.org/x/crypto/chacha20's block size.
const blockSize = 64

// rounds is ChaCha8's round count: four double-rounds, each applying
// the column quarter-rounds followed by the diagonal quarter-rounds.
const rounds = 8

// sigma is the fixed "expand 32-byte k" constant ChaCha seeds its state
// with, identical across ChaCha8/12/20.
var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// Generator produces the F1 keystream for one plot identifier. The
// plot identifier fills the entire 256-bit key; the nonce is fixed at
// zero since the plot ID is the pipeline's only source of entropy, and
// the block counter is carried as two state words, giving a 64-bit
// block index space wide enough for spec.md's k up to MaxK.
type Generator struct {
	key [8]uint32
}

// New builds a Generator keyed by plotID. plotID must be exactly 32
// bytes, matching ChaCha's key size.
func New(plotID [32]byte) (*Generator, error) {
	if len(plotID) != 32 {
		return nil, fmt.Errorf("chacha8: plot id must be 32 bytes, got %d", len(plotID))
	}
	var key [8]uint32
	for i := range key {
		key[i] = binary.LittleEndian.Uint32(plotID[i*4 : i*4+4])
	}
	return &Generator{key: key}, nil
}

func quarterRound(a, b, c, d *uint32) {
	*a += *b
	*d ^= *a
	*d = bits.RotateLeft32(*d, 16)
	*c += *d
	*b ^= *c
	*b = bits.RotateLeft32(*b, 12)
	*a += *b
	*d ^= *a
	*d = bits.RotateLeft32(*d, 8)
	*c += *d
	*b ^= *c
	*b = bits.RotateLeft32(*b, 7)
}

// block runs the 8-round ChaCha core for one 64-byte block at the given
// counter, writing its little-endian serialized output into out.
func (g *Generator) block(counter uint64, out *[blockSize]byte) {
	var state [16]uint32
	state[0], state[1], state[2], state[3] = sigma[0], sigma[1], sigma[2], sigma[3]
	copy(state[4:12], g.key[:])
	state[12] = uint32(counter)
	state[13] = uint32(counter >> 32)
	state[14] = 0
	state[15] = 0

	working := state
	for i := 0; i < rounds/2; i++ {
		quarterRound(&working[0], &working[4], &working[8], &working[12])
		quarterRound(&working[1], &working[5], &working[9], &working[13])
		quarterRound(&working[2], &working[6], &working[10], &working[14])
		quarterRound(&working[3], &working[7], &working[11], &working[15])

		quarterRound(&working[0], &working[5], &working[10], &working[15])
		quarterRound(&working[1], &working[6], &working[11], &working[12])
		quarterRound(&working[2], &working[7], &working[8], &working[13])
		quarterRound(&working[3], &working[4], &working[9], &working[14])
	}
	for i := range working {
		working[i] += state[i]
	}
	for i, w := range working {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], w)
	}
}

// Keystream returns nBlocks*blockSize bytes of keystream starting at
// blockIndex (each block is blockSize bytes), matching the §6 contract
// `keystream(key, blockIndex, nBlocks) -> bytes`. Calls may arrive with
// a blockIndex lower than one already consumed; this is O(nBlocks)
// since each block is computed directly from its counter rather than
// by advancing a stateful stream cipher.
func (g *Generator) Keystream(blockIndex uint64, nBlocks int) []byte {
	out := make([]byte, nBlocks*blockSize)
	for i := 0; i < nBlocks; i++ {
		var blk [blockSize]byte
		g.block(blockIndex+uint64(i), &blk)
		copy(out[i*blockSize:(i+1)*blockSize], blk[:])
	}
	return out
}

// F1Block computes y_i for entries [start, start+n), per spec.md §4.3:
// for entry i, y_i = ChaCha8(i) >> (32 - k + kExtraBits), x_i = i. Each
// entry consumes one 32-bit keystream word; four entries share one
// 16-byte quarter of a 64-byte block, so n entries need
// ceil((start*4 mod blockSize + n*4)/blockSize) blocks starting at block
// floor(start*4/blockSize).
func (g *Generator) F1Block(start uint64, n int, k int, extraBits int) []uint32 {
	const wordSize = 4
	byteStart := start * wordSize
	blockIndex := byteStart / blockSize
	byteOffsetInBlock := byteStart - blockIndex*blockSize

	totalBytes := byteOffsetInBlock + uint64(n)*wordSize
	nBlocks := int((totalBytes + blockSize - 1) / blockSize)

	raw := g.Keystream(blockIndex, nBlocks)
	shiftAmount := 32 - k + extraBits
	if shiftAmount < 0 {
		shiftAmount = 0
	}
	shift := uint(shiftAmount)

	ys := make([]uint32, n)
	for i := 0; i < n; i++ {
		off := byteOffsetInBlock + uint64(i)*wordSize
		word := binary.BigEndian.Uint32(raw[off : off+wordSize])
		ys[i] = word >> shift
	}
	return ys
}
