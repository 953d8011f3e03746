// Package relay implements the BTC-Relay SPV header chain: header storage,
// fork tracking, difficulty retargeting, reorg, and transaction-inclusion
// proofs, per spec.md §4.1 and §6.
package relay

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"
)

// Hash is a 32-byte double-SHA256 digest, stored internally-byte-order
// (the same order produced by hashing, not the human "reversed" display
// order).
type Hash [32]byte

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// HeaderSize is the wire size of a Bitcoin block header.
const HeaderSize = 80

var (
	// ErrShortHeader is returned when fewer than HeaderSize bytes are given.
	ErrShortHeader = errors.New("relay: header must be exactly 80 bytes")
)

// Header is a parsed 80-byte Bitcoin block header.
type Header struct {
	Version    uint32
	PrevHash   Hash
	MerkleRoot Hash
	Timestamp  uint64
	Bits       uint32
	Nonce      uint32
	Target     *big.Int // expanded from Bits
	Hash       Hash      // double-SHA256 of the raw header
}

// sha256d computes Bitcoin's double-SHA256.
func sha256d(b []byte) Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second
}

// ParseHeader decodes an 80-byte little-endian Bitcoin header.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) != HeaderSize {
		return Header{}, ErrShortHeader
	}
	var h Header
	h.Version = binary.LittleEndian.Uint32(raw[0:4])
	copy(h.PrevHash[:], reverse(raw[4:36]))
	copy(h.MerkleRoot[:], reverse(raw[36:68]))
	h.Timestamp = uint64(binary.LittleEndian.Uint32(raw[68:72]))
	h.Bits = binary.LittleEndian.Uint32(raw[72:76])
	h.Nonce = binary.LittleEndian.Uint32(raw[76:80])
	h.Target = ExpandCompactTarget(h.Bits)
	h.Hash = sha256d(raw)
	return h, nil
}

// reverse returns a byte-reversed copy, used to convert Bitcoin's
// internal little-endian hash storage into the PrevHash/MerkleRoot fields
// we key maps with directly (we keep everything in hashing byte order and
// never reverse again, so comparisons stay internally consistent).
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// ExpandCompactTarget expands Bitcoin's compact "nBits" difficulty encoding
// into the full 256-bit target value used for hash comparisons.
func ExpandCompactTarget(bits uint32) *big.Int {
	exponent := bits >> 24
	mantissa := big.NewInt(int64(bits & 0x007fffff))
	if bits&0x00800000 != 0 {
		mantissa.Neg(mantissa)
	}
	target := new(big.Int)
	if exponent <= 3 {
		shift := uint(8 * (3 - exponent))
		target.Rsh(mantissa, shift)
	} else {
		shift := uint(8 * (exponent - 3))
		target.Lsh(mantissa, shift)
	}
	return target
}

// HashLessThanTarget compares a header hash (interpreted as a big-endian
// unsigned integer via byte-reversal, matching Bitcoin's convention that the
// hash is displayed/compared reversed) against the target.
func HashLessThanTarget(hash Hash, target *big.Int) bool {
	rev := reverse(hash[:])
	hashInt := new(big.Int).SetBytes(rev)
	return hashInt.Cmp(target) < 0
}

// UnroundedMaxTarget is Bitcoin mainnet's difficulty-1 target (compact form
// 0x1d00ffff expanded), the ceiling applied during retargeting.
var UnroundedMaxTarget = ExpandCompactTarget(0x1d00ffff)
