package relay

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// ErrMalformedProof is returned when a merkle proof's byte layout cannot be
// parsed.
var ErrMalformedProof = errors.New("relay: malformed merkle proof")

// MerkleProof is the parsed form of a `gettxoutproof` byte stream: an 80-byte
// header, the total transaction count in the block, the partial-tree hash
// list, and the traversal flag bits.
type MerkleProof struct {
	BlockHeader      Header
	TransactionCount uint32
	Hashes           []Hash
	Flags            []byte
}

// ParseMerkleProof decodes the raw `gettxoutproof` byte layout: 80-byte
// header, little-endian tx count, a varint hash count plus that many
// 32-byte hashes, then a varint flag-byte count plus the flag bytes.
func ParseMerkleProof(raw []byte) (MerkleProof, error) {
	if len(raw) < HeaderSize+4 {
		return MerkleProof{}, ErrMalformedProof
	}
	header, err := ParseHeader(raw[:HeaderSize])
	if err != nil {
		return MerkleProof{}, err
	}
	r := bytes.NewReader(raw[HeaderSize:])
	var txCount uint32
	if err := binary.Read(r, binary.LittleEndian, &txCount); err != nil {
		return MerkleProof{}, ErrMalformedProof
	}
	hashCount, err := readVarInt(r)
	if err != nil {
		return MerkleProof{}, err
	}
	hashes := make([]Hash, 0, hashCount)
	for i := uint64(0); i < hashCount; i++ {
		var h Hash
		if _, err := readFull(r, h[:]); err != nil {
			return MerkleProof{}, ErrMalformedProof
		}
		hashes = append(hashes, h)
	}
	flagCount, err := readVarInt(r)
	if err != nil {
		return MerkleProof{}, err
	}
	flags := make([]byte, flagCount)
	if _, err := readFull(r, flags); err != nil {
		return MerkleProof{}, ErrMalformedProof
	}
	return MerkleProof{
		BlockHeader:      header,
		TransactionCount: txCount,
		Hashes:           hashes,
		Flags:            flags,
	}, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n, err := r.Read(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, ErrMalformedProof
	}
	return n, nil
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, ErrMalformedProof
	}
	switch {
	case b < 0xfd:
		return uint64(b), nil
	case b == 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, ErrMalformedProof
		}
		return uint64(v), nil
	case b == 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, ErrMalformedProof
		}
		return uint64(v), nil
	default:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, ErrMalformedProof
		}
		return v, nil
	}
}

// treeWidth computes the number of nodes at the given height of a partial
// merkle tree covering numTx leaves, per Bitcoin's CPartialMerkleTree.
func treeWidth(numTx uint32, height uint32) uint32 {
	return (numTx + (1 << height) - 1) >> height
}

// merkleTraversal walks a partial merkle tree, extracting matched leaf
// hashes and recomputing the implied root.
type merkleTraversal struct {
	numTx    uint32
	hashes   []Hash
	flags    []byte
	hashUsed int
	bitUsed  int
	matches  []struct {
		pos  uint32
		hash Hash
	}
}

func (t *merkleTraversal) bit() (bool, error) {
	idx := t.bitUsed / 8
	if idx >= len(t.flags) {
		return false, ErrMalformedProof
	}
	bit := (t.flags[idx] >> uint(t.bitUsed%8)) & 1
	t.bitUsed++
	return bit == 1, nil
}

func (t *merkleTraversal) nextHash() (Hash, error) {
	if t.hashUsed >= len(t.hashes) {
		return Hash{}, ErrMalformedProof
	}
	h := t.hashes[t.hashUsed]
	t.hashUsed++
	return h, nil
}

func (t *merkleTraversal) height() uint32 {
	var h uint32
	for treeWidth(t.numTx, h) > 1 {
		h++
	}
	return h
}

func (t *merkleTraversal) recurse(height, pos uint32) (Hash, error) {
	parentOfMatch, err := t.bit()
	if err != nil {
		return Hash{}, err
	}
	if !parentOfMatch {
		return t.nextHash()
	}
	if height == 0 {
		h, err := t.nextHash()
		if err != nil {
			return Hash{}, err
		}
		t.matches = append(t.matches, struct {
			pos  uint32
			hash Hash
		}{pos: pos, hash: h})
		return h, nil
	}
	left, err := t.recurse(height-1, pos*2)
	if err != nil {
		return Hash{}, err
	}
	var right Hash
	if pos*2+1 < treeWidth(t.numTx, height-1) {
		right, err = t.recurse(height-1, pos*2+1)
		if err != nil {
			return Hash{}, err
		}
	} else {
		right = left
	}
	return sha256d(append(append([]byte{}, left[:]...), right[:]...)), nil
}

// Verify recomputes the merkle root implied by the proof and returns the
// extracted matched transaction hash. A proof must match exactly one
// transaction to satisfy the redeem and inclusion-proof use cases in this
// spec.
func (p MerkleProof) Verify() (root Hash, txHash Hash, err error) {
	t := &merkleTraversal{numTx: p.TransactionCount, hashes: p.Hashes, flags: p.Flags}
	top := t.height()
	computed, err := t.recurse(top, 0)
	if err != nil {
		return Hash{}, Hash{}, err
	}
	if len(t.matches) != 1 {
		return Hash{}, Hash{}, ErrMalformedProof
	}
	return computed, t.matches[0].hash, nil
}
