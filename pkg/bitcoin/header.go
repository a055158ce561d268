package bitcoin

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// HeaderLength is the size of a serialized block header.
const HeaderLength = 80

// BlockHeader is a Bitcoin block header. Hash fields are in internal byte order.
type BlockHeader struct {
	Version       int32
	PrevBlockHash merkle.Hash
	MerkleRoot    merkle.Hash
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// Serialize returns the 80-byte consensus encoding of the header.
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, HeaderLength)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlockHash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return buf
}

// Hash is the double SHA-256 of the serialized header, in internal byte order.
func (h *BlockHeader) Hash() merkle.Hash {
	first := sha256.Sum256(h.Serialize())
	return merkle.Hash(sha256.Sum256(first[:]))
}

// ParseBlockHeader decodes an 80-byte consensus-encoded header.
func ParseBlockHeader(data []byte) (*BlockHeader, error) {
	if len(data) != HeaderLength {
		return nil, fmt.Errorf("invalid header length: expected %d bytes, got %d", HeaderLength, len(data))
	}

	h := &BlockHeader{
		Version:   int32(binary.LittleEndian.Uint32(data[0:4])),
		Timestamp: binary.LittleEndian.Uint32(data[68:72]),
		Bits:      binary.LittleEndian.Uint32(data[72:76]),
		Nonce:     binary.LittleEndian.Uint32(data[76:80]),
	}
	copy(h.PrevBlockHash[:], data[4:36])
	copy(h.MerkleRoot[:], data[36:68])

	return h, nil
}
