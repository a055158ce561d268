package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

var (
	// ErrMerkleRootMismatch is returned when the transactions of a block do not hash to its header's root.
	ErrMerkleRootMismatch = errors.New("computed merkle root does not match block header")

	// ErrBlockHashMismatch is returned when a header does not hash to the block hash a source reported.
	ErrBlockHashMismatch = errors.New("block header does not hash to reported block hash")
)

// Block is a header plus its transaction ids, all hashes in internal byte order.
type Block struct {
	Height int64
	Header BlockHeader
	TxIDs  []merkle.Hash
}

// Hash returns the block hash.
func (b *Block) Hash() merkle.Hash {
	return b.Header.Hash()
}

// VerifyMerkleRoot recomputes the transaction merkle root with e and compares it to the header.
// e must hash in internal byte order (plain DoubleSHA256 for Bitcoin).
func (b *Block) VerifyMerkleRoot(e *merkle.Engine) error {
	root, err := e.ComputeRoot(b.TxIDs)
	if err != nil {
		return err
	}
	if root != b.Header.MerkleRoot {
		return fmt.Errorf("%w: computed %s, header has %s",
			ErrMerkleRootMismatch, DisplayHex(root), DisplayHex(b.Header.MerkleRoot))
	}
	return nil
}

// BlockDocument is the JSON form of a block. Hashes are in display order without a 0x prefix.
type BlockDocument struct {
	Height        int64    `json:"height"`
	Version       int32    `json:"version"`
	PrevBlockHash string   `json:"prev_block_hash"`
	MerkleRoot    string   `json:"merkle_root"`
	Timestamp     uint32   `json:"timestamp"`
	Bits          uint32   `json:"bits"`
	Nonce         uint32   `json:"nonce"`
	Txns          []string `json:"txns"`
}

// ToBlock converts the document to internal byte order.
func (d *BlockDocument) ToBlock() (*Block, error) {
	prev, err := HashFromDisplayHex(d.PrevBlockHash)
	if err != nil {
		return nil, fmt.Errorf("invalid prev_block_hash: %w", err)
	}
	root, err := HashFromDisplayHex(d.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid merkle_root: %w", err)
	}
	txids, err := HashesFromDisplayHex(d.Txns)
	if err != nil {
		return nil, fmt.Errorf("invalid txns: %w", err)
	}

	return &Block{
		Height: d.Height,
		Header: BlockHeader{
			Version:       d.Version,
			PrevBlockHash: prev,
			MerkleRoot:    root,
			Timestamp:     d.Timestamp,
			Bits:          d.Bits,
			Nonce:         d.Nonce,
		},
		TxIDs: txids,
	}, nil
}

// NewBlockDocument renders b in display order.
func NewBlockDocument(b *Block) *BlockDocument {
	txns := make([]string, len(b.TxIDs))
	for i, txid := range b.TxIDs {
		txns[i] = DisplayHex(txid)
	}
	return &BlockDocument{
		Height:        b.Height,
		Version:       b.Header.Version,
		PrevBlockHash: DisplayHex(b.Header.PrevBlockHash),
		MerkleRoot:    DisplayHex(b.Header.MerkleRoot),
		Timestamp:     b.Header.Timestamp,
		Bits:          b.Header.Bits,
		Nonce:         b.Header.Nonce,
		Txns:          txns,
	}
}

// LoadBlockFile reads a JSON BlockDocument from path.
func LoadBlockFile(path string) (*Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read block file %s", path)
	}

	var doc BlockDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse block file %s", path)
	}

	block, err := doc.ToBlock()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid block in %s", path)
	}
	return block, nil
}

// LoadLeavesFile reads leaf hashes from path, either a JSON array of hex strings or one hex string per
// line. Blank lines and lines starting with # are skipped. Bytes are taken exactly as written.
func LoadLeavesFile(path string) ([]merkle.Hash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read leaves file %s", path)
	}

	leaves, err := ParseLeaves(data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse leaves file %s", path)
	}
	return leaves, nil
}

// ParseLeaves parses the LoadLeavesFile format.
func ParseLeaves(data []byte) ([]merkle.Hash, error) {
	trimmed := bytes.TrimSpace(data)

	var hexes []string
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &hexes); err != nil {
			return nil, err
		}
	} else {
		for _, line := range strings.Split(string(trimmed), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			hexes = append(hexes, line)
		}
	}

	leaves := make([]merkle.Hash, 0, len(hexes))
	for i, s := range hexes {
		h, err := merkle.HexToHash(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
		leaves = append(leaves, h)
	}
	if len(leaves) == 0 {
		return nil, merkle.ErrEmptyLeaves
	}
	return leaves, nil
}

// BlockSource fetches blocks by a source-specific reference.
type BlockSource interface {
	GetBlock(ctx context.Context, ref string) (*Block, error)
}

// ChainSource is a BlockSource that also reports the chain tip, which is what a poller needs.
type ChainSource interface {
	BlockSource
	GetBlockCount(ctx context.Context) (int64, error)
}

// FileBlockSource treats the reference as a path to a JSON BlockDocument.
type FileBlockSource struct{}

func (FileBlockSource) GetBlock(ctx context.Context, ref string) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadBlockFile(ref)
}
