package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// MockChain is an in-memory bitcoin.ChainSource. Blocks are added explicitly, so tests
// decide exactly when the tip moves.
type MockChain struct {
	blocks []*bitcoin.Block
	byHash map[merkle.Hash]*bitcoin.Block
	calls  int
	logger *zap.Logger
	mu     sync.Mutex
}

var _ bitcoin.ChainSource = (*MockChain)(nil)

// NewMockChain creates a chain holding only a genesis block with a single transaction.
func NewMockChain(logger *zap.Logger) *MockChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MockChain{
		byHash: make(map[merkle.Hash]*bitcoin.Block),
		logger: logger,
	}
	m.AddBlock(RandomHashes(1)...)
	return m
}

// AddBlock appends a block containing txids to the tip and returns it.
func (m *MockChain) AddBlock(txids ...merkle.Hash) *bitcoin.Block {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev merkle.Hash
	height := int64(len(m.blocks))
	if height > 0 {
		prev = m.blocks[height-1].Hash()
	}

	block := CreateTestBlock(nil, height, prev, txids)
	m.blocks = append(m.blocks, block)
	m.byHash[block.Hash()] = block

	m.logger.Sugar().Debugf("MockChain added block %d with %d transactions", height, len(txids))
	return block
}

// GetBlockCount implements bitcoin.ChainSource
func (m *MockChain) GetBlockCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(m.blocks)) - 1, nil
}

// GetBlock implements bitcoin.BlockSource. ref is a height or a display-order block hash.
func (m *MockChain) GetBlock(ctx context.Context, ref string) (*bitcoin.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(ref) == 2*merkle.HashLength {
		hash, err := bitcoin.HashFromDisplayHex(ref)
		if err != nil {
			return nil, err
		}
		block, ok := m.byHash[hash]
		if !ok {
			return nil, fmt.Errorf("block %s not found", ref)
		}
		return block, nil
	}

	height, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid block reference %q: %w", ref, err)
	}
	if height < 0 || height >= int64(len(m.blocks)) {
		return nil, fmt.Errorf("block height %d out of range", height)
	}
	return m.blocks[height], nil
}

// Calls returns the number of source calls served so far
func (m *MockChain) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
