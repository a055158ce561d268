// Package inclusion proves leaf and transaction inclusion and keeps the resulting proofs in a store.
package inclusion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/logger"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/memory"
)

// DefaultBatchConcurrency bounds the number of proofs ProveBatch builds at once.
const DefaultBatchConcurrency = 8

// ErrNoBlockSource is returned by ProveTransaction when the service has no block source.
var ErrNoBlockSource = errors.New("no block source configured")

// ServiceConfig holds service dependencies
type ServiceConfig struct {
	Hasher           merkle.Hasher           // Defaults to merkle.DoubleSHA256
	Store            persistence.IProofStore // Defaults to an in-memory store
	Source           bitcoin.BlockSource     // Optional, required by ProveTransaction
	BatchConcurrency int                     // Defaults to DefaultBatchConcurrency
	Logger           *zap.Logger             // Optional logger, will create default if nil
}

// Service builds proofs with a merkle.Engine and persists every proof it hands out.
type Service struct {
	engine           *merkle.Engine
	store            persistence.IProofStore
	source           bitcoin.BlockSource
	batchConcurrency int
	logger           *zap.Logger
}

// NewService creates a service, filling in defaults for unset dependencies.
func NewService(cfg *ServiceConfig) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}

	serviceLogger := cfg.Logger
	if serviceLogger == nil {
		serviceLogger, _ = logger.NewLogger(&logger.LoggerConfig{Debug: false})
	}

	store := cfg.Store
	if store == nil {
		store = memory.NewMemoryPersistence()
	}

	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	return &Service{
		engine:           merkle.NewEngine(cfg.Hasher),
		store:            store,
		source:           cfg.Source,
		batchConcurrency: concurrency,
		logger:           serviceLogger,
	}
}

// Engine returns the engine proofs are built and verified with.
func (s *Service) Engine() *merkle.Engine {
	return s.engine
}

// HasBlockSource reports whether ProveTransaction can fetch blocks.
func (s *Service) HasBlockSource() bool {
	return s.source != nil
}

// Store returns the underlying proof store.
func (s *Service) Store() persistence.IProofStore {
	return s.store
}

// ProveLeaf proves the first occurrence of target in leaves.
func (s *Service) ProveLeaf(ctx context.Context, leaves []merkle.Hash, target merkle.Hash) (*merkle.MerkleProof, error) {
	if len(leaves) == 0 {
		return nil, merkle.ErrEmptyLeaves
	}
	index, err := merkle.FindLeaf(leaves, target)
	if err != nil {
		return nil, err
	}
	return s.ProveLeafAtIndex(ctx, leaves, index)
}

// ProveLeafAtIndex proves the leaf at index, checks the proof against the computed root and stores it.
func (s *Service) ProveLeafAtIndex(ctx context.Context, leaves []merkle.Hash, index int) (*merkle.MerkleProof, error) {
	mp, err := s.buildChecked(ctx, leaves, index)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveProof(persistence.NewProofRecord(s.engine.Hasher().Name(), mp)); err != nil {
		return nil, fmt.Errorf("failed to persist proof: %w", err)
	}

	s.logger.Sugar().Debugw("Proved leaf",
		"leaf", mp.Leaf.Hex(),
		"root", mp.Root.Hex(),
		"index", mp.LeafIndex,
		"steps", len(mp.Steps),
	)
	return mp, nil
}

func (s *Service) buildChecked(ctx context.Context, leaves []merkle.Hash, index int) (*merkle.MerkleProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mp, err := s.engine.BuildMerkleProof(leaves, index)
	if err != nil {
		return nil, err
	}

	// A proof that does not replay to its own root is a bug, never hand it out
	if err := mp.Verify(s.engine); err != nil {
		s.logger.Sugar().Errorw("Built proof failed self-check", "index", index, "error", err)
		return nil, fmt.Errorf("self-check of built proof failed: %w", err)
	}
	return mp, nil
}

// ProveTransaction fetches the block named by blockRef and proves txid (internal byte order) in it.
func (s *Service) ProveTransaction(ctx context.Context, blockRef string, txid merkle.Hash) (*merkle.MerkleProof, *bitcoin.Block, error) {
	if s.source == nil {
		return nil, nil, ErrNoBlockSource
	}

	block, err := s.source.GetBlock(ctx, blockRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch block %s: %w", blockRef, err)
	}

	mp, err := s.ProveInBlock(ctx, block, txid)
	if err != nil {
		return nil, nil, err
	}
	return mp, block, nil
}

// ProveInBlock checks the block's transactions against its header merkle root, then proves txid.
// The stored record carries the block hash and height.
func (s *Service) ProveInBlock(ctx context.Context, block *bitcoin.Block, txid merkle.Hash) (*merkle.MerkleProof, error) {
	if err := block.VerifyMerkleRoot(s.engine); err != nil {
		s.logger.Sugar().Warnw("Block transactions do not match header",
			"height", block.Height,
			"block_hash", bitcoin.DisplayHex(block.Hash()),
			"error", err,
		)
		return nil, err
	}

	index, err := merkle.FindLeaf(block.TxIDs, txid)
	if err != nil {
		return nil, fmt.Errorf("transaction %s not in block %d: %w", bitcoin.DisplayHex(txid), block.Height, err)
	}

	return s.proveBlockIndex(ctx, block, index)
}

// proveBlockIndex assumes the block's merkle root has already been checked.
func (s *Service) proveBlockIndex(ctx context.Context, block *bitcoin.Block, index int) (*merkle.MerkleProof, error) {
	mp, err := s.buildChecked(ctx, block.TxIDs, index)
	if err != nil {
		return nil, err
	}

	blockHash := block.Hash()
	record := persistence.NewProofRecord(s.engine.Hasher().Name(), mp)
	record.BlockHash = &blockHash
	record.BlockHeight = block.Height

	if err := s.store.SaveProof(record); err != nil {
		return nil, fmt.Errorf("failed to persist proof: %w", err)
	}

	s.logger.Sugar().Infow("Proved transaction",
		"txid", bitcoin.DisplayHex(mp.Leaf),
		"block_hash", bitcoin.DisplayHex(blockHash),
		"height", block.Height,
		"index", index,
		"tx_count", len(block.TxIDs),
	)
	return mp, nil
}

// ProveBatch proves every target against the same leaf set concurrently.
// Results are in target order; the first failure cancels the rest of the batch.
func (s *Service) ProveBatch(ctx context.Context, leaves []merkle.Hash, targets []merkle.Hash) ([]*merkle.MerkleProof, error) {
	proofs := make([]*merkle.MerkleProof, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			mp, err := s.ProveLeaf(gctx, leaves, target)
			if err != nil {
				return fmt.Errorf("target %d (%s): %w", i, target.Hex(), err)
			}
			proofs[i] = mp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("Proved batch", "targets", len(targets), "leaves", len(leaves))
	return proofs, nil
}

// VerifyStored loads the proof stored for (root, leaf) and verifies it with the hasher it was built with.
func (s *Service) VerifyStored(ctx context.Context, root, leaf merkle.Hash) (*persistence.ProofRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.store.LoadProof(root, leaf)
	if err != nil {
		return nil, fmt.Errorf("failed to load proof: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: no proof stored for leaf %s under root %s", merkle.ErrNotFound, leaf.Hex(), root.Hex())
	}

	hasher, err := merkle.HasherByName(record.Hasher)
	if err != nil {
		return nil, fmt.Errorf("stored proof %s: %w", record.ID, err)
	}

	if err := record.MerkleProof().Verify(merkle.NewEngine(hasher)); err != nil {
		return record, err
	}
	return record, nil
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
