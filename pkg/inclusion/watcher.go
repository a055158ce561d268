package inclusion

import (
	"context"
	"sync"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// WatchResult is a proof produced for a watched transaction once it was mined.
type WatchResult struct {
	TxID        merkle.Hash
	BlockHash   merkle.Hash
	BlockHeight int64
	Proof       *merkle.MerkleProof
}

// Watcher proves a fixed set of transactions as the blocks containing them arrive.
// Each transaction is proven once, in the first block it is seen in.
type Watcher struct {
	service *Service
	pending map[merkle.Hash]struct{}
	results []*WatchResult
	done    chan struct{}
	mu      sync.Mutex
}

// NewWatcher watches txids (internal byte order). Duplicates are collapsed.
func NewWatcher(service *Service, txids []merkle.Hash) *Watcher {
	w := &Watcher{
		service: service,
		pending: make(map[merkle.Hash]struct{}, len(txids)),
		done:    make(chan struct{}),
	}
	for _, txid := range txids {
		w.pending[txid] = struct{}{}
	}
	if len(w.pending) == 0 {
		close(w.done)
	}
	return w
}

// HandleBlock lets the watcher be driven by a chain poller directly.
func (w *Watcher) HandleBlock(ctx context.Context, block *bitcoin.Block) error {
	_, err := w.ProveBlock(ctx, block)
	return err
}

// ProveBlock proves every still-pending transaction found in block and returns the new results.
// The block's transactions must match its header merkle root.
func (w *Watcher) ProveBlock(ctx context.Context, block *bitcoin.Block) ([]*WatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil, nil
	}

	if err := block.VerifyMerkleRoot(w.service.engine); err != nil {
		w.service.logger.Sugar().Warnw("Skipping block with mismatched merkle root",
			"height", block.Height,
			"error", err,
		)
		return nil, err
	}

	var found []*WatchResult
	for index, txid := range block.TxIDs {
		if _, ok := w.pending[txid]; !ok {
			continue
		}

		mp, err := w.service.proveBlockIndex(ctx, block, index)
		if err != nil {
			return found, err
		}
		delete(w.pending, txid)

		result := &WatchResult{
			TxID:        txid,
			BlockHash:   block.Hash(),
			BlockHeight: block.Height,
			Proof:       mp,
		}
		w.results = append(w.results, result)
		found = append(found, result)
	}

	if len(found) > 0 && len(w.pending) == 0 {
		w.service.logger.Sugar().Infow("All watched transactions proven", "proofs", len(w.results))
		close(w.done)
	}
	return found, nil
}

// Pending returns the watched transactions not yet seen in a block.
func (w *Watcher) Pending() []merkle.Hash {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := make([]merkle.Hash, 0, len(w.pending))
	for txid := range w.pending {
		pending = append(pending, txid)
	}
	return pending
}

// Results returns every proof produced so far, in the order they were produced.
func (w *Watcher) Results() []*WatchResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*WatchResult(nil), w.results...)
}

// Done is closed once every watched transaction has been proven.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
