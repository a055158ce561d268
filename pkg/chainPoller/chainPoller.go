// Package chainPoller follows a Bitcoin node's best chain and hands each new block to block handlers.
package chainPoller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/blockHandler"
)

const DefaultPollInterval = 30 * time.Second

type ChainPollerConfig struct {
	// PollInterval is the delay between tip checks
	PollInterval time.Duration
	// StartHeight is the first block delivered. A negative value starts at the current tip.
	StartHeight int64
	// Confirmations holds delivery back until a block has this many blocks on top of it
	Confirmations int64
}

// ChainPoller delivers blocks strictly in height order. A block is only considered delivered
// once every handler accepted it; otherwise it is offered again on the next poll, so handlers
// may see the same block twice.
type ChainPoller struct {
	source     bitcoin.ChainSource
	handlers   []blockHandler.IBlockHandler
	config     *ChainPollerConfig
	logger     *zap.Logger
	nextHeight int64
	mu         sync.Mutex
}

func NewChainPoller(
	source bitcoin.ChainSource,
	config *ChainPollerConfig,
	logger *zap.Logger,
	handlers ...blockHandler.IBlockHandler,
) (*ChainPoller, error) {
	if source == nil {
		return nil, fmt.Errorf("chain source cannot be nil")
	}
	if len(handlers) == 0 {
		return nil, fmt.Errorf("at least one block handler is required")
	}
	cfg := ChainPollerConfig{StartHeight: -1}
	if config != nil {
		cfg = *config
	}
	config = &cfg
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Confirmations < 0 {
		return nil, fmt.Errorf("confirmations cannot be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChainPoller{
		source:     source,
		handlers:   handlers,
		config:     config,
		logger:     logger,
		nextHeight: config.StartHeight,
	}, nil
}

// Start polls in the background until ctx is done.
func (p *ChainPoller) Start(ctx context.Context) error {
	p.logger.Sugar().Infow("Starting chain poller",
		"start_height", p.config.StartHeight,
		"confirmations", p.config.Confirmations,
		"poll_interval", p.config.PollInterval,
	)

	go func() {
		ticker := time.NewTicker(p.config.PollInterval)
		defer ticker.Stop()

		for {
			if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Sugar().Warnw("Chain poll failed", "error", err)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				p.logger.Sugar().Info("Chain poller exiting due to context done")
				return
			}
		}
	}()
	return nil
}

// Poll delivers every confirmed block above the last delivered one and returns how many were delivered.
func (p *ChainPoller) Poll(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tip, err := p.source.GetBlockCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain tip: %w", err)
	}

	target := tip - p.config.Confirmations
	if p.nextHeight < 0 {
		p.nextHeight = target
		if p.nextHeight < 0 {
			p.nextHeight = 0
		}
	}

	delivered := 0
	for p.nextHeight <= target {
		block, err := p.source.GetBlock(ctx, strconv.FormatInt(p.nextHeight, 10))
		if err != nil {
			return delivered, fmt.Errorf("failed to fetch block %d: %w", p.nextHeight, err)
		}

		for i, handler := range p.handlers {
			if err := handler.HandleBlock(ctx, block); err != nil {
				return delivered, fmt.Errorf("handler %d rejected block %d: %w", i, p.nextHeight, err)
			}
		}

		p.logger.Sugar().Debugw("Delivered block", "height", p.nextHeight, "tip", tip)
		p.nextHeight++
		delivered++
	}
	return delivered, nil
}

// NextHeight returns the height of the next block to be delivered, or -1 before the first poll
// when starting at the tip.
func (p *ChainPoller) NextHeight() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextHeight
}
