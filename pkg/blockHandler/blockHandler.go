package blockHandler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
)

// DefaultChannelCapacity is the number of blocks buffered between the poller and the listener.
const DefaultChannelCapacity = 100

// ErrChannelFull is returned by HandleBlock when the listener has fallen behind.
var ErrChannelFull = errors.New("block channel is full")

// IBlockHandler receives blocks from a chain poller.
type IBlockHandler interface {
	HandleBlock(ctx context.Context, block *bitcoin.Block) error
}

// BlockHandler decouples the poller from block processing through a buffered channel.
type BlockHandler struct {
	BlockChannel chan *bitcoin.Block
	logger       *zap.Logger
}

var _ IBlockHandler = (*BlockHandler)(nil)

func NewBlockHandler(logger *zap.Logger) *BlockHandler {
	return NewBlockHandlerWithCapacity(DefaultChannelCapacity, logger)
}

func NewBlockHandlerWithCapacity(capacity int, logger *zap.Logger) *BlockHandler {
	if capacity < 1 {
		capacity = 1
	}
	return &BlockHandler{
		BlockChannel: make(chan *bitcoin.Block, capacity),
		logger:       logger,
	}
}

// ListenToChannel calls handleFunc for every block, in arrival order, until ctx is done.
func (h *BlockHandler) ListenToChannel(ctx context.Context, handleFunc func(*bitcoin.Block)) {
	for {
		select {
		case block := <-h.BlockChannel:
			h.logger.Sugar().Debugw("BlockHandler received block", "height", block.Height)
			handleFunc(block)
		case <-ctx.Done():
			h.logger.Sugar().Info("BlockHandler channel listener exiting due to context done")
			return
		}
	}
}

// HandleBlock queues block without blocking. A full channel returns ErrChannelFull so the
// poller can offer the same block again on its next pass.
func (h *BlockHandler) HandleBlock(ctx context.Context, block *bitcoin.Block) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case h.BlockChannel <- block:
		h.logger.Sugar().Debugw("Block sent to channel", "height", block.Height)
		return nil
	default:
		h.logger.Sugar().Warnw("Block channel is full, deferring block", "height", block.Height)
		return ErrChannelFull
	}
}
