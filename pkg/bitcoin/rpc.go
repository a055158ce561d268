package bitcoin

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// RPCConfig holds the connection settings for a Bitcoin Core JSON-RPC endpoint.
type RPCConfig struct {
	// URL is the node endpoint, e.g. http://localhost:8332
	URL string
	// User and Password are sent as HTTP basic auth when User is set
	User     string
	Password string
	// RequestsPerSecond limits outgoing calls; zero disables limiting
	RequestsPerSecond float64
	// Burst is the limiter bucket size; defaults to 1
	Burst int
}

// RPCClient reads blocks from Bitcoin Core (getblockhash / getblock verbosity 1).
type RPCClient struct {
	client  *rpc.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ ChainSource = (*RPCClient)(nil)

// rpcBlock is the getblock verbosity 1 result. Hashes are in display order.
type rpcBlock struct {
	Hash              string   `json:"hash"`
	Height            int64    `json:"height"`
	Version           int32    `json:"version"`
	MerkleRoot        string   `json:"merkleroot"`
	Time              uint32   `json:"time"`
	Nonce             uint32   `json:"nonce"`
	Bits              string   `json:"bits"`
	PreviousBlockHash string   `json:"previousblockhash"`
	Tx                []string `json:"tx"`
}

// NewRPCClient dials the node. HTTP endpoints are not contacted until the first call.
func NewRPCClient(ctx context.Context, cfg *RPCConfig, logger *zap.Logger) (*RPCClient, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rpc url cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []rpc.ClientOption
	if cfg.User != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.User + ":" + cfg.Password))
		opts = append(opts, rpc.WithHTTPAuth(func(h http.Header) error {
			h.Set("Authorization", "Basic "+credentials)
			return nil
		}))
	}

	client, err := rpc.DialOptions(ctx, cfg.URL, opts...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to dial bitcoin rpc at %s", cfg.URL)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &RPCClient{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

func (c *RPCClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.logger.Sugar().Debugw("Bitcoin RPC call", "method", method, "args", args)

	if err := c.client.CallContext(ctx, result, method, args...); err != nil {
		return pkgerrors.Wrapf(err, "bitcoin rpc %s failed", method)
	}
	return nil
}

// GetBlockCount returns the height of the node's best chain tip.
func (c *RPCClient) GetBlockCount(ctx context.Context) (int64, error) {
	var height int64
	if err := c.call(ctx, &height, "getblockcount"); err != nil {
		return 0, err
	}
	return height, nil
}

// GetBlockHash returns the internal-order hash of the block at height.
func (c *RPCClient) GetBlockHash(ctx context.Context, height int64) (merkle.Hash, error) {
	var hash string
	if err := c.call(ctx, &hash, "getblockhash", height); err != nil {
		return merkle.Hash{}, err
	}
	return HashFromDisplayHex(hash)
}

// GetBlockByHash fetches a block and checks that the returned header hashes to the requested hash.
func (c *RPCClient) GetBlockByHash(ctx context.Context, hash merkle.Hash) (*Block, error) {
	var raw rpcBlock
	if err := c.call(ctx, &raw, "getblock", DisplayHex(hash), 1); err != nil {
		return nil, err
	}

	block, err := raw.toBlock()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid getblock response for %s", DisplayHex(hash))
	}

	if computed := block.Hash(); computed != hash {
		return nil, fmt.Errorf("%w: requested %s, header hashes to %s",
			ErrBlockHashMismatch, DisplayHex(hash), DisplayHex(computed))
	}

	c.logger.Sugar().Debugw("Fetched block", "height", block.Height, "hash", DisplayHex(hash), "txs", len(block.TxIDs))
	return block, nil
}

// GetBlock resolves ref as a 64 character block hash or, failing that, a decimal height.
func (c *RPCClient) GetBlock(ctx context.Context, ref string) (*Block, error) {
	ref = strings.TrimSpace(ref)

	if len(ref) == 2*32 {
		hash, err := HashFromDisplayHex(ref)
		if err != nil {
			return nil, err
		}
		return c.GetBlockByHash(ctx, hash)
	}

	height, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("block reference %q is neither a block hash nor a height", ref)
	}
	hash, err := c.GetBlockHash(ctx, height)
	if err != nil {
		return nil, err
	}
	return c.GetBlockByHash(ctx, hash)
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.client.Close()
}

func (r *rpcBlock) toBlock() (*Block, error) {
	bits, err := strconv.ParseUint(r.Bits, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid bits %q: %w", r.Bits, err)
	}

	doc := &BlockDocument{
		Height:        r.Height,
		Version:       r.Version,
		PrevBlockHash: r.PreviousBlockHash,
		MerkleRoot:    r.MerkleRoot,
		Timestamp:     r.Time,
		Bits:          uint32(bits),
		Nonce:         r.Nonce,
		Txns:          r.Tx,
	}
	// The genesis block has no previous block
	if doc.PrevBlockHash == "" {
		doc.PrevBlockHash = strings.Repeat("0", 64)
	}
	return doc.ToBlock()
}
