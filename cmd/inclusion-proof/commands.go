package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/bitcoin"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/blockHandler"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/chainPoller"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/inclusion"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/logger"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence/storeFactory"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/server"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/types"
)

// env bundles what every command needs. close releases the store and flushes the logger.
type env struct {
	logger  *zap.Logger
	service *inclusion.Service
	rpc     *bitcoin.RPCClient
}

func (e *env) close() {
	if e.rpc != nil {
		e.rpc.Close()
	}
	if err := e.service.Close(); err != nil {
		e.logger.Sugar().Warnw("Failed to close proof store", "error", err)
	}
	_ = e.logger.Sync()
}

// newEnv opens the configured store. With dialRPC and no source, blocks are fetched from the node.
func newEnv(c *cli.Context, source bitcoin.BlockSource, dialRPC bool) (*env, error) {
	cfg := parseInclusionConfig(c)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, LogFile: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	hasher, err := cfg.NewHasher()
	if err != nil {
		return nil, err
	}

	store, err := storeFactory.NewProofStore(&cfg.Store, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open proof store: %w", err)
	}

	e := &env{logger: l}

	if source == nil && dialRPC {
		rpcClient, err := bitcoin.NewRPCClient(c.Context, &bitcoin.RPCConfig{
			URL:               cfg.RPC.URL,
			User:              cfg.RPC.User,
			Password:          cfg.RPC.Password,
			RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		}, l)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		e.rpc = rpcClient
		source = rpcClient
	}

	e.service = inclusion.NewService(&inclusion.ServiceConfig{
		Hasher:           hasher,
		Store:            store,
		Source:           source,
		BatchConcurrency: cfg.BatchConcurrency,
		Logger:           l,
	})

	if cfg.Verbose {
		l.Sugar().Infow("Inclusion proof configuration",
			"hasher", hasher.Name(),
			"store", cfg.Store.Type,
			"network", cfg.RPC.Network,
			"rpc_url", cfg.RPC.URL,
		)
	}
	return e, nil
}

// rootCommand only hashes, so it never opens a store.
func rootCommand(c *cli.Context) error {
	hasher, err := parseInclusionConfig(c).NewHasher()
	if err != nil {
		return err
	}

	leaves, err := bitcoin.LoadLeavesFile(c.String("leaves"))
	if err != nil {
		return err
	}

	root, err := merkle.NewEngine(hasher).ComputeRoot(leaves)
	if err != nil {
		return err
	}

	return writeJSON(c.App.Writer, &types.RootDocument{
		Hasher:    hasher.Name(),
		Root:      root,
		LeafCount: len(leaves),
		Depth:     merkle.Depth(len(leaves)),
	})
}

func proveCommand(c *cli.Context) error {
	e, err := newEnv(c, nil, false)
	if err != nil {
		return err
	}
	defer e.close()

	leaves, err := bitcoin.LoadLeavesFile(c.String("leaves"))
	if err != nil {
		return err
	}

	targets := c.StringSlice("leaf")
	index := c.Int("index")
	if len(targets) == 0 && index < 0 {
		return fmt.Errorf("one of --leaf or --index is required")
	}
	if len(targets) > 0 && index >= 0 {
		return fmt.Errorf("--leaf and --index are mutually exclusive")
	}

	var proofs []*merkle.MerkleProof
	switch {
	case index >= 0:
		mp, err := e.service.ProveLeafAtIndex(c.Context, leaves, index)
		if err != nil {
			return err
		}
		proofs = append(proofs, mp)
	default:
		hashes := make([]merkle.Hash, len(targets))
		for i, target := range targets {
			if hashes[i], err = merkle.HexToHash(target); err != nil {
				return fmt.Errorf("invalid --leaf %q: %w", target, err)
			}
		}
		if proofs, err = e.service.ProveBatch(c.Context, leaves, hashes); err != nil {
			return err
		}
	}

	docs := make([]*types.ProofDocument, len(proofs))
	for i, mp := range proofs {
		if docs[i], err = types.NewProofDocument(e.service.Engine().Hasher().Name(), mp, c.Bool("pad")); err != nil {
			return err
		}
	}

	if len(docs) == 1 {
		return writeOutput(c, docs[0])
	}
	return writeOutput(c, docs)
}

func proveTxCommand(c *cli.Context) error {
	ref := c.String("block")
	var source bitcoin.BlockSource
	if path := c.String("block-file"); path != "" {
		ref = path
		source = bitcoin.FileBlockSource{}
	} else if ref == "" {
		return fmt.Errorf("one of --block or --block-file is required")
	}

	txid, err := bitcoin.HashFromDisplayHex(c.String("txid"))
	if err != nil {
		return fmt.Errorf("invalid --txid: %w", err)
	}

	e, err := newEnv(c, source, true)
	if err != nil {
		return err
	}
	defer e.close()

	mp, block, err := e.service.ProveTransaction(c.Context, ref, txid)
	if err != nil {
		return err
	}

	doc, err := types.NewProofDocument(e.service.Engine().Hasher().Name(), mp, false)
	if err != nil {
		return err
	}
	doc.TxID = bitcoin.DisplayHex(txid)
	doc.BlockHash = bitcoin.DisplayHex(block.Hash())
	doc.BlockHeight = block.Height

	return writeOutput(c, doc)
}

func verifyCommand(c *cli.Context) error {
	e, err := newEnv(c, nil, false)
	if err != nil {
		return err
	}
	defer e.close()

	var result *types.VerifyDocument
	switch {
	case c.String("proof") != "":
		result, err = verifyProofFile(c.String("proof"), e.service.Engine().Hasher())
	case c.String("root") != "" && c.String("leaf") != "":
		result, err = verifyRootLeaf(c, e)
	default:
		return fmt.Errorf("either --proof or --root and --leaf are required")
	}
	if result == nil {
		return err
	}

	var verr *merkle.VerificationError
	if errors.As(err, &verr) {
		result.Computed = &verr.Computed
	} else if err != nil {
		return err
	}

	if writeErr := writeJSON(c.App.Writer, result); writeErr != nil {
		return writeErr
	}
	// Non-nil for an invalid proof, so the process exits non-zero
	return err
}

func verifyProofFile(path string, fallback merkle.Hasher) (*types.VerifyDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof file %s: %w", path, err)
	}

	var doc types.ProofDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse proof file %s: %w", path, err)
	}
	if doc.MerkleProof == nil {
		return nil, fmt.Errorf("%w: %s holds no proof", merkle.ErrMalformedProof, path)
	}

	hasher := fallback
	if doc.Hasher != "" {
		if hasher, err = merkle.HasherByName(doc.Hasher); err != nil {
			return nil, err
		}
	}

	err = doc.MerkleProof.Verify(merkle.NewEngine(hasher))
	return &types.VerifyDocument{
		Valid:  err == nil,
		Hasher: hasher.Name(),
		Root:   doc.Root,
		Leaf:   doc.Leaf,
		Steps:  len(doc.Steps),
		Source: path,
	}, err
}

func verifyRootLeaf(c *cli.Context, e *env) (*types.VerifyDocument, error) {
	root, err := merkle.HexToHash(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("invalid --root: %w", err)
	}
	leaf, err := merkle.HexToHash(c.String("leaf"))
	if err != nil {
		return nil, fmt.Errorf("invalid --leaf: %w", err)
	}

	if encoded := c.String("encoded"); encoded != "" {
		raw, err := hexutil.Decode(withHexPrefix(encoded))
		if err != nil {
			return nil, fmt.Errorf("invalid --encoded: %w", err)
		}
		proof, err := merkle.DecodeProof(raw)
		if err != nil {
			return nil, err
		}

		engine := e.service.Engine()
		err = engine.Verify(root, leaf, proof)
		return &types.VerifyDocument{
			Valid:  err == nil,
			Hasher: engine.Hasher().Name(),
			Root:   root,
			Leaf:   leaf,
			Steps:  len(proof),
			Source: "encoded",
		}, err
	}

	record, err := e.service.VerifyStored(c.Context, root, leaf)
	if record == nil {
		return nil, err
	}
	return &types.VerifyDocument{
		Valid:  err == nil,
		Hasher: record.Hasher,
		Root:   root,
		Leaf:   leaf,
		Steps:  len(record.Steps),
		Source: "store:" + record.ID,
	}, err
}

func listCommand(c *cli.Context) error {
	e, err := newEnv(c, nil, false)
	if err != nil {
		return err
	}
	defer e.close()

	root, err := merkle.HexToHash(c.String("root"))
	if err != nil {
		return fmt.Errorf("invalid --root: %w", err)
	}

	records, err := e.service.Store().ListProofs(root)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, records)
}

type watchOptions struct {
	txids         []merkle.Hash
	fromHeight    int64
	confirmations int64
	pollInterval  time.Duration
}

// watchCommand follows the node's chain until every --txid has been mined and proven.
func watchCommand(c *cli.Context) error {
	opts := watchOptions{
		fromHeight:    c.Int64("from-height"),
		confirmations: c.Int64("confirmations"),
		pollInterval:  c.Duration("poll-interval"),
	}
	for _, raw := range c.StringSlice("txid") {
		txid, err := bitcoin.HashFromDisplayHex(raw)
		if err != nil {
			return fmt.Errorf("invalid --txid %q: %w", raw, err)
		}
		opts.txids = append(opts.txids, txid)
	}
	if len(opts.txids) == 0 {
		return fmt.Errorf("at least one --txid is required")
	}

	e, err := newEnv(c, nil, true)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWatch(ctx, c.App.Writer, e.service, e.rpc, &opts, e.logger)
}

// runWatch writes one compact proof document per line as watched transactions are proven.
func runWatch(
	ctx context.Context,
	w io.Writer,
	service *inclusion.Service,
	source bitcoin.ChainSource,
	opts *watchOptions,
	l *zap.Logger,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bh := blockHandler.NewBlockHandler(l)
	poller, err := chainPoller.NewChainPoller(source, &chainPoller.ChainPollerConfig{
		PollInterval:  opts.pollInterval,
		StartHeight:   opts.fromHeight,
		Confirmations: opts.confirmations,
	}, l, bh)
	if err != nil {
		return err
	}

	watcher := inclusion.NewWatcher(service, opts.txids)
	enc := json.NewEncoder(w)
	hasher := service.Engine().Hasher().Name()

	// Receives nil once the last proof is written, or the first write failure
	finished := make(chan error, 1)
	finish := func(err error) {
		select {
		case finished <- err:
		default:
		}
	}

	go bh.ListenToChannel(ctx, func(block *bitcoin.Block) {
		results, err := watcher.ProveBlock(ctx, block)
		if err != nil {
			l.Sugar().Errorw("Failed to prove watched transactions", "height", block.Height, "error", err)
		}
		for _, r := range results {
			doc, err := types.NewProofDocument(hasher, r.Proof, false)
			if err == nil {
				doc.TxID = bitcoin.DisplayHex(r.TxID)
				doc.BlockHash = bitcoin.DisplayHex(r.BlockHash)
				doc.BlockHeight = r.BlockHeight
				err = enc.Encode(doc)
			}
			if err != nil {
				finish(fmt.Errorf("failed to write proof: %w", err))
				return
			}
		}
		if len(results) > 0 && len(watcher.Pending()) == 0 {
			finish(nil)
		}
	})

	if err := poller.Start(ctx); err != nil {
		return err
	}
	l.Sugar().Infow("Watching for transactions", "count", len(opts.txids))

	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		return fmt.Errorf("stopped with %d transactions unproven: %w", len(watcher.Pending()), ctx.Err())
	}
}

// serveCommand serves the proof API until interrupted. With --rpc-source, /prove/tx fetches blocks from the node.
func serveCommand(c *cli.Context) error {
	port := c.Int("port")
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid --port %d", port)
	}

	e, err := newEnv(c, nil, c.Bool("rpc-source"))
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(e.service, port, e.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	e.logger.Sugar().Info("Shutting down proof server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func headerHashCommand(c *cli.Context) error {
	var header *bitcoin.BlockHeader

	switch {
	case c.String("header") != "":
		raw, err := hexutil.Decode(withHexPrefix(c.String("header")))
		if err != nil {
			return fmt.Errorf("invalid --header: %w", err)
		}
		if header, err = bitcoin.ParseBlockHeader(raw); err != nil {
			return err
		}
	case c.String("block-file") != "":
		block, err := bitcoin.LoadBlockFile(c.String("block-file"))
		if err != nil {
			return err
		}
		header = &block.Header
	default:
		return fmt.Errorf("one of --header or --block-file is required")
	}

	return writeJSON(c.App.Writer, &types.HeaderDocument{
		Hash:       bitcoin.DisplayHex(header.Hash()),
		MerkleRoot: bitcoin.DisplayHex(header.MerkleRoot),
		PrevBlock:  bitcoin.DisplayHex(header.PrevBlockHash),
	})
}

func withHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s
	}
	return "0x" + s
}

func writeOutput(c *cli.Context, v interface{}) error {
	path := c.String("output")
	if path == "" {
		return writeJSON(c.App.Writer, v)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return writeJSON(f, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
