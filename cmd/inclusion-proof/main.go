package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/config"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/inclusion"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "inclusion-proof",
		Usage: "Build and verify merkle inclusion proofs",
		Description: `Builds binary merkle trees over 32-byte leaves and produces inclusion proofs for them.

Trees follow the Bitcoin construction: an odd level pairs its last node with itself.
Proofs for Bitcoin transactions can be built straight from a Bitcoin Core node or a block file,
and every proof handed out is kept in the configured proof store.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hasher",
				Usage:   "Pairing hash: sha256d or keccak256, optionally suffixed with -display",
				Value:   merkle.HasherNameDoubleSHA256,
				EnvVars: []string{config.EnvInclusionHasher},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   fmt.Sprintf("Proof store backend: %s", config.GetSupportedStoreTypesString()),
				Value:   config.StoreTypeMemory.String(),
				EnvVars: []string{config.EnvInclusionStore},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Directory for the badger proof store",
				Value:   "./data/proofs",
				EnvVars: []string{config.EnvInclusionDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis proof store",
				Value:   "localhost:6379",
				EnvVars: []string{config.EnvInclusionRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvInclusionRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvInclusionRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every redis key",
				EnvVars: []string{config.EnvInclusionRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   fmt.Sprintf("Bitcoin network, selects the default RPC port: %s", config.GetSupportedNetworksString()),
				Value:   string(config.Network_Mainnet),
				EnvVars: []string{config.EnvInclusionNetwork},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Bitcoin Core RPC endpoint URL (default: local node for --network)",
				EnvVars: []string{config.EnvInclusionRPCURL},
			},
			&cli.StringFlag{
				Name:    "rpc-user",
				Usage:   "Bitcoin Core RPC user",
				EnvVars: []string{config.EnvInclusionRPCUser},
			},
			&cli.StringFlag{
				Name:    "rpc-password",
				Usage:   "Bitcoin Core RPC password",
				EnvVars: []string{config.EnvInclusionRPCPassword},
			},
			&cli.Float64Flag{
				Name:    "rpc-rate-limit",
				Usage:   "Maximum RPC requests per second (0 for unlimited)",
				Value:   10,
				EnvVars: []string{config.EnvInclusionRPCRateLimit},
			},
			&cli.IntFlag{
				Name:    "batch-concurrency",
				Usage:   "Maximum proofs built concurrently when proving several leaves",
				Value:   inclusion.DefaultBatchConcurrency,
				EnvVars: []string{config.EnvInclusionBatchConcurrency},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvInclusionVerbose},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Also write JSON logs to this file, rotated by size",
				EnvVars: []string{config.EnvInclusionLogFile},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "root",
				Usage: "Compute the merkle root of a leaf set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "leaves",
						Usage:    "File with one hex leaf per line, or a JSON array of hex leaves",
						Required: true,
					},
				},
				Action: rootCommand,
			},
			{
				Name:  "prove",
				Usage: "Build inclusion proofs for leaves of a leaf set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "leaves",
						Usage:    "File with one hex leaf per line, or a JSON array of hex leaves",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "leaf",
						Usage: "Leaf to prove (hex); repeat to prove several at once",
					},
					&cli.IntFlag{
						Name:  "index",
						Usage: "Position of the leaf to prove, for leaf sets with duplicates",
						Value: -1,
					},
					&cli.BoolFlag{
						Name:  "pad",
						Usage: fmt.Sprintf("Pad the encoded proof to %d steps", merkle.MaxProofDepth),
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file for the proof document (default: stdout)",
					},
				},
				Action: proveCommand,
			},
			{
				Name:  "prove-tx",
				Usage: "Prove a Bitcoin transaction is included in a block",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "block",
						Usage: "Block height or hash, fetched over RPC",
					},
					&cli.StringFlag{
						Name:  "block-file",
						Usage: "JSON block document to read instead of querying a node",
					},
					&cli.StringFlag{
						Name:     "txid",
						Usage:    "Transaction id as shown by block explorers",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file for the proof document (default: stdout)",
					},
				},
				Action: proveTxCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a proof document, an encoded proof, or a stored proof",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "proof",
						Usage: "Proof document written by prove or prove-tx",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Merkle root (hex)",
					},
					&cli.StringFlag{
						Name:  "leaf",
						Usage: "Leaf (hex)",
					},
					&cli.StringFlag{
						Name:  "encoded",
						Usage: "Flat encoded proof (hex); without it the stored proof for --root/--leaf is used",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "list",
				Usage: "List stored proofs under a root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Merkle root (hex)",
						Required: true,
					},
				},
				Action: listCommand,
			},
			{
				Name:  "watch",
				Usage: "Follow the node's chain and prove transactions as they are mined",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "txid",
						Usage:    "Transaction id as shown by block explorers; repeat to watch several",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "from-height",
						Usage: "First block height to scan (default: the current tip)",
						Value: -1,
					},
					&cli.Int64Flag{
						Name:  "confirmations",
						Usage: "Blocks required on top of a block before it is scanned",
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "Delay between chain tip checks",
						Value: 30 * time.Second,
					},
				},
				Action: watchCommand,
			},
			{
				Name:  "serve",
				Usage: "Serve the proof API over HTTP",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Usage:   "Port to listen on",
						Value:   8080,
						EnvVars: []string{config.EnvInclusionServerPort},
					},
					&cli.BoolFlag{
						Name:  "rpc-source",
						Usage: "Prove transactions from blocks fetched over RPC",
					},
				},
				Action: serveCommand,
			},
			{
				Name:  "header-hash",
				Usage: "Compute a Bitcoin block hash from its 80-byte header",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "header",
						Usage: "Serialized header (hex)",
					},
					&cli.StringFlag{
						Name:  "block-file",
						Usage: "JSON block document to take the header from",
					},
				},
				Action: headerHashCommand,
			},
		},
	}
}

func parseInclusionConfig(c *cli.Context) *config.InclusionConfig {
	return &config.InclusionConfig{
		Hasher: c.String("hasher"),
		Store: config.StoreConfig{
			Type:           config.StoreType(c.String("store")),
			DataPath:       c.String("data-path"),
			RedisAddress:   c.String("redis-address"),
			RedisPassword:  c.String("redis-password"),
			RedisDB:        c.Int("redis-db"),
			RedisKeyPrefix: c.String("redis-key-prefix"),
		},
		RPC: config.RPCConfig{
			Network:           config.Network(c.String("network")),
			URL:               c.String("rpc-url"),
			User:              c.String("rpc-user"),
			Password:          c.String("rpc-password"),
			RequestsPerSecond: c.Float64("rpc-rate-limit"),
		},
		BatchConcurrency: c.Int("batch-concurrency"),
		Debug:            c.Bool("verbose"),
		Verbose:          c.Bool("verbose"),
		LogFile:          c.String("log-file"),
	}
}
