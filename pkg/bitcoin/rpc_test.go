package bitcoin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newFakeNode serves getblockhash/getblock for block 100000. mutate may alter the getblock result.
func newFakeNode(t *testing.T, mutate func(*rpcBlock)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var result interface{}
		var rpcErr map[string]interface{}

		switch req.Method {
		case "getblockcount":
			result = block100000.Height
		case "getblockhash":
			var height int64
			_ = json.Unmarshal(req.Params[0], &height)
			if height == 100000 {
				result = block100000Hash
			} else {
				rpcErr = map[string]interface{}{"code": -8, "message": "Block height out of range"}
			}
		case "getblock":
			var hash string
			_ = json.Unmarshal(req.Params[0], &hash)
			if hash != block100000Hash {
				rpcErr = map[string]interface{}{"code": -5, "message": "Block not found"}
				break
			}
			blk := &rpcBlock{
				Hash:              block100000Hash,
				Height:            block100000.Height,
				Version:           block100000.Version,
				MerkleRoot:        block100000.MerkleRoot,
				Time:              block100000.Timestamp,
				Nonce:             block100000.Nonce,
				Bits:              fmt.Sprintf("%08x", block100000.Bits),
				PreviousBlockHash: block100000.PrevBlockHash,
				Tx:                block100000.Txns,
			}
			if mutate != nil {
				mutate(blk)
			}
			result = blk
		default:
			rpcErr = map[string]interface{}{"code": -32601, "message": "Method not found"}
		}

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func newTestRPCClient(t *testing.T, url string) *RPCClient {
	t.Helper()
	client, err := NewRPCClient(context.Background(), &RPCConfig{
		URL:      url,
		User:     "alice",
		Password: "secret",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestRPCClient_GetBlock(t *testing.T) {
	server, _ := newFakeNode(t, nil)
	client := newTestRPCClient(t, server.URL)
	ctx := context.Background()

	t.Run("By height", func(t *testing.T) {
		block, err := client.GetBlock(ctx, "100000")
		require.NoError(t, err)
		require.Equal(t, block100000Hash, DisplayHex(block.Hash()))
		require.Len(t, block.TxIDs, 4)
		require.Equal(t, block100000.Txns[2], DisplayHex(block.TxIDs[2]))
	})

	t.Run("By hash", func(t *testing.T) {
		block, err := client.GetBlock(ctx, block100000Hash)
		require.NoError(t, err)
		require.Equal(t, int64(100000), block.Height)
	})

	t.Run("Unknown height", func(t *testing.T) {
		_, err := client.GetBlock(ctx, "42")
		require.Error(t, err)
		require.Contains(t, err.Error(), "getblockhash")
	})

	t.Run("Bad reference", func(t *testing.T) {
		_, err := client.GetBlock(ctx, "tip")
		require.Error(t, err)
	})
}

func TestRPCClient_HeaderMismatch(t *testing.T) {
	server, _ := newFakeNode(t, func(b *rpcBlock) {
		b.Nonce++
	})
	client := newTestRPCClient(t, server.URL)

	_, err := client.GetBlock(context.Background(), block100000Hash)
	require.ErrorIs(t, err, ErrBlockHashMismatch)
}

func TestRPCClient_BadBits(t *testing.T) {
	server, _ := newFakeNode(t, func(b *rpcBlock) {
		b.Bits = "zz"
	})
	client := newTestRPCClient(t, server.URL)

	_, err := client.GetBlock(context.Background(), block100000Hash)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid bits")
}

func TestRPCClient_Unauthorized(t *testing.T) {
	server, _ := newFakeNode(t, nil)
	client, err := NewRPCClient(context.Background(), &RPCConfig{URL: server.URL}, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetBlock(context.Background(), block100000Hash)
	require.Error(t, err)
}

func TestRPCClient_CanceledContext(t *testing.T) {
	server, calls := newFakeNode(t, nil)
	client := newTestRPCClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetBlock(ctx, block100000Hash)
	require.Error(t, err)
	require.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestNewRPCClient_EmptyURL(t *testing.T) {
	_, err := NewRPCClient(context.Background(), &RPCConfig{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewRPCClient(context.Background(), nil, zap.NewNop())
	require.Error(t, err)
}

func TestRPCClient_GetBlockCount(t *testing.T) {
	server, calls := newFakeNode(t, nil)
	client := newTestRPCClient(t, server.URL)

	height, err := client.GetBlockCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(100000), height)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))
}
