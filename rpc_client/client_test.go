package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/gasprobe/gaserrors"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// newRPCServer serves canned results keyed by method name over HTTP
// JSON-RPC.
func newRPCServer(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			resp := map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			}
			json.NewEncoder(w).Encode(resp)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestConnectChecksChainID(t *testing.T) {
	srv := newRPCServer(t, map[string]interface{}{"eth_chainId": "0x539"})
	defer srv.Close()

	client, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1337), chainID.Int64())
}

// An unreachable endpoint is fatal before any probe runs.
func TestConnectUnreachable(t *testing.T) {
	srv := newRPCServer(t, nil)
	url := srv.URL
	srv.Close()

	_, err := Connect(context.Background(), url)
	if !errors.Is(err, gaserrors.ErrCannotConnect) {
		t.Fatalf("Connect error = %v, want ErrCannotConnect", err)
	}
}

func TestEstimateGas(t *testing.T) {
	srv := newRPCServer(t, map[string]interface{}{
		"eth_chainId":     "0x539",
		"eth_estimateGas": "0x71ac", // 29100
	})
	defer srv.Close()

	client, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	to := common.HexToAddress("0x1000000000000000000000000000000000000001")
	gas, err := client.EstimateGas(context.Background(), common.Address{}, &to, nil, []byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, uint64(29100), gas)
}

func TestBalanceAndNonce(t *testing.T) {
	srv := newRPCServer(t, map[string]interface{}{
		"eth_chainId":             "0x539",
		"eth_getBalance":          "0xde0b6b3a7640000", // 1 ether
		"eth_getTransactionCount": "0x7",
	})
	defer srv.Close()

	client, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	addr := common.HexToAddress("0xdead")
	balance, err := client.BalanceAt(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", balance.Dec())

	nonce, err := client.NonceAt(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)
}

func TestTransactionReceiptPending(t *testing.T) {
	srv := newRPCServer(t, map[string]interface{}{
		"eth_chainId":               "0x539",
		"eth_getTransactionReceipt": nil,
	})
	defer srv.Close()

	client, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.TransactionReceipt(context.Background(), common.HexToHash("0xabc"))
	if !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("TransactionReceipt error = %v, want ErrReceiptNotFound", err)
	}
}

func TestSendRawTransaction(t *testing.T) {
	wantHash := "0x00000000000000000000000000000000000000000000000000000000000abc12"
	srv := newRPCServer(t, map[string]interface{}{
		"eth_chainId":            "0x539",
		"eth_sendRawTransaction": wantHash,
	})
	defer srv.Close()

	client, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()

	hash, err := client.SendRawTransaction(context.Background(), []byte{0xf8, 0x6c})
	require.NoError(t, err)
	require.Equal(t, common.HexToHash(wantHash), hash)
}
