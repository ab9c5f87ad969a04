package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/colorfulnotion/gasprobe/gaserrors"
	log "github.com/colorfulnotion/gasprobe/log"
)

const (
	callTimeout    = 10 * time.Second
	receiptTimeout = 60 * time.Second
	receiptPoll    = 1 * time.Second
)

// ErrReceiptNotFound is returned while a submitted transaction is still
// pending and has no receipt yet.
var ErrReceiptNotFound = errors.New("transaction receipt not found")

// Client is a typed wrapper around an execution client's JSON-RPC
// endpoint. Every call carries a bounded timeout so no probe can block
// the run indefinitely.
type Client struct {
	rpc      *rpc.Client
	endpoint string
}

// Connect dials the endpoint and performs the eth_chainId connectivity
// check. A failure here is fatal to the whole run, not per-probe.
func Connect(ctx context.Context, endpoint string) (*Client, error) {
	inner, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v: %w", endpoint, err, gaserrors.ErrCannotConnect)
	}
	c := &Client{rpc: inner, endpoint: endpoint}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		inner.Close()
		return nil, fmt.Errorf("eth_chainId against %s: %v: %w", endpoint, err, gaserrors.ErrCannotConnect)
	}
	log.Info(log.RPCMonitoring, "connected", "endpoint", endpoint, "chainID", chainID)
	return c, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return c.rpc.CallContext(ctx, result, method, args...)
}

// callArg is the transaction object accepted by eth_estimateGas and
// eth_call.
type callArg struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// ChainID returns the chain identifier of the connected node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.call(ctx, &result, "eth_chainId"); err != nil {
		return nil, err
	}
	return (*big.Int)(&result), nil
}

// EstimateGas is the core measurement primitive: the returned figure is
// a probe's raw total gas, base transaction cost included.
func (c *Client) EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	arg := callArg{From: from, To: to, Data: data}
	if value != nil && value.Sign() > 0 {
		arg.Value = (*hexutil.Big)(value)
	}
	var result hexutil.Uint64
	if err := c.call(ctx, &result, "eth_estimateGas", arg); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// BalanceAt returns the latest balance of addr.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	var result hexutil.Big
	if err := c.call(ctx, &result, "eth_getBalance", addr, "latest"); err != nil {
		return nil, err
	}
	balance, overflow := uint256.FromBig((*big.Int)(&result))
	if overflow {
		return nil, fmt.Errorf("balance of %s overflows uint256", addr.Hex())
	}
	return balance, nil
}

// NonceAt returns the pending nonce of addr.
func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, &result, "eth_getTransactionCount", addr, "pending"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// GasPrice returns the node's suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.call(ctx, &result, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return (*big.Int)(&result), nil
}

// CodeAt returns the bytecode deployed at addr.
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_getCode", addr, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// SendRawTransaction submits a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var result common.Hash
	if err := c.call(ctx, &result, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}
	return result, nil
}

// TransactionReceipt returns the receipt of txHash, or
// ErrReceiptNotFound while the transaction is pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := c.call(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ErrReceiptNotFound
	}
	return receipt, nil
}

// WaitForReceipt polls until the transaction is mined or the wait times
// out.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctxWait, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()
	for {
		select {
		case <-ctxWait.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s", txHash.Hex())
		case <-time.After(receiptPoll):
			receipt, err := c.TransactionReceipt(ctx, txHash)
			if err != nil {
				if errors.Is(err, ErrReceiptNotFound) {
					continue
				}
				log.Debug(log.RPCMonitoring, "receipt poll failed", "tx", txHash.Hex(), "err", err)
				continue
			}
			return receipt, nil
		}
	}
}
