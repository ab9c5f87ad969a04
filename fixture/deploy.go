package fixture

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/colorfulnotion/gasprobe/gaserrors"
	log "github.com/colorfulnotion/gasprobe/log"
)

// DeployClient is the slice of the RPC surface deployment needs.
type DeployClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// gas headroom over the deployment estimate, in percent
const deployGasMargin = 20

// Deployer signs and submits contract-creation transactions with the
// configured signer key.
type Deployer struct {
	client DeployClient
	key    *ecdsa.PrivateKey
	from   common.Address
}

func NewDeployer(client DeployClient, keyHex string) (*Deployer, error) {
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return &Deployer{
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (d *Deployer) From() common.Address {
	return d.from
}

// Deploy submits the artifact's creation code and waits for the mined
// receipt. Only a rejection observed from the node (an estimation
// refusal or a reverted receipt) maps to DeployFailed; the caller
// decides whether that is fatal (opcode fixture) or the expected
// observation (code-size scenario against a reference-limited node).
// Transport failures map to RpcCallFailed instead, so they can never
// masquerade as a deployment verdict.
func (d *Deployer) Deploy(ctx context.Context, art Artifact) (common.Address, error) {
	chainID, err := d.client.ChainID(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain id: %v: %w", err, gaserrors.ErrRPCCallFailed)
	}
	nonce, err := d.client.NonceAt(ctx, d.from)
	if err != nil {
		return common.Address{}, fmt.Errorf("nonce of %s: %v: %w", d.from.Hex(), err, gaserrors.ErrRPCCallFailed)
	}
	gasPrice, err := d.client.GasPrice(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("gas price: %v: %w", err, gaserrors.ErrRPCCallFailed)
	}
	gasLimit, err := d.client.EstimateGas(ctx, d.from, nil, nil, art.Bytecode)
	if err != nil {
		// A node enforcing a smaller code limit rejects the creation at
		// estimation time already.
		return common.Address{}, fmt.Errorf("estimate deployment of %s: %v: %w", art.Name, err, gaserrors.ErrDeployFailed)
	}
	gasLimit += gasLimit * deployGasMargin / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       nil,
		Value:    new(big.Int),
		Data:     art.Bytecode,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), d.key)
	if err != nil {
		return common.Address{}, fmt.Errorf("sign deployment of %s: %v", art.Name, err)
	}
	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return common.Address{}, fmt.Errorf("encode deployment of %s: %v", art.Name, err)
	}

	txHash, err := d.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("submit deployment of %s: %v: %w", art.Name, err, gaserrors.ErrRPCCallFailed)
	}
	log.Info(log.FixtureMonitoring, "deployment submitted", "contract", art.Name, "tx", txHash.Hex(), "gas", gasLimit)

	receipt, err := d.client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("await deployment of %s: %v: %w", art.Name, err, gaserrors.ErrRPCCallFailed)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("deployment of %s reverted in tx %s: %w", art.Name, txHash.Hex(), gaserrors.ErrDeployFailed)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, fmt.Errorf("deployment of %s yielded no contract address", art.Name)
	}
	log.Info(log.FixtureMonitoring, "deployed", "contract", art.Name, "address", receipt.ContractAddress.Hex())
	return receipt.ContractAddress, nil
}
