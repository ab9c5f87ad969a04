package scenario

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	log "github.com/colorfulnotion/gasprobe/log"
	"github.com/colorfulnotion/gasprobe/probes"
	"github.com/colorfulnotion/gasprobe/runner"
	"github.com/colorfulnotion/gasprobe/verdict"
)

// TransferClient is the slice of the RPC surface the transfer-charging
// scenario needs.
type TransferClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, addr common.Address) (*uint256.Int, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

const transferValueWei = 1

// TransferCharging submits a live value transfer to a fresh recipient
// and derives the gas actually charged from the sender's balance delta.
// This observes a real charge, not an estimate: the charged amount must
// cover the full intrinsic transaction cost. RPC failure downgrades to
// Skipped like any other probe.
func TransferCharging(ctx context.Context, client TransferClient, keyHex string) verdict.Measurement {
	const name = "transfer-charge"

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return verdict.Skip(name, verdict.KindScenario, fmt.Errorf("parse signer key: %v", err))
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	recipient, err := runner.FreshAddress()
	if err != nil {
		return verdict.Skip(name, verdict.KindScenario, err)
	}

	before, err := client.BalanceAt(ctx, from)
	if err != nil {
		return verdict.Skip(name, verdict.KindScenario, err)
	}

	receipt, gasPrice, err := sendTransfer(ctx, client, key, from, recipient)
	if err != nil {
		log.Warn(log.ProbeMonitoring, "transfer scenario rpc failed", "err", err)
		return verdict.Skip(name, verdict.KindScenario, err)
	}

	after, err := client.BalanceAt(ctx, from)
	if err != nil {
		return verdict.Skip(name, verdict.KindScenario, err)
	}

	chargedGas, err := chargedGasFromDelta(before, after, gasPrice)
	if err != nil {
		return verdict.Skip(name, verdict.KindScenario, err)
	}

	m := verdict.Measurement{
		Name:         name,
		Kind:         verdict.KindScenario,
		RawTotalGas:  chargedGas,
		ExecutionGas: 0,
		Expected:     probes.BaseTxGas,
	}
	// The balance delta must account for exactly the gas the receipt
	// reports, and a plain transfer costs exactly the base amount.
	if chargedGas == receipt.GasUsed && chargedGas >= probes.BaseTxGas {
		m.Status = verdict.Passed
	} else {
		m.Status = verdict.Failed
		m.Reason = fmt.Sprintf("balance delta implies %d gas, receipt reports %d", chargedGas, receipt.GasUsed)
	}
	log.Debug(log.ProbeMonitoring, "transfer scenario", "charged", chargedGas, "receiptGas", receipt.GasUsed, "status", m.Status)
	return m
}

func sendTransfer(ctx context.Context, client TransferClient, key *ecdsa.PrivateKey, from, to common.Address) (*types.Receipt, *big.Int, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := client.NonceAt(ctx, from)
	if err != nil {
		return nil, nil, err
	}
	gasPrice, err := client.GasPrice(ctx)
	if err != nil {
		return nil, nil, err
	}
	if gasPrice.Sign() == 0 {
		return nil, nil, fmt.Errorf("node suggests zero gas price; charged gas would be unobservable")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      probes.BaseTxGas,
		To:       &to,
		Value:    big.NewInt(transferValueWei),
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, nil, err
	}
	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	txHash, err := client.SendRawTransaction(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	receipt, err := client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, nil, err
	}
	return receipt, gasPrice, nil
}

// chargedGasFromDelta recovers gas charged = (balance delta - value
// transferred) / gas price.
func chargedGasFromDelta(before, after *uint256.Int, gasPrice *big.Int) (uint64, error) {
	if before.Lt(after) {
		return 0, fmt.Errorf("sender balance increased across transfer")
	}
	delta := new(uint256.Int).Sub(before, after)
	value := uint256.NewInt(transferValueWei)
	if delta.Lt(value) {
		return 0, fmt.Errorf("balance delta %s below transferred value", delta)
	}
	feeWei := new(uint256.Int).Sub(delta, value)
	price, overflow := uint256.FromBig(gasPrice)
	if overflow || price.IsZero() {
		return 0, fmt.Errorf("unusable gas price %s", gasPrice)
	}
	charged := new(uint256.Int).Div(feeWei, price)
	if !charged.IsUint64() {
		return 0, fmt.Errorf("implausible charged gas %s", charged)
	}
	return charged.Uint64(), nil
}
