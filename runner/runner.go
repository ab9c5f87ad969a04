package runner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colorfulnotion/gasprobe/gaserrors"
	log "github.com/colorfulnotion/gasprobe/log"
	"github.com/colorfulnotion/gasprobe/probes"
	"github.com/colorfulnotion/gasprobe/verdict"
)

// EstimateClient is the slice of the RPC surface the runner needs.
// rpcclient.Client satisfies it; tests substitute a stub.
type EstimateClient interface {
	EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error)
}

// Runner turns probes into live measurements against one fixture
// contract instance. Probes run one at a time in declared order: several
// share external node state (nonces, the fixture instance) and
// interleaving would race on it.
type Runner struct {
	client   EstimateClient
	table    *probes.Table
	contract common.Address
	from     common.Address
}

func New(client EstimateClient, table *probes.Table, contract common.Address, from common.Address) *Runner {
	return &Runner{client: client, table: table, contract: contract, from: from}
}

// RunOpcodeProbe issues one gas estimation for an opcode probe with a
// freshly generated argument. RPC failure downgrades to a Skipped
// measurement; a single unreachable call must not abort the suite, and
// estimation is idempotent so a retry would not change a deterministic
// node's answer.
func (r *Runner) RunOpcodeProbe(ctx context.Context, p probes.OpcodeProbe) verdict.Measurement {
	data, err := OpcodeCalldata(p)
	if err != nil {
		log.Warn(log.ProbeMonitoring, "opcode probe argument generation failed", "probe", p.Name, "err", err)
		return verdict.Skip(p.Name, verdict.KindOpcode, err)
	}
	to := r.contract
	rawTotalGas, err := r.client.EstimateGas(ctx, r.from, &to, nil, data)
	if err != nil {
		log.Warn(log.ProbeMonitoring, "opcode probe rpc failed", "probe", p.Name, "err", err)
		return verdict.Skip(p.Name, verdict.KindOpcode, fmt.Errorf("%v: %w", err, gaserrors.ErrRPCCallFailed))
	}
	m := verdict.ClassifyOpcode(p, rawTotalGas)
	log.Debug(log.ProbeMonitoring, "opcode probe", "probe", p.Name, "raw", m.RawTotalGas, "exec", m.ExecutionGas, "threshold", p.Threshold, "status", m.Status)
	return m
}

// RunPrecompileProbe estimates a call straight to the precompile address
// with a fixed-size input, so the expected cost is a single number.
func (r *Runner) RunPrecompileProbe(ctx context.Context, p probes.PrecompileProbe) verdict.Measurement {
	data := PrecompileInput(p)
	to := p.Addr
	rawTotalGas, err := r.client.EstimateGas(ctx, r.from, &to, nil, data)
	if err != nil {
		log.Warn(log.ProbeMonitoring, "precompile probe rpc failed", "probe", p.Name, "err", err)
		return verdict.Skip(p.Name, verdict.KindPrecompile, fmt.Errorf("%v: %w", err, gaserrors.ErrRPCCallFailed))
	}
	m := verdict.ClassifyPrecompile(p, rawTotalGas)
	log.Debug(log.ProbeMonitoring, "precompile probe", "probe", p.Name, "raw", m.RawTotalGas, "exec", m.ExecutionGas, "floor", m.Expected, "status", m.Status)
	return m
}

// RunOpcodes executes the opcode probes in declared order, appending one
// measurement per probe.
func (r *Runner) RunOpcodes(ctx context.Context, report *verdict.Report) {
	for _, p := range r.table.Opcodes() {
		report.Append(r.RunOpcodeProbe(ctx, p))
	}
}

// RunPrecompiles executes the precompile probes in declared order.
func (r *Runner) RunPrecompiles(ctx context.Context, report *verdict.Report) {
	for _, p := range r.table.Precompiles() {
		report.Append(r.RunPrecompileProbe(ctx, p))
	}
}

// RunAll executes the full declared order: storage opcodes, then
// account-access opcodes, then precompiles.
func (r *Runner) RunAll(ctx context.Context, report *verdict.Report) {
	r.RunOpcodes(ctx, report)
	r.RunPrecompiles(ctx, report)
}
