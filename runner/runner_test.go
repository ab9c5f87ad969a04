package runner

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/gasprobe/probes"
	"github.com/colorfulnotion/gasprobe/verdict"
)

type estimateCall struct {
	to   *common.Address
	data []byte
}

type stubClient struct {
	gas   uint64
	err   error
	calls []estimateCall
}

func (s *stubClient) EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	s.calls = append(s.calls, estimateCall{to: to, data: data})
	if s.err != nil {
		return 0, s.err
	}
	return s.gas, nil
}

var fixtureAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")

func newTestRunner(client *stubClient) *Runner {
	return New(client, probes.NewTable(), fixtureAddr, common.HexToAddress("0xdead"))
}

func TestSelector(t *testing.T) {
	want := crypto.Keccak256([]byte("probeSload(bytes32)"))[:4]
	got := Selector("probeSload(bytes32)")
	require.Equal(t, want, got[:])
}

func TestOpcodeCalldataFreshPerCall(t *testing.T) {
	p, err := probes.NewTable().LookupOpcode("sload")
	require.NoError(t, err)

	first, err := OpcodeCalldata(p)
	require.NoError(t, err)
	second, err := OpcodeCalldata(p)
	require.NoError(t, err)

	require.Len(t, first, 4+32)
	require.Equal(t, first[:4], second[:4])
	// the argument must never repeat across invocations, or the access
	// would be warm
	require.NotEqual(t, first[4:], second[4:])
}

func TestOpcodeCalldataAddressPadding(t *testing.T) {
	p, err := probes.NewTable().LookupOpcode("balance")
	require.NoError(t, err)
	data, err := OpcodeCalldata(p)
	require.NoError(t, err)
	require.Len(t, data, 4+32)
	// address is right-aligned in the 32-byte word
	require.Equal(t, make([]byte, 12), data[4:16])
	require.NotEqual(t, make([]byte, 20), data[16:36])
}

func TestPrecompileInputSizes(t *testing.T) {
	table := probes.NewTable()
	sizes := map[string]int{
		"ecrecover": 128,
		"ecadd":     128,
		"ecmul":     96,
		"ecpairing": 192,
		"blake2f":   213,
	}
	for name, want := range sizes {
		p, err := table.LookupPrecompile(name)
		require.NoError(t, err, name)
		require.Len(t, PrecompileInput(p), want, name)
	}
}

func TestBlake2fInputEncodesRounds(t *testing.T) {
	p, err := probes.NewTable().LookupPrecompile("blake2f")
	require.NoError(t, err)
	in := PrecompileInput(p)
	require.Equal(t, uint32(12), binary.BigEndian.Uint32(in[:4]))
	require.Equal(t, byte(1), in[len(in)-1])
}

func TestRunOpcodeProbeTargetsFixture(t *testing.T) {
	client := &stubClient{gas: 29100}
	r := newTestRunner(client)
	p, err := probes.NewTable().LookupOpcode("sload")
	require.NoError(t, err)

	m := r.RunOpcodeProbe(context.Background(), p)
	require.Equal(t, verdict.Passed, m.Status)
	require.Len(t, client.calls, 1)
	require.Equal(t, fixtureAddr, *client.calls[0].to)
}

func TestRunPrecompileProbeTargetsPrecompileAddress(t *testing.T) {
	client := &stubClient{gas: 6000 + probes.BaseTxGas}
	r := newTestRunner(client)
	p, err := probes.NewTable().LookupPrecompile("ecrecover")
	require.NoError(t, err)

	m := r.RunPrecompileProbe(context.Background(), p)
	require.Equal(t, verdict.Passed, m.Status)
	require.Len(t, client.calls, 1)
	require.Equal(t, p.Addr, *client.calls[0].to)
}

func TestRPCFailureDowngradesToSkipped(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	r := newTestRunner(client)
	report := verdict.NewReport(probes.Modified)

	r.RunAll(context.Background(), report)

	table := probes.NewTable()
	wantProbes := len(table.Opcodes()) + len(table.Precompiles())
	require.Len(t, report.Measurements(), wantProbes)
	require.Equal(t, wantProbes, report.Skipped())
	require.Contains(t, report.Measurements()[0].Reason, "connection refused")
	require.Equal(t, 0, report.Failed())
	// a fully skipped run still exits clean
	require.Equal(t, 0, report.ExitCode())
	// single attempt per probe, no retries
	require.Len(t, client.calls, wantProbes)
}

// Running the same probe twice against an unchanged node yields the same
// status both times: the cold cost depends only on per-call freshness.
func TestIdempotentAcrossRuns(t *testing.T) {
	client := &stubClient{gas: 29100}
	r := newTestRunner(client)
	p, err := probes.NewTable().LookupOpcode("sload")
	require.NoError(t, err)

	first := r.RunOpcodeProbe(context.Background(), p)
	second := r.RunOpcodeProbe(context.Background(), p)
	require.Equal(t, first.Status, second.Status)
	// fresh arguments were generated for each run
	require.NotEqual(t, client.calls[0].data[4:], client.calls[1].data[4:])
}
