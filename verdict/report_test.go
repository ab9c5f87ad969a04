package verdict

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/gasprobe/probes"
)

func mustOpcode(t *testing.T, name string) probes.OpcodeProbe {
	t.Helper()
	p, err := probes.NewTable().LookupOpcode(name)
	require.NoError(t, err)
	return p
}

func mustPrecompile(t *testing.T, name string) probes.PrecompileProbe {
	t.Helper()
	p, err := probes.NewTable().LookupPrecompile(name)
	require.NoError(t, err)
	return p
}

// A modified-model node charges 8100 cold plus the 21000 base: raw
// 29100 clears the 26000 threshold.
func TestSloadAgainstModifiedNode(t *testing.T) {
	m := ClassifyOpcode(mustOpcode(t, "sload"), 29100)
	require.Equal(t, Passed, m.Status)
	require.Equal(t, uint64(8100), m.ExecutionGas)
}

// A reference-model node charges 2100 cold plus the base: raw 23100
// stays below the threshold.
func TestSloadAgainstReferenceNode(t *testing.T) {
	m := ClassifyOpcode(mustOpcode(t, "sload"), 23100)
	require.Equal(t, Failed, m.Status)
	require.Equal(t, uint64(26000), m.Expected)
}

func TestOpcodeThresholdBoundary(t *testing.T) {
	p := mustOpcode(t, "balance")
	cases := []struct {
		raw  uint64
		want Status
	}{
		{p.Threshold - 1, Failed},
		{p.Threshold, Passed},
		{p.Threshold + 1, Passed},
	}
	for _, tc := range cases {
		m := ClassifyOpcode(p, tc.raw)
		if m.Status != tc.want {
			t.Errorf("raw=%d: status = %s, want %s", tc.raw, m.Status, tc.want)
		}
	}
}

// One-point pairing on a modified node: 225000 + 170000 = 395000
// execution gas is exactly the floor, and the floor is inclusive.
func TestPairingBoundary(t *testing.T) {
	p := mustPrecompile(t, "ecpairing")
	require.Equal(t, uint64(395000), p.ExpectedFloor())

	atFloor := ClassifyPrecompile(p, 395000+probes.BaseTxGas)
	require.Equal(t, Passed, atFloor.Status)
	require.Equal(t, uint64(395000), atFloor.ExecutionGas)

	oneBelow := ClassifyPrecompile(p, 395000+probes.BaseTxGas-1)
	require.Equal(t, Failed, oneBelow.Status)

	oneAbove := ClassifyPrecompile(p, 395000+probes.BaseTxGas+1)
	require.Equal(t, Passed, oneAbove.Status)
}

// Feeding the table's own modified-model cost back in as the raw
// measurement must classify Passed for every probe: the table is
// self-consistent.
func TestTableSelfConsistency(t *testing.T) {
	table := probes.NewTable()
	for _, p := range table.Opcodes() {
		m := ClassifyOpcode(p, p.Cost(probes.Modified)+probes.BaseTxGas)
		if m.Status != Passed {
			t.Errorf("opcode %s: modified cost %d classifies %s", p.Name, p.Cost(probes.Modified), m.Status)
		}
	}
	for _, p := range table.Precompiles() {
		m := ClassifyPrecompile(p, p.ExpectedFloor()+probes.BaseTxGas)
		if m.Status != Passed {
			t.Errorf("precompile %s: floor %d classifies %s", p.Name, p.ExpectedFloor(), m.Status)
		}
	}
}

func TestExecutionGasUnderflow(t *testing.T) {
	m := ClassifyPrecompile(mustPrecompile(t, "ecadd"), 100)
	require.Equal(t, uint64(0), m.ExecutionGas)
	require.Equal(t, Failed, m.Status)
}

func TestSkipRetainsReason(t *testing.T) {
	m := Skip("sload", KindOpcode, errors.New("connection refused"))
	require.Equal(t, Skipped, m.Status)
	require.Equal(t, "connection refused", m.Reason)
}

func TestReportCountsAndExitCode(t *testing.T) {
	r := NewReport(probes.Modified)
	r.Append(Measurement{Name: "a", Status: Passed})
	r.Append(Measurement{Name: "b", Status: Skipped})
	require.Equal(t, 1, r.Passed())
	require.Equal(t, 0, r.Failed())
	require.Equal(t, 1, r.Skipped())
	// skipped probes alone do not fail the run
	require.Equal(t, 0, r.ExitCode())

	r.Append(Measurement{Name: "c", Status: Failed})
	require.Equal(t, 1, r.ExitCode())

	// every appended measurement is classified exactly once
	require.Equal(t, len(r.Measurements()), r.Passed()+r.Failed()+r.Skipped())
}

func TestSummaryShowsExpectedVsObserved(t *testing.T) {
	r := NewReport(probes.Reference)
	r.Append(ClassifyOpcode(mustOpcode(t, "sload"), 23100))
	summary := r.Summary()
	require.True(t, strings.Contains(summary, "FAIL"), summary)
	require.True(t, strings.Contains(summary, "expected>=26000"), summary)
	require.True(t, strings.Contains(summary, "raw=23100"), summary)
	require.True(t, strings.Contains(summary, "failed=1"), summary)
}
