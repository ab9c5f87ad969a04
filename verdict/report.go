package verdict

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/gasprobe/probes"
)

// Status is the terminal classification of a single probe. Every probe
// transitions Pending -> {Passed | Failed | Skipped} exactly once; there
// is no retry loop and no intermediate state.
type Status string

const (
	Passed  Status = "Passed"
	Failed  Status = "Failed"
	Skipped Status = "Skipped"
)

// Kind distinguishes the comparison rule applied to a measurement.
type Kind string

const (
	KindOpcode     Kind = "opcode"
	KindPrecompile Kind = "precompile"
	KindScenario   Kind = "scenario"
)

// Measurement is the result of one probe execution. It is produced by
// the runner, classified here, and lives only as long as the report.
type Measurement struct {
	Name         string
	Kind         Kind
	RawTotalGas  uint64
	ExecutionGas uint64
	Expected     uint64
	Status       Status
	Reason       string
}

// ClassifyOpcode applies the threshold rule: the raw estimate must reach
// the probe's calibrated threshold for the access to count as priced by
// the modified schedule.
func ClassifyOpcode(p probes.OpcodeProbe, rawTotalGas uint64) Measurement {
	m := Measurement{
		Name:         p.Name,
		Kind:         KindOpcode,
		RawTotalGas:  rawTotalGas,
		ExecutionGas: executionGas(rawTotalGas),
		Expected:     p.Threshold,
	}
	if rawTotalGas >= p.Threshold {
		m.Status = Passed
	} else {
		m.Status = Failed
	}
	return m
}

// ClassifyPrecompile applies the lower-bound rule: execution gas must be
// at least the reference cost scaled by the repricing multiplier. This is
// not exact-match because real precompile execution carries intrinsic
// costs beyond the priced component.
func ClassifyPrecompile(p probes.PrecompileProbe, rawTotalGas uint64) Measurement {
	m := Measurement{
		Name:         p.Name,
		Kind:         KindPrecompile,
		RawTotalGas:  rawTotalGas,
		ExecutionGas: executionGas(rawTotalGas),
		Expected:     p.ExpectedFloor(),
	}
	if m.ExecutionGas >= m.Expected {
		m.Status = Passed
	} else {
		m.Status = Failed
	}
	return m
}

// Skip records a probe whose underlying RPC call failed. Skipped probes
// stay in the report for visibility but count toward neither pass nor
// fail.
func Skip(name string, kind Kind, err error) Measurement {
	reason := "rpc call failed"
	if err != nil {
		reason = err.Error()
	}
	return Measurement{Name: name, Kind: kind, Status: Skipped, Reason: reason}
}

func executionGas(rawTotalGas uint64) uint64 {
	if rawTotalGas < probes.BaseTxGas {
		return 0
	}
	return rawTotalGas - probes.BaseTxGas
}

// Report is an ordered sequence of measurements plus running totals. It
// is appended to strictly sequentially by the single executing thread;
// parallel probe execution would need to synchronize Append.
type Report struct {
	Model        probes.GasModel
	measurements []Measurement
	passed       int
	failed       int
	skipped      int
}

func NewReport(model probes.GasModel) *Report {
	return &Report{Model: model}
}

// Append records one measurement. Exactly one call per probe.
func (r *Report) Append(m Measurement) {
	r.measurements = append(r.measurements, m)
	switch m.Status {
	case Passed:
		r.passed++
	case Failed:
		r.failed++
	case Skipped:
		r.skipped++
	}
}

func (r *Report) Measurements() []Measurement {
	out := make([]Measurement, len(r.measurements))
	copy(out, r.measurements)
	return out
}

func (r *Report) Passed() int  { return r.passed }
func (r *Report) Failed() int  { return r.failed }
func (r *Report) Skipped() int { return r.skipped }

// ExitCode finalizes the run: non-zero iff any probe failed. Skipped
// probes alone do not fail the run.
func (r *Report) ExitCode() int {
	if r.failed > 0 {
		return 1
	}
	return 0
}

// Summary renders one line per probe and a trailing totals line. Failed
// probes show expected vs observed side by side.
func (r *Report) Summary() string {
	var b strings.Builder
	for _, m := range r.measurements {
		switch m.Status {
		case Passed:
			fmt.Fprintf(&b, "PASS %-12s %-10s raw=%d exec=%d\n", m.Name, m.Kind, m.RawTotalGas, m.ExecutionGas)
		case Failed:
			fmt.Fprintf(&b, "FAIL %-12s %-10s expected>=%d observed raw=%d exec=%d\n", m.Name, m.Kind, m.Expected, m.RawTotalGas, m.ExecutionGas)
		case Skipped:
			fmt.Fprintf(&b, "SKIP %-12s %-10s %s\n", m.Name, m.Kind, m.Reason)
		}
	}
	fmt.Fprintf(&b, "model=%s passed=%d failed=%d skipped=%d\n", r.Model, r.passed, r.failed, r.skipped)
	return b.String()
}
