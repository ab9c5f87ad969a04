package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/colorfulnotion/gasprobe/fixture"
	"github.com/colorfulnotion/gasprobe/gaserrors"
	log "github.com/colorfulnotion/gasprobe/log"
	"github.com/colorfulnotion/gasprobe/probes"
	"github.com/colorfulnotion/gasprobe/verdict"
)

// CodeSizeRuntimeBytes sits between the reference limit (24576) and the
// modified limit (131072): a reference-limited node must reject it and a
// modified node must accept it.
const CodeSizeRuntimeBytes = 40000

// CodeDeployer deploys a prepared artifact; fixture.Deployer satisfies
// it.
type CodeDeployer interface {
	Deploy(ctx context.Context, art fixture.Artifact) (common.Address, error)
}

// CodeReader optionally verifies the deployed code; rpcclient.Client
// satisfies it.
type CodeReader interface {
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}

// CodeSizeLimit deploys a synthetic contract with a 40000-byte runtime
// and classifies the outcome against the model under test. Under the
// reference model a DeployFailed is the expected observation, not a
// harness error.
func CodeSizeLimit(ctx context.Context, deployer CodeDeployer, reader CodeReader, model probes.GasModel) verdict.Measurement {
	name := fmt.Sprintf("codesize-%d", CodeSizeRuntimeBytes)
	m := verdict.Measurement{
		Name: name,
		Kind: verdict.KindScenario,
	}
	if model == probes.Modified {
		m.Expected = probes.MaxCodeSizeModified
	} else {
		m.Expected = probes.MaxCodeSizeReference
	}

	art, err := fixture.SyntheticArtifact(CodeSizeRuntimeBytes)
	if err != nil {
		return verdict.Skip(name, verdict.KindScenario, err)
	}

	addr, err := deployer.Deploy(ctx, art)
	deployRejected := err != nil && errors.Is(err, gaserrors.ErrDeployFailed)
	switch {
	case err != nil && !deployRejected:
		return verdict.Skip(name, verdict.KindScenario, err)
	case model == probes.Reference && deployRejected:
		m.Status = verdict.Passed
		m.Reason = "oversized deployment rejected as expected"
	case model == probes.Reference:
		m.Status = verdict.Failed
		m.Reason = fmt.Sprintf("node accepted %d-byte runtime beyond the %d-byte limit", CodeSizeRuntimeBytes, probes.MaxCodeSizeReference)
	case deployRejected:
		m.Status = verdict.Failed
		m.Reason = fmt.Sprintf("node rejected %d-byte runtime under the %d-byte limit: %v", CodeSizeRuntimeBytes, probes.MaxCodeSizeModified, err)
	default:
		m.Status = verdict.Passed
		m.Reason = "oversized deployment accepted as expected"
		if reader != nil {
			if code, cerr := reader.CodeAt(ctx, addr); cerr == nil && len(code) != CodeSizeRuntimeBytes {
				m.Status = verdict.Failed
				m.Reason = fmt.Sprintf("deployed code is %d bytes, want %d", len(code), CodeSizeRuntimeBytes)
			}
		}
	}
	log.Debug(log.ProbeMonitoring, "codesize scenario", "model", model, "status", m.Status, "reason", m.Reason)
	return m
}
