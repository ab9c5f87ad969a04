package fixture

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"

	"github.com/colorfulnotion/gasprobe/gaserrors"
	log "github.com/colorfulnotion/gasprobe/log"
)

// Artifact is the output of one contract compilation.
type Artifact struct {
	Name     string
	Bytecode []byte
}

// Builder shells out to an external Solidity compiler. The harness does
// not implement compilation; it only consumes the tool's combined-json
// output.
type Builder struct {
	// Solc is the compiler binary to invoke, "solc" by default.
	Solc string
}

func NewBuilder(solc string) *Builder {
	if solc == "" {
		solc = "solc"
	}
	return &Builder{Solc: solc}
}

type combinedJSON struct {
	Contracts map[string]struct {
		Bin string `json:"bin"`
	} `json:"contracts"`
}

// Build compiles contractPath and returns the creation bytecode of the
// named contract (or the only contract in the file when name is empty).
// Compilation failure is fatal for scenarios that need the fixture.
func (b *Builder) Build(contractPath, name string) (Artifact, error) {
	cmd := exec.Command(b.Solc, "--combined-json", "bin", contractPath)
	out, err := cmd.Output()
	if err != nil {
		detail := err.Error()
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			detail = strings.TrimSpace(string(ee.Stderr))
		}
		return Artifact{}, fmt.Errorf("%s %s: %s: %w", b.Solc, contractPath, detail, gaserrors.ErrBuildFailed)
	}

	var parsed combinedJSON
	if err := json.Unmarshal(out, &parsed); err != nil {
		wrapped := pkgerrors.Wrapf(err, "parsing %s combined-json for %s", b.Solc, contractPath)
		return Artifact{}, fmt.Errorf("%v: %w", wrapped, gaserrors.ErrBuildFailed)
	}
	if len(parsed.Contracts) == 0 {
		return Artifact{}, fmt.Errorf("no contracts in %s output for %s: %w", b.Solc, contractPath, gaserrors.ErrBuildFailed)
	}

	for key, c := range parsed.Contracts {
		contractName := key
		if idx := strings.LastIndex(key, ":"); idx >= 0 {
			contractName = key[idx+1:]
		}
		if name != "" && contractName != name {
			continue
		}
		code := common.FromHex(c.Bin)
		if len(code) == 0 {
			return Artifact{}, fmt.Errorf("empty bytecode for %s in %s: %w", contractName, contractPath, gaserrors.ErrBuildFailed)
		}
		log.Debug(log.FixtureMonitoring, "built fixture", "contract", contractName, "bytes", len(code))
		return Artifact{Name: contractName, Bytecode: code}, nil
	}
	return Artifact{}, fmt.Errorf("contract %q not found in %s: %w", name, contractPath, gaserrors.ErrBuildFailed)
}
