package fixture

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/colorfulnotion/gasprobe/probes"
)

// EVM opcodes used by the embedded dispatcher runtime.
const (
	opEq           = 0x14
	opShr          = 0x1c
	opBalance      = 0x31
	opCalldataload = 0x35
	opExtcodesize  = 0x3b
	opExtcodehash  = 0x3f
	opPop          = 0x50
	opSload        = 0x54
	opSstore       = 0x55
	opJumpi        = 0x57
	opGas          = 0x5a
	opJumpdest     = 0x5b
	opPush2        = 0x61
	opPush4        = 0x63
	opCall         = 0xf1
	opDelegatecall = 0xf4
	opStaticcall   = 0xfa
)

// probeBody returns the hand-assembled code for one probe function. The
// argument word starts at calldata offset 4; every body ends in STOP.
func probeBody(name string) []byte {
	switch name {
	case "sload":
		return []byte{opPush1, 0x04, opCalldataload, opSload, opPop, opStop}
	case "sstore":
		// value 1 below, key on top: SSTORE pops slot then value
		return []byte{opPush1, 0x01, opPush1, 0x04, opCalldataload, opSstore, opStop}
	case "balance":
		return []byte{opPush1, 0x04, opCalldataload, opBalance, opPop, opStop}
	case "extcodesize":
		return []byte{opPush1, 0x04, opCalldataload, opExtcodesize, opPop, opStop}
	case "extcodehash":
		return []byte{opPush1, 0x04, opCalldataload, opExtcodehash, opPop, opStop}
	case "call":
		// retSize retOffset argsSize argsOffset value, then addr and gas
		return []byte{
			opPush1, 0x00, opPush1, 0x00, opPush1, 0x00, opPush1, 0x00, opPush1, 0x00,
			opPush1, 0x04, opCalldataload, opGas, opCall, opPop, opStop,
		}
	case "delegatecall":
		return []byte{
			opPush1, 0x00, opPush1, 0x00, opPush1, 0x00, opPush1, 0x00,
			opPush1, 0x04, opCalldataload, opGas, opDelegatecall, opPop, opStop,
		}
	case "staticcall":
		return []byte{
			opPush1, 0x00, opPush1, 0x00, opPush1, 0x00, opPush1, 0x00,
			opPush1, 0x04, opCalldataload, opGas, opStaticcall, opPop, opStop,
		}
	default:
		return nil
	}
}

// embeddedRuntime assembles a selector dispatcher over the registered
// opcode probes. Layout: load the selector, one DUP1 PUSH4 <sel> EQ
// PUSH2 <dest> JUMPI arm per probe in table order, STOP for unknown
// selectors, then the probe bodies each behind a JUMPDEST.
func embeddedRuntime() ([]byte, error) {
	table := probes.NewTable()
	type entry struct {
		selector []byte
		body     []byte
	}
	var entries []entry
	for _, p := range table.Opcodes() {
		body := probeBody(p.Name)
		if body == nil {
			return nil, fmt.Errorf("no embedded body for probe %s", p.Name)
		}
		entries = append(entries, entry{
			selector: crypto.Keccak256([]byte(p.Signature))[:4],
			body:     body,
		})
	}

	// 6-byte selector load, 11 bytes per dispatch arm, 1-byte fallback
	headerLen := 6 + 11*len(entries) + 1
	dests := make([]int, len(entries))
	off := headerLen
	for i, e := range entries {
		dests[i] = off
		off += 1 + len(e.body)
	}

	code := make([]byte, 0, off)
	code = append(code, opPush1, 0x00, opCalldataload, opPush1, 0xe0, opShr)
	for i, e := range entries {
		code = append(code, opDup1, opPush4)
		code = append(code, e.selector...)
		code = append(code, opEq, opPush2, byte(dests[i]>>8), byte(dests[i]), opJumpi)
	}
	code = append(code, opStop)
	for _, e := range entries {
		code = append(code, opJumpdest)
		code = append(code, e.body...)
	}
	return code, nil
}

// EmbeddedArtifact returns a deployable GasProbe fixture assembled from
// raw opcodes, so the opcode probes can run without a Solidity compiler
// on hand. The runtime dispatches on the same function selectors the
// compiled contract exports.
func EmbeddedArtifact() (Artifact, error) {
	runtime, err := embeddedRuntime()
	if err != nil {
		return Artifact{}, err
	}
	initCode, err := InitCode(runtime)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: "GasProbe", Bytecode: initCode}, nil
}
