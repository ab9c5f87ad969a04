package fixture

import "fmt"

// EVM opcodes used by the synthetic constructor.
const (
	opStop     = 0x00
	opCodecopy = 0x39
	opPush1    = 0x60
	opPush3    = 0x62
	opDup1     = 0x80
	opReturn   = 0xf3
)

// SyntheticRuntime returns an n-byte runtime blob. The first byte is
// STOP so calling the deployed contract is a no-op, and the blob never
// starts with 0xEF (reserved by EIP-3541).
func SyntheticRuntime(n int) []byte {
	code := make([]byte, n)
	if n > 0 {
		code[0] = opStop
	}
	return code
}

// InitCode wraps runtime code in a minimal CODECOPY/RETURN constructor:
//
//	PUSH3 len DUP1 PUSH1 0x0d PUSH1 0x00 CODECOPY PUSH1 0x00 RETURN
//
// The 13-byte preamble copies the trailing runtime into memory and
// returns it as the deployed code.
func InitCode(runtime []byte) ([]byte, error) {
	if len(runtime) >= 1<<24 {
		return nil, fmt.Errorf("runtime code too large for PUSH3 constructor: %d bytes", len(runtime))
	}
	n := len(runtime)
	preamble := []byte{
		opPush3, byte(n >> 16), byte(n >> 8), byte(n),
		opDup1,
		opPush1, 0x0d,
		opPush1, 0x00,
		opCodecopy,
		opPush1, 0x00,
		opReturn,
	}
	return append(preamble, runtime...), nil
}

// SyntheticArtifact builds a deployable artifact whose runtime code is
// exactly n bytes, for probing the node's bytecode-size limit without a
// compiler.
func SyntheticArtifact(n int) (Artifact, error) {
	initCode, err := InitCode(SyntheticRuntime(n))
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: fmt.Sprintf("synthetic-%d", n), Bytecode: initCode}, nil
}
