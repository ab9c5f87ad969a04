package runner

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/colorfulnotion/gasprobe/probes"
)

// Selector computes the 4-byte function selector for a signature.
// Example: Selector("probeSload(bytes32)") returns the first 4 bytes of
// its Keccak-256 hash.
func Selector(funcSig string) [4]byte {
	funcHash := crypto.Keccak256([]byte(funcSig))
	var selector [4]byte
	copy(selector[:], funcHash[:4])
	return selector
}

// FreshAddress generates an account address that no prior transaction
// can have touched. Each probe invocation gets its own so the access is
// guaranteed cold.
func FreshAddress() (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("generate fresh address: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// FreshKey generates a random 32-byte storage key unique to one probe
// invocation.
func FreshKey() (common.Hash, error) {
	var k common.Hash
	if _, err := rand.Read(k[:]); err != nil {
		return common.Hash{}, fmt.Errorf("generate fresh storage key: %w", err)
	}
	return k, nil
}

// OpcodeCalldata builds selector plus one 32-byte-padded fresh argument
// for an opcode probe. The argument is regenerated on every call; a
// reused address or key would be priced warm and invalidate the
// cold-access assertion.
func OpcodeCalldata(p probes.OpcodeProbe) ([]byte, error) {
	selector := Selector(p.Signature)
	data := make([]byte, 0, 4+32)
	data = append(data, selector[:]...)
	switch p.Arg {
	case probes.ArgFreshKey:
		key, err := FreshKey()
		if err != nil {
			return nil, err
		}
		data = append(data, key[:]...)
	case probes.ArgFreshAddress:
		addr, err := FreshAddress()
		if err != nil {
			return nil, err
		}
		var word [32]byte
		copy(word[12:], addr[:])
		data = append(data, word[:]...)
	case probes.ArgNone:
	}
	return data, nil
}

// blake2f input layout: rounds (4 bytes big-endian), h (64), m (128),
// t (16), final block flag (1). Total 213 bytes; the precompile rejects
// any other length or a flag outside {0, 1}.
const blake2fInputLen = 4 + 64 + 128 + 16 + 1

// PrecompileInput builds a well-formed input of the fixed test size for
// a precompile probe. All-zero field elements are valid points (the
// point at infinity), so zero padding keeps every input accepted while
// the expected cost stays a concrete number.
func PrecompileInput(p probes.PrecompileProbe) []byte {
	switch p.Name {
	case "ecrecover":
		// hash, v, r, s. An unrecoverable signature still charges the
		// full base cost.
		return make([]byte, 128)
	case "ecadd":
		return make([]byte, 128)
	case "ecmul":
		return make([]byte, 96)
	case "ecpairing":
		// 192 bytes per point pair.
		return make([]byte, 192*p.Units)
	case "blake2f":
		in := make([]byte, blake2fInputLen)
		binary.BigEndian.PutUint32(in[:4], uint32(p.Units))
		in[blake2fInputLen-1] = 1
		return in
	default:
		return nil
	}
}
