package core

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Env is the execution environment of a single call. Writes and emitted logs
// only become visible when the runtime commits the call.
type Env interface {
	// Caller is the account that sent the call.
	Caller() common.Address

	// BlockNumber is the height of the block the call is executed in.
	BlockNumber() uint64

	Get(key []byte) []byte
	Has(key []byte) bool
	Put(key, value []byte)
	Delete(key []byte)

	// CreateAddress returns the address of the next contract deployed by
	// deployer and bumps the deployer's nonce.
	CreateAddress(deployer common.Address) common.Address

	Emit(log *types.Log)
}

// StorageKey returns the state key of a contract storage slot.
func StorageKey(contract common.Address, slot string) []byte {
	return []byte(fmt.Sprintf("storage/%s/%s", contract.Hex(), slot))
}

// AddressTopic left pads an address into an indexed event topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func encodeUint64(v uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	return data
}

func decodeUint64(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}

// EncodeUint256 stores a big integer as a 32 byte word.
func EncodeUint256(v *big.Int) []byte {
	return common.BigToHash(v).Bytes()
}

// DecodeUint256 reads a word written by EncodeUint256, missing words are zero.
func DecodeUint256(data []byte) *big.Int {
	return new(big.Int).SetBytes(data)
}
