package core

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var _ Env = (*MockEnv)(nil)

type MockEnv struct {
	caller common.Address
	number uint64
	state  map[string][]byte
	nonces map[common.Address]uint64
	logs   []*types.Log
}

func NewMockEnv(caller common.Address, number uint64) *MockEnv {
	return &MockEnv{
		caller: caller,
		number: number,
		state:  make(map[string][]byte),
		nonces: make(map[common.Address]uint64),
	}
}

func (m *MockEnv) Caller() common.Address { return m.caller }

func (m *MockEnv) BlockNumber() uint64 { return m.number }

func (m *MockEnv) Get(key []byte) []byte { return m.state[string(key)] }

func (m *MockEnv) Has(key []byte) bool {
	_, ok := m.state[string(key)]
	return ok
}

func (m *MockEnv) Put(key, value []byte) { m.state[string(key)] = value }

func (m *MockEnv) Delete(key []byte) { delete(m.state, string(key)) }

func (m *MockEnv) CreateAddress(deployer common.Address) common.Address {
	nonce := m.nonces[deployer]
	m.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

func (m *MockEnv) Emit(log *types.Log) { m.logs = append(m.logs, log) }

var _ Token = (*MockToken)(nil)

// MockToken succeeds or fails every transfer depending on Fail.
type MockToken struct {
	Addr      common.Address
	Fail      bool
	Transfers []*big.Int
}

func (t *MockToken) Name() string { return "LivepeerToken" }

func (t *MockToken) Address() common.Address { return t.Addr }

func (t *MockToken) TransferFrom(env Env, spender, from, to common.Address, amount *big.Int) error {
	if t.Fail {
		return errors.New("insufficient allowance")
	}
	t.Transfers = append(t.Transfers, new(big.Int).Set(amount))
	return nil
}
