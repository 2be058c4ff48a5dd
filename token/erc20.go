package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/axiomesh/polling/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const DefaultName = "LivepeerToken"

const erc20ABIJSON = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"spender","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]}
]`

var (
	ERC20ABI = core.MustParseABI(erc20ABIJSON)

	TransferTopic = ERC20ABI.Events["Transfer"].ID
	ApprovalTopic = ERC20ABI.Events["Approval"].ID
)

var (
	ErrTokenNotFound         = errors.New("token not found")
	ErrNotMinter             = errors.New("caller is not the minter")
	ErrInvalidAmount         = errors.New("amount must be a non-negative uint256")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

const (
	nameSlot        = "name"
	minterSlot      = "minter"
	totalSupplySlot = "totalSupply"
)

var _ core.Token = (*ERC20)(nil)

// ERC20 is a fungible token kept in the same state as the polls, so a
// transfer it makes is committed or dropped together with the calling
// transaction.
type ERC20 struct {
	address common.Address
	name    string
}

// Deploy creates a token whose minter is the caller.
func Deploy(env core.Env, name string) *ERC20 {
	addr := env.CreateAddress(env.Caller())
	env.Put(core.StorageKey(addr, nameSlot), []byte(name))
	env.Put(core.StorageKey(addr, minterSlot), env.Caller().Bytes())

	return &ERC20{
		address: addr,
		name:    name,
	}
}

func Load(env core.Env, addr common.Address) (*ERC20, error) {
	name := env.Get(core.StorageKey(addr, nameSlot))
	if name == nil {
		return nil, ErrTokenNotFound
	}

	return &ERC20{
		address: addr,
		name:    string(name),
	}, nil
}

func (t *ERC20) Name() string {
	return t.name
}

func (t *ERC20) Address() common.Address {
	return t.address
}

func (t *ERC20) TotalSupply(env core.Env) *big.Int {
	return core.DecodeUint256(env.Get(core.StorageKey(t.address, totalSupplySlot)))
}

func (t *ERC20) BalanceOf(env core.Env, owner common.Address) *big.Int {
	return core.DecodeUint256(env.Get(t.balanceKey(owner)))
}

func (t *ERC20) Allowance(env core.Env, owner, spender common.Address) *big.Int {
	return core.DecodeUint256(env.Get(t.allowanceKey(owner, spender)))
}

func (t *ERC20) Mint(env core.Env, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if common.BytesToAddress(env.Get(core.StorageKey(t.address, minterSlot))) != env.Caller() {
		return ErrNotMinter
	}

	supply := new(big.Int).Add(t.TotalSupply(env), amount)
	if supply.BitLen() > 256 {
		return ErrInvalidAmount
	}
	env.Put(core.StorageKey(t.address, totalSupplySlot), core.EncodeUint256(supply))
	env.Put(t.balanceKey(to), core.EncodeUint256(new(big.Int).Add(t.BalanceOf(env, to), amount)))

	return t.emit(env, "Transfer", common.Address{}, to, amount)
}

func (t *ERC20) Approve(env core.Env, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	env.Put(t.allowanceKey(env.Caller(), spender), core.EncodeUint256(amount))

	return t.emit(env, "Approval", env.Caller(), spender, amount)
}

func (t *ERC20) Transfer(env core.Env, to common.Address, amount *big.Int) error {
	return t.transfer(env, env.Caller(), to, amount)
}

func (t *ERC20) TransferFrom(env core.Env, spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	allowance := t.Allowance(env, from, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := t.transfer(env, from, to, amount); err != nil {
		return err
	}
	env.Put(t.allowanceKey(from, spender), core.EncodeUint256(allowance.Sub(allowance, amount)))

	return nil
}

func (t *ERC20) transfer(env core.Env, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	balance := t.BalanceOf(env, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrInsufficientBalance, balance, amount)
	}
	env.Put(t.balanceKey(from), core.EncodeUint256(balance.Sub(balance, amount)))
	env.Put(t.balanceKey(to), core.EncodeUint256(new(big.Int).Add(t.BalanceOf(env, to), amount)))

	return t.emit(env, "Transfer", from, to, amount)
}

func (t *ERC20) emit(env core.Env, name string, a, b common.Address, amount *big.Int) error {
	ev := ERC20ABI.Events[name]
	data, err := ev.Inputs.NonIndexed().Pack(amount)
	if err != nil {
		return fmt.Errorf("pack %s: %w", name, err)
	}

	env.Emit(&types.Log{
		Address: t.address,
		Topics:  []common.Hash{ev.ID, core.AddressTopic(a), core.AddressTopic(b)},
		Data:    data,
	})
	return nil
}

func (t *ERC20) balanceKey(owner common.Address) []byte {
	return core.StorageKey(t.address, "balance/"+owner.Hex())
}

func (t *ERC20) allowanceKey(owner, spender common.Address) []byte {
	return core.StorageKey(t.address, "allowance/"+owner.Hex()+"/"+spender.Hex())
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > 256 {
		return ErrInvalidAmount
	}
	return nil
}
