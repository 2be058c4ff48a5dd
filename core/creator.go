package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// Quorum is the participation percentage tally tools should require
	Quorum = 20

	// Threshold is the approval percentage tally tools should require
	Threshold = 50

	// PollPeriod is the number of blocks a poll accepts votes for, about ten days
	PollPeriod = 10 * 5760
)

const (
	tokenSlot            = "token"
	pollCreationCostSlot = "pollCreationCost"
)

// Token is the fungible token collaborator charging for poll creation.
type Token interface {
	Name() string
	Address() common.Address

	// TransferFrom moves amount from `from` to `to` using the allowance
	// granted by `from` to spender. A non nil error means nothing moved.
	TransferFrom(env Env, spender, from, to common.Address, amount *big.Int) error
}

// PollCreator deploys polls for a fee. It persists the token address and the
// creation cost, the quorum, threshold and period are shared constants.
type PollCreator struct {
	Address common.Address
	token   Token
}

func DeployPollCreator(env Env, token Token, cost *big.Int) (*PollCreator, error) {
	if cost == nil || cost.Sign() < 0 || cost.BitLen() > 256 {
		return nil, ErrInvalidCost
	}

	addr := env.CreateAddress(env.Caller())
	env.Put(StorageKey(addr, tokenSlot), token.Address().Bytes())
	env.Put(StorageKey(addr, pollCreationCostSlot), EncodeUint256(cost))

	return &PollCreator{
		Address: addr,
		token:   token,
	}, nil
}

// LoadPollCreator binds a deployed creator to its token implementation.
func LoadPollCreator(env Env, addr common.Address, token Token) (*PollCreator, error) {
	data := env.Get(StorageKey(addr, tokenSlot))
	if data == nil {
		return nil, ErrCreatorNotFound
	}
	if common.BytesToAddress(data) != token.Address() {
		return nil, ErrTokenMismatch
	}

	return &PollCreator{
		Address: addr,
		token:   token,
	}, nil
}

func (c *PollCreator) Token(env Env) common.Address {
	return common.BytesToAddress(env.Get(StorageKey(c.Address, tokenSlot)))
}

func (c *PollCreator) PollCreationCost(env Env) *big.Int {
	return DecodeUint256(env.Get(StorageKey(c.Address, pollCreationCostSlot)))
}

func (c *PollCreator) Quorum() uint64 {
	return Quorum
}

func (c *PollCreator) Threshold() uint64 {
	return Threshold
}

func (c *PollCreator) PollPeriod() uint64 {
	return PollPeriod
}

// CreatePoll charges the caller the creation cost and deploys a poll ending
// PollPeriod blocks after the current one. Payment, deployment and the
// PollCreated event are only committed together by the runtime, so any error
// returned here leaves no trace.
func (c *PollCreator) CreatePoll(env Env, proposal common.Hash) (*PollCreated, error) {
	cost := c.PollCreationCost(env)
	if err := c.token.TransferFrom(env, c.Address, env.Caller(), c.Address, cost); err != nil {
		return nil, &PaymentError{Token: c.token.Name(), Err: err}
	}

	endHeight := env.BlockNumber() + PollPeriod
	poll := deployPoll(env, c.Address, endHeight)

	created := &PollCreated{
		Creator:   c.Address,
		Poll:      poll.Address,
		Proposal:  proposal,
		EndHeight: endHeight,
		Quorum:    Quorum,
		Threshold: Threshold,
	}
	log, err := created.Log()
	if err != nil {
		return nil, err
	}
	env.Emit(log)

	return created, nil
}
