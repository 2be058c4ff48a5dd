package core

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

const endHeightSlot = "endBlock"

// Poll is a handle on a deployed poll. The poll's only persisted field is
// its end height, everything else is derived when a call executes.
type Poll struct {
	Address common.Address
}

// DeployPoll deploys a poll owned by nobody that accepts votes up to and
// including endHeight.
func DeployPoll(env Env, endHeight uint64) *Poll {
	return deployPoll(env, env.Caller(), endHeight)
}

func deployPoll(env Env, deployer common.Address, endHeight uint64) *Poll {
	addr := env.CreateAddress(deployer)
	env.Put(StorageKey(addr, endHeightSlot), encodeUint64(endHeight))
	return &Poll{Address: addr}
}

func LoadPoll(env Env, addr common.Address) (*Poll, error) {
	if !env.Has(StorageKey(addr, endHeightSlot)) {
		return nil, ErrPollNotFound
	}
	return &Poll{Address: addr}, nil
}

func (p *Poll) EndHeight(env Env) (uint64, error) {
	data := env.Get(StorageKey(p.Address, endHeightSlot))
	if len(data) != 8 {
		return 0, ErrPollNotFound
	}
	return decodeUint64(data), nil
}

// Status reports the poll status at the height of env.
func (p *Poll) Status(env Env) (PollStatus, error) {
	endHeight, err := p.EndHeight(env)
	if err != nil {
		if errors.Is(err, ErrPollNotFound) {
			return Destroyed, nil
		}
		return 0, err
	}
	return StatusAt(env.BlockNumber(), endHeight), nil
}

// Vote emits a Yes or No event on behalf of the caller. Every call emits a
// new event, repeated votes by the same caller are not filtered.
func (p *Poll) Vote(env Env, direction Direction) error {
	vote := &VoteCast{
		Poll:      p.Address,
		Voter:     env.Caller(),
		Direction: direction,
	}
	log, err := vote.Log()
	if err != nil {
		return err
	}

	endHeight, err := p.EndHeight(env)
	if err != nil {
		return err
	}
	if StatusAt(env.BlockNumber(), endHeight) != Active {
		return ErrPollClosed
	}

	env.Emit(log)
	return nil
}

func (p *Poll) Yes(env Env) error {
	return p.Vote(env, Yes)
}

func (p *Poll) No(env Env) error {
	return p.Vote(env, No)
}

// Destroy removes an ended poll from state. Afterwards every call on the poll
// fails with ErrPollNotFound.
func (p *Poll) Destroy(env Env) error {
	endHeight, err := p.EndHeight(env)
	if err != nil {
		return err
	}
	if StatusAt(env.BlockNumber(), endHeight) == Active {
		return ErrPollActive
	}

	env.Delete(StorageKey(p.Address, endHeightSlot))
	return nil
}
