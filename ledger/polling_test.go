package ledger_test

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/polling/core"
	"github.com/axiomesh/polling/ledger"
	"github.com/axiomesh/polling/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const creationCost = 500

var (
	owner    = common.HexToAddress("0xff00000000000000000000000000000000001001")
	proposer = common.HexToAddress("0x110000000000000000000000000000000000ffff")
	proposal = common.HexToHash("0x1230000000000000000000000000000000000000")
)

type fixture struct {
	ledger  *ledger.Ledger
	token   *token.ERC20
	creator *core.PollCreator
}

func setUp(t *testing.T) *fixture {
	db, err := leveldb.New(filepath.Join(t.TempDir(), "ledger"))
	require.Nil(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	f := &fixture{ledger: ledger.New(db, log.New())}
	_, err = f.ledger.Execute(owner, func(env core.Env) error {
		f.token = token.Deploy(env, token.DefaultName)
		f.creator, err = core.DeployPollCreator(env, f.token, big.NewInt(creationCost))
		if err != nil {
			return err
		}
		return f.token.Mint(env, proposer, big.NewInt(10*creationCost))
	})
	require.Nil(t, err)
	return f
}

func (f *fixture) balance(t *testing.T, addr common.Address) int64 {
	var balance *big.Int
	require.Nil(t, f.ledger.Call(addr, func(env core.Env) error {
		balance = f.token.BalanceOf(env, addr)
		return nil
	}))
	return balance.Int64()
}

func TestPollCreatorState(t *testing.T) {
	f := setUp(t)

	err := f.ledger.Call(proposer, func(env core.Env) error {
		assert.Equal(t, f.token.Address(), f.creator.Token(env))
		assert.Equal(t, int64(creationCost), f.creator.PollCreationCost(env).Int64())
		return nil
	})
	assert.Nil(t, err)
}

func TestCreatePollWithoutApproval(t *testing.T) {
	f := setUp(t)
	start := f.ledger.Height()

	_, err := f.ledger.Execute(proposer, func(env core.Env) error {
		_, err := f.creator.CreatePoll(env, proposal)
		return err
	})
	assert.True(t, errors.Is(err, core.ErrPaymentFailed))
	assert.True(t, errors.Is(err, token.ErrInsufficientAllowance))
	assert.EqualError(t, err, "LivepeerToken transferFrom failed")

	assert.Equal(t, start, f.ledger.Height())
	assert.Equal(t, int64(10*creationCost), f.balance(t, proposer))
}

func TestCreatePollPartialPaymentRollsBack(t *testing.T) {
	f := setUp(t)

	// approval and a failing creation in one transaction revert together
	_, err := f.ledger.Execute(proposer, func(env core.Env) error {
		if err := f.token.Approve(env, f.creator.Address, big.NewInt(creationCost-1)); err != nil {
			return err
		}
		_, err := f.creator.CreatePoll(env, proposal)
		return err
	})
	assert.ErrorIs(t, err, core.ErrPaymentFailed)

	require.Nil(t, f.ledger.Call(proposer, func(env core.Env) error {
		assert.Equal(t, 0, f.token.Allowance(env, proposer, f.creator.Address).Sign())
		return nil
	}))
}

func TestCreatePoll(t *testing.T) {
	f := setUp(t)

	_, err := f.ledger.Execute(proposer, func(env core.Env) error {
		return f.token.Approve(env, f.creator.Address, big.NewInt(creationCost))
	})
	require.Nil(t, err)

	start := f.ledger.Height()
	var created *core.PollCreated
	receipt, err := f.ledger.Execute(proposer, func(env core.Env) error {
		created, err = f.creator.CreatePoll(env, proposal)
		return err
	})
	require.Nil(t, err)

	// the creation transaction itself mines one block
	assert.Equal(t, start+core.PollPeriod+1, created.EndHeight)
	assert.Equal(t, int64(9*creationCost), f.balance(t, proposer))
	assert.Equal(t, int64(creationCost), f.balance(t, f.creator.Address))

	var events []*core.PollCreated
	for _, l := range receipt.Logs {
		if event, err := core.ParsePollCreated(l); err == nil {
			events = append(events, event)
		}
	}
	require.Len(t, events, 1)
	assert.Equal(t, proposal, events[0].Proposal)
	assert.Equal(t, start+core.PollPeriod+1, events[0].EndHeight)
	assert.Equal(t, uint64(20), events[0].Quorum)
	assert.Equal(t, uint64(50), events[0].Threshold)

	require.Nil(t, f.ledger.Call(proposer, func(env core.Env) error {
		poll, err := core.LoadPoll(env, events[0].Poll)
		require.Nil(t, err)
		endHeight, err := poll.EndHeight(env)
		assert.Equal(t, events[0].EndHeight, endHeight)
		return err
	}))
}

func TestPollLifecycle(t *testing.T) {
	f := setUp(t)

	startBlock := f.ledger.Height()
	endBlock := startBlock + 10
	var poll *core.Poll
	_, err := f.ledger.Execute(proposer, func(env core.Env) error {
		poll = core.DeployPoll(env, endBlock)
		return nil
	})
	require.Nil(t, err)

	vote := func(d core.Direction) error {
		_, err := f.ledger.Execute(proposer, func(env core.Env) error {
			return poll.Vote(env, d)
		})
		return err
	}
	destroy := func() error {
		_, err := f.ledger.Execute(owner, func(env core.Env) error {
			return poll.Destroy(env)
		})
		return err
	}

	assert.Nil(t, vote(core.Yes))
	assert.Nil(t, vote(core.No))
	assert.Nil(t, vote(core.Yes))
	assert.EqualError(t, destroy(), "poll is active")

	f.ledger.Mine(endBlock + 1 - f.ledger.Height())
	assert.EqualError(t, vote(core.Yes), "poll is over")
	assert.EqualError(t, vote(core.No), "poll is over")

	assert.Nil(t, destroy())
	assert.Equal(t, core.ErrPollNotFound, destroy())
	assert.Equal(t, core.ErrPollNotFound, vote(core.Yes))

	require.Nil(t, f.ledger.Call(owner, func(env core.Env) error {
		status, err := poll.Status(env)
		assert.Equal(t, core.Destroyed, status)
		return err
	}))
}
