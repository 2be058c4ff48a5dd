package ledger

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/polling/core"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x110000000000000000000000000000000000ffff")
	bob   = common.HexToAddress("0x220000000000000000000000000000000000ffff")
)

func newTestDB(t *testing.T, dir string) storage.Storage {
	db, err := leveldb.New(filepath.Join(dir, "ledger"))
	require.Nil(t, err)
	return db
}

func newTestLedger(t *testing.T) *Ledger {
	db := newTestDB(t, t.TempDir())
	t.Cleanup(func() {
		db.Close()
	})
	return New(db, log.New())
}

func TestExecuteCommit(t *testing.T) {
	l := newTestLedger(t)

	var poll *core.Poll
	receipt, err := l.Execute(alice, func(env core.Env) error {
		assert.Equal(t, uint64(1), env.BlockNumber())
		assert.Equal(t, alice, env.Caller())
		poll = core.DeployPoll(env, 10)
		return poll.Yes(env)
	})
	require.Nil(t, err)
	assert.Equal(t, uint64(1), receipt.BlockNumber)
	assert.Equal(t, uint64(1), l.Height())
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, uint64(1), receipt.Logs[0].BlockNumber)
	assert.Equal(t, receipt.TxHash, receipt.Logs[0].TxHash)

	err = l.Call(bob, func(env core.Env) error {
		endHeight, err := poll.EndHeight(env)
		assert.Equal(t, uint64(10), endHeight)
		return err
	})
	assert.Nil(t, err)
}

func TestExecuteRevert(t *testing.T) {
	l := newTestLedger(t)
	failure := errors.New("boom")

	var addr common.Address
	_, err := l.Execute(alice, func(env core.Env) error {
		poll := core.DeployPoll(env, 10)
		addr = poll.Address
		require.Nil(t, poll.Yes(env))
		return failure
	})
	assert.Equal(t, failure, err)
	assert.Equal(t, uint64(0), l.Height())

	err = l.Call(alice, func(env core.Env) error {
		_, err := core.LoadPoll(env, addr)
		return err
	})
	assert.Equal(t, core.ErrPollNotFound, err)

	logs, err := l.FilterLogs(context.Background(), ethereum.FilterQuery{})
	require.Nil(t, err)
	assert.Empty(t, logs)

	// the reverted deployment did not consume the nonce
	_, err = l.Execute(alice, func(env core.Env) error {
		assert.Equal(t, addr, core.DeployPoll(env, 10).Address)
		return nil
	})
	assert.Nil(t, err)
}

func TestExecutePanicReleasesLock(t *testing.T) {
	l := newTestLedger(t)

	assert.Panics(t, func() {
		l.Execute(alice, func(env core.Env) error {
			core.DeployPoll(env, 10)
			panic("boom")
		})
	})
	assert.Equal(t, uint64(0), l.Height())

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Mine(1)
		_, err := l.Execute(alice, func(env core.Env) error {
			return nil
		})
		assert.Nil(t, err)
		assert.Nil(t, l.Call(bob, func(env core.Env) error {
			return nil
		}))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ledger still locked after a panicking transaction")
	}
	assert.Equal(t, uint64(2), l.Height())
}

func TestCallIsReadOnly(t *testing.T) {
	l := newTestLedger(t)

	err := l.Call(alice, func(env core.Env) error {
		core.DeployPoll(env, 10)
		return nil
	})
	assert.Equal(t, ErrReadOnly, err)
	assert.Equal(t, uint64(0), l.Height())
}

func TestMineAndReopen(t *testing.T) {
	dir := t.TempDir()
	db := newTestDB(t, dir)
	l := New(db, log.New())

	assert.Equal(t, uint64(5), l.Mine(5))
	_, err := l.Execute(alice, func(env core.Env) error {
		assert.Equal(t, uint64(6), env.BlockNumber())
		return nil
	})
	require.Nil(t, err)
	require.Nil(t, db.Close())

	db = newTestDB(t, dir)
	defer db.Close()
	l = New(db, log.New())
	assert.Equal(t, uint64(6), l.Height())
}

func TestFilterLogs(t *testing.T) {
	l := newTestLedger(t)

	var first, second *core.Poll
	_, err := l.Execute(alice, func(env core.Env) error {
		first = core.DeployPoll(env, 100)
		second = core.DeployPoll(env, 100)
		return nil
	})
	require.Nil(t, err)

	vote := func(from common.Address, poll *core.Poll, d core.Direction) {
		_, err := l.Execute(from, func(env core.Env) error {
			return poll.Vote(env, d)
		})
		require.Nil(t, err)
	}
	vote(alice, first, core.Yes) // block 2
	vote(bob, first, core.No)    // block 3
	vote(bob, second, core.Yes)  // block 4
	l.Mine(3)                    // blocks 5-7
	vote(alice, second, core.No) // block 8

	ctx := context.Background()
	logs, err := l.FilterLogs(ctx, ethereum.FilterQuery{})
	require.Nil(t, err)
	assert.Len(t, logs, 4)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{Addresses: []common.Address{second.Address}})
	require.Nil(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, uint64(4), logs[0].BlockNumber)
	assert.Equal(t, uint64(8), logs[1].BlockNumber)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{Topics: [][]common.Hash{{core.YesTopic}, {core.AddressTopic(bob)}}})
	require.Nil(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, second.Address, logs[0].Address)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{Topics: [][]common.Hash{{core.YesTopic, core.NoTopic}, {}}})
	require.Nil(t, err)
	assert.Len(t, logs, 4)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{FromBlock: big.NewInt(3), ToBlock: big.NewInt(4)})
	require.Nil(t, err)
	assert.Len(t, logs, 2)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{FromBlock: big.NewInt(9)})
	require.Nil(t, err)
	assert.Empty(t, logs)
}

func TestFilterLogsSkipsEmptyBlocks(t *testing.T) {
	l := newTestLedger(t)

	var poll *core.Poll
	_, err := l.Execute(alice, func(env core.Env) error {
		poll = core.DeployPoll(env, 1000000)
		return poll.Yes(env)
	})
	require.Nil(t, err)
	l.Mine(300000)
	_, err = l.Execute(bob, func(env core.Env) error {
		return poll.No(env)
	})
	require.Nil(t, err)
	require.Equal(t, uint64(300002), l.Height())

	ctx := context.Background()
	logs, err := l.FilterLogs(ctx, ethereum.FilterQuery{})
	require.Nil(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, uint64(1), logs[0].BlockNumber)
	assert.Equal(t, uint64(300002), logs[1].BlockNumber)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{FromBlock: big.NewInt(2), ToBlock: big.NewInt(300001)})
	require.Nil(t, err)
	assert.Empty(t, logs)

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{FromBlock: big.NewInt(1), ToBlock: big.NewInt(1)})
	require.Nil(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, core.YesTopic, logs[0].Topics[0])

	logs, err = l.FilterLogs(ctx, ethereum.FilterQuery{FromBlock: big.NewInt(300002)})
	require.Nil(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, core.NoTopic, logs[0].Topics[0])
}

func TestSubscribeFilterLogs(t *testing.T) {
	l := newTestLedger(t)

	var poll *core.Poll
	_, err := l.Execute(alice, func(env core.Env) error {
		poll = core.DeployPoll(env, 100)
		return nil
	})
	require.Nil(t, err)

	ch := make(chan types.Log, 10)
	sub, err := l.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{
		Topics: [][]common.Hash{{core.NoTopic}},
	}, ch)
	require.Nil(t, err)
	defer sub.Unsubscribe()

	for _, d := range []core.Direction{core.Yes, core.No} {
		_, err := l.Execute(bob, func(env core.Env) error {
			return poll.Vote(env, d)
		})
		require.Nil(t, err)
	}

	select {
	case log := <-ch:
		vote, err := core.ParseVoteCast(&log)
		require.Nil(t, err)
		assert.Equal(t, core.No, vote.Direction)
		assert.Equal(t, bob, vote.Voter)
		assert.Equal(t, uint64(3), log.BlockNumber)
	case <-time.After(5 * time.Second):
		t.Fatal("no log received")
	}

	select {
	case log := <-ch:
		t.Fatalf("unexpected log: %+v", log)
	case <-time.After(100 * time.Millisecond):
	}
}
