package token

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/polling/core"
	"github.com/axiomesh/polling/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	minter  = common.HexToAddress("0xff00000000000000000000000000000000001001")
	holder  = common.HexToAddress("0x110000000000000000000000000000000000ffff")
	spender = common.HexToAddress("0x220000000000000000000000000000000000ffff")
)

func newTestToken(t *testing.T) (*ledger.Ledger, *ERC20) {
	db, err := leveldb.New(filepath.Join(t.TempDir(), "ledger"))
	require.Nil(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	l := ledger.New(db, log.New())
	var tok *ERC20
	_, err = l.Execute(minter, func(env core.Env) error {
		tok = Deploy(env, DefaultName)
		return tok.Mint(env, holder, big.NewInt(1000))
	})
	require.Nil(t, err)
	return l, tok
}

func TestDeployAndLoad(t *testing.T) {
	l, tok := newTestToken(t)

	require.Nil(t, l.Call(holder, func(env core.Env) error {
		loaded, err := Load(env, tok.Address())
		require.Nil(t, err)
		assert.Equal(t, DefaultName, loaded.Name())
		assert.Equal(t, int64(1000), loaded.TotalSupply(env).Int64())
		assert.Equal(t, int64(1000), loaded.BalanceOf(env, holder).Int64())

		_, err = Load(env, holder)
		assert.Equal(t, ErrTokenNotFound, err)
		return nil
	}))
}

func TestMintOnlyByMinter(t *testing.T) {
	l, tok := newTestToken(t)

	_, err := l.Execute(holder, func(env core.Env) error {
		return tok.Mint(env, holder, big.NewInt(1))
	})
	assert.Equal(t, ErrNotMinter, err)
}

func TestTransferFrom(t *testing.T) {
	l, tok := newTestToken(t)

	_, err := l.Execute(holder, func(env core.Env) error {
		return tok.TransferFrom(env, spender, holder, spender, big.NewInt(100))
	})
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	receipt, err := l.Execute(holder, func(env core.Env) error {
		return tok.Approve(env, spender, big.NewInt(300))
	})
	require.Nil(t, err)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, ApprovalTopic, receipt.Logs[0].Topics[0])

	receipt, err = l.Execute(spender, func(env core.Env) error {
		return tok.TransferFrom(env, spender, holder, spender, big.NewInt(200))
	})
	require.Nil(t, err)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, TransferTopic, receipt.Logs[0].Topics[0])
	assert.Equal(t, core.AddressTopic(holder), receipt.Logs[0].Topics[1])

	require.Nil(t, l.Call(holder, func(env core.Env) error {
		assert.Equal(t, int64(800), tok.BalanceOf(env, holder).Int64())
		assert.Equal(t, int64(200), tok.BalanceOf(env, spender).Int64())
		assert.Equal(t, int64(100), tok.Allowance(env, holder, spender).Int64())
		return nil
	}))
}

func TestTransferInsufficientBalance(t *testing.T) {
	l, tok := newTestToken(t)

	_, err := l.Execute(holder, func(env core.Env) error {
		if err := tok.Approve(env, spender, big.NewInt(5000)); err != nil {
			return err
		}
		return tok.TransferFrom(env, spender, holder, spender, big.NewInt(2000))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = l.Execute(holder, func(env core.Env) error {
		return tok.Transfer(env, spender, big.NewInt(-1))
	})
	assert.Equal(t, ErrInvalidAmount, err)
}
