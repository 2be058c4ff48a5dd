package main

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/polling/core"
	"github.com/axiomesh/polling/ledger"
	"github.com/axiomesh/polling/repo"
	"github.com/axiomesh/polling/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

var fromFlag = &cli.StringFlag{
	Name:     "from",
	Usage:    "Account sending the transaction",
	Required: true,
}

// node is the local ledger opened from the repo.
type node struct {
	repo   *repo.Repo
	ledger *ledger.Ledger
	close  func() error
}

func openNode(ctx *cli.Context) (*node, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	r, err := repo.Load(p)
	if err != nil {
		return nil, err
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	db, err := leveldb.New(r.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &node{
		repo:   r,
		ledger: ledger.New(db, logger),
		close:  db.Close,
	}, nil
}

// governance binds the token and poll creator recorded in the config.
func (n *node) governance(env core.Env) (*token.ERC20, *core.PollCreator, error) {
	tokenAddr, creatorAddr, err := n.repo.Config.Deployed()
	if err != nil {
		return nil, nil, err
	}
	tok, err := token.Load(env, tokenAddr)
	if err != nil {
		return nil, nil, err
	}
	creator, err := core.LoadPollCreator(env, creatorAddr, tok)
	if err != nil {
		return nil, nil, err
	}
	return tok, creator, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func addressFlag(ctx *cli.Context, name string) (common.Address, error) {
	addr, err := parseAddress(ctx.String(name))
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func amountFlag(ctx *cli.Context, name string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(ctx.String(name), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("--%s: invalid amount %q", name, ctx.String(name))
	}
	return amount, nil
}

// parseProposal accepts a hex reference of at most 32 bytes, anything else
// is hashed as proposal text.
func parseProposal(s string) common.Hash {
	if strings.HasPrefix(s, "0x") {
		if data, err := hexutil.Decode(s); err == nil && len(data) <= common.HashLength {
			return common.BytesToHash(data)
		}
	}
	return crypto.Keccak256Hash([]byte(s))
}

func proposalFlag(ctx *cli.Context) (common.Hash, error) {
	if file := ctx.String("proposal-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return common.Hash{}, err
		}
		return crypto.Keccak256Hash(data), nil
	}
	if s := ctx.String("proposal"); s != "" {
		return parseProposal(s), nil
	}
	return common.Hash{}, fmt.Errorf("one of --proposal or --proposal-file is required")
}
