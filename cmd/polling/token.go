package main

import (
	"fmt"
	"math/big"

	"github.com/axiomesh/polling/core"
	"github.com/urfave/cli/v2"
)

var amountFlagDef = &cli.StringFlag{
	Name:     "amount",
	Usage:    "Amount of tokens",
	Required: true,
}

var tokenCMD = &cli.Command{
	Name:  "token",
	Usage: "The fee token commands",
	Subcommands: []*cli.Command{
		{
			Name:  "mint",
			Usage: "Mint tokens, only the account that ran `chain init` may mint",
			Flags: []cli.Flag{
				fromFlag,
				amountFlagDef,
				&cli.StringFlag{Name: "to", Usage: "Receiver", Required: true},
			},
			Action: tokenMint,
		},
		{
			Name:  "approve",
			Usage: "Allow a spender, the poll creator by default, to transfer tokens",
			Flags: []cli.Flag{
				fromFlag,
				amountFlagDef,
				&cli.StringFlag{Name: "spender", Usage: "Spender, defaults to the poll creator"},
			},
			Action: tokenApprove,
		},
		{
			Name:  "balance",
			Usage: "Print the balance of an account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "address", Usage: "Account", Required: true},
			},
			Action: tokenBalance,
		},
	},
}

func tokenMint(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	from, err := addressFlag(ctx, "from")
	if err != nil {
		return err
	}
	to, err := addressFlag(ctx, "to")
	if err != nil {
		return err
	}
	amount, err := amountFlag(ctx, "amount")
	if err != nil {
		return err
	}

	receipt, err := n.ledger.Execute(from, func(env core.Env) error {
		tok, _, err := n.governance(env)
		if err != nil {
			return err
		}
		return tok.Mint(env, to, amount)
	})
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}

	fmt.Printf("block %d: minted %s to %s\n", receipt.BlockNumber, amount, to.Hex())
	return nil
}

func tokenApprove(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	from, err := addressFlag(ctx, "from")
	if err != nil {
		return err
	}
	amount, err := amountFlag(ctx, "amount")
	if err != nil {
		return err
	}

	var spenderHex string
	receipt, err := n.ledger.Execute(from, func(env core.Env) error {
		tok, creator, err := n.governance(env)
		if err != nil {
			return err
		}
		spender := creator.Address
		if ctx.IsSet("spender") {
			if spender, err = addressFlag(ctx, "spender"); err != nil {
				return err
			}
		}
		spenderHex = spender.Hex()
		return tok.Approve(env, spender, amount)
	})
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	fmt.Printf("block %d: %s may spend %s of %s\n", receipt.BlockNumber, spenderHex, amount, from.Hex())
	return nil
}

func tokenBalance(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	addr, err := addressFlag(ctx, "address")
	if err != nil {
		return err
	}

	var balance *big.Int
	err = n.ledger.Call(addr, func(env core.Env) error {
		tok, _, err := n.governance(env)
		if err != nil {
			return err
		}
		balance = tok.BalanceOf(env, addr)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println(balance)
	return nil
}
