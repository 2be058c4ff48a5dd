package main

import (
	"fmt"
	"math/big"

	"github.com/axiomesh/polling/core"
	"github.com/axiomesh/polling/token"
	"github.com/urfave/cli/v2"
)

var chainCMD = &cli.Command{
	Name:  "chain",
	Usage: "The local ledger commands",
	Subcommands: []*cli.Command{
		{
			Name:   "init",
			Usage:  "Deploy the fee token and the poll creator",
			Flags:  []cli.Flag{fromFlag},
			Action: chainInit,
		},
		{
			Name:   "height",
			Usage:  "Print the latest block number",
			Action: chainHeight,
		},
		{
			Name:  "mine",
			Usage: "Mine empty blocks",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:  "blocks",
					Usage: "Number of blocks to mine",
					Value: 1,
				},
			},
			Action: chainMine,
		},
	},
}

func chainInit(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	cfg := n.repo.Config
	if cfg.Governance.Creator != "" {
		return fmt.Errorf("poll creator already deployed at %s", cfg.Governance.Creator)
	}
	from, err := addressFlag(ctx, "from")
	if err != nil {
		return err
	}

	var tok *token.ERC20
	var creator *core.PollCreator
	receipt, err := n.ledger.Execute(from, func(env core.Env) error {
		tok = token.Deploy(env, cfg.Governance.TokenName)
		creator, err = core.DeployPollCreator(env, tok, new(big.Int).SetUint64(cfg.Governance.CreationCost))
		return err
	})
	if err != nil {
		return fmt.Errorf("deploy governance: %w", err)
	}

	cfg.Governance.Token = tok.Address().Hex()
	cfg.Governance.Creator = creator.Address.Hex()
	if err := n.repo.Flush(); err != nil {
		return err
	}

	fmt.Printf("block %d: %s token at %s, poll creator at %s (cost %d)\n",
		receipt.BlockNumber, tok.Name(), cfg.Governance.Token, cfg.Governance.Creator, cfg.Governance.CreationCost)
	return nil
}

func chainHeight(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	fmt.Println(n.ledger.Height())
	return nil
}

func chainMine(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	fmt.Println(n.ledger.Mine(ctx.Uint64("blocks")))
	return nil
}
