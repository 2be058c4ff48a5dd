package main

import (
	"errors"
	"fmt"

	"github.com/axiomesh/polling/core"
	"github.com/urfave/cli/v2"
)

var pollFlag = &cli.StringFlag{
	Name:     "poll",
	Usage:    "Poll address",
	Required: true,
}

var pollCMD = &cli.Command{
	Name:  "poll",
	Usage: "The poll commands",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Pay the creation cost and open a poll for a proposal",
			Flags: []cli.Flag{
				fromFlag,
				&cli.StringFlag{Name: "proposal", Usage: "Proposal reference, a 0x prefixed hash or text to hash"},
				&cli.StringFlag{Name: "proposal-file", Usage: "File whose hash is the proposal reference"},
			},
			Action: pollCreate,
		},
		{
			Name:  "vote",
			Usage: "Vote yes or no on an active poll",
			Flags: []cli.Flag{
				fromFlag,
				pollFlag,
				&cli.StringFlag{Name: "direction", Usage: "yes or no", Required: true},
			},
			Action: pollVote,
		},
		{
			Name:   "destroy",
			Usage:  "Destroy an ended poll",
			Flags:  []cli.Flag{fromFlag, pollFlag},
			Action: pollDestroy,
		},
		{
			Name:   "status",
			Usage:  "Print the end height and status of a poll",
			Flags:  []cli.Flag{pollFlag},
			Action: pollStatus,
		},
	},
}

// createPollError adds the token's reason to a refused payment, the revert
// message alone does not tell a short allowance from a short balance.
func createPollError(err error) error {
	var paymentErr *core.PaymentError
	if errors.As(err, &paymentErr) && paymentErr.Err != nil {
		return fmt.Errorf("create poll: %w: %s", err, paymentErr.Err)
	}
	return fmt.Errorf("create poll: %w", err)
}

func pollCreate(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	from, err := addressFlag(ctx, "from")
	if err != nil {
		return err
	}
	proposal, err := proposalFlag(ctx)
	if err != nil {
		return err
	}

	var created *core.PollCreated
	receipt, err := n.ledger.Execute(from, func(env core.Env) error {
		_, creator, err := n.governance(env)
		if err != nil {
			return err
		}
		created, err = creator.CreatePoll(env, proposal)
		return err
	})
	if err != nil {
		return createPollError(err)
	}

	fmt.Printf("block %d: poll %s for proposal %s ends at %d (quorum %d%%, threshold %d%%)\n",
		receipt.BlockNumber, created.Poll.Hex(), created.Proposal.Hex(), created.EndHeight, created.Quorum, created.Threshold)
	return nil
}

func pollVote(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	from, err := addressFlag(ctx, "from")
	if err != nil {
		return err
	}
	addr, err := addressFlag(ctx, "poll")
	if err != nil {
		return err
	}
	direction, err := core.ParseDirection(ctx.String("direction"))
	if err != nil {
		return err
	}

	receipt, err := n.ledger.Execute(from, func(env core.Env) error {
		poll, err := core.LoadPoll(env, addr)
		if err != nil {
			return err
		}
		return poll.Vote(env, direction)
	})
	if err != nil {
		return fmt.Errorf("vote: %w", err)
	}

	fmt.Printf("block %d: %s voted %s on %s\n", receipt.BlockNumber, from.Hex(), direction, addr.Hex())
	return nil
}

func pollDestroy(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	from, err := addressFlag(ctx, "from")
	if err != nil {
		return err
	}
	addr, err := addressFlag(ctx, "poll")
	if err != nil {
		return err
	}

	receipt, err := n.ledger.Execute(from, func(env core.Env) error {
		poll, err := core.LoadPoll(env, addr)
		if err != nil {
			return err
		}
		return poll.Destroy(env)
	})
	if err != nil {
		return fmt.Errorf("destroy: %w", err)
	}

	fmt.Printf("block %d: poll %s destroyed\n", receipt.BlockNumber, addr.Hex())
	return nil
}

func pollStatus(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	addr, err := addressFlag(ctx, "poll")
	if err != nil {
		return err
	}

	return n.ledger.Call(addr, func(env core.Env) error {
		poll := &core.Poll{Address: addr}
		status, err := poll.Status(env)
		if err != nil {
			return err
		}
		if status == core.Destroyed {
			fmt.Printf("poll %s: %s\n", addr.Hex(), status)
			return nil
		}
		endHeight, err := poll.EndHeight(env)
		if err != nil {
			return err
		}
		fmt.Printf("poll %s: %s at height %d, end height %d\n", addr.Hex(), status, env.BlockNumber(), endHeight)
		return nil
	})
}
