package main

import (
	"fmt"
	"math/big"

	"github.com/axiomesh/polling/core"
	"github.com/axiomesh/polling/token"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/urfave/cli/v2"
)

var logsCMD = &cli.Command{
	Name:  "logs",
	Usage: "Print the logs of the local ledger",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "from-block", Usage: "First block, genesis by default"},
		&cli.Uint64Flag{Name: "to-block", Usage: "Last block, latest by default"},
		&cli.StringSliceFlag{Name: "address", Usage: "Only logs emitted by these contracts"},
	},
	Action: printLogs,
}

func printLogs(ctx *cli.Context) error {
	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer n.close()

	q := ethereum.FilterQuery{}
	if ctx.IsSet("from-block") {
		q.FromBlock = new(big.Int).SetUint64(ctx.Uint64("from-block"))
	}
	if ctx.IsSet("to-block") {
		q.ToBlock = new(big.Int).SetUint64(ctx.Uint64("to-block"))
	}
	for _, s := range ctx.StringSlice("address") {
		addr, err := parseAddress(s)
		if err != nil {
			return err
		}
		q.Addresses = append(q.Addresses, addr)
	}

	logs, err := n.ledger.FilterLogs(ctx.Context, q)
	if err != nil {
		return err
	}
	for i := range logs {
		fmt.Printf("block %d tx %s: %s\n", logs[i].BlockNumber, logs[i].TxHash.Hex(), describeLog(&logs[i]))
	}
	return nil
}

func describeLog(log *types.Log) string {
	if len(log.Topics) == 0 {
		return fmt.Sprintf("anonymous log of %s", log.Address.Hex())
	}

	switch log.Topics[0] {
	case core.PollCreatedTopic:
		if e, err := core.ParsePollCreated(log); err == nil {
			return fmt.Sprintf("PollCreated poll=%s proposal=%s endBlock=%d quorum=%d threshold=%d",
				e.Poll.Hex(), e.Proposal.Hex(), e.EndHeight, e.Quorum, e.Threshold)
		}
	case core.YesTopic, core.NoTopic:
		if e, err := core.ParseVoteCast(log); err == nil {
			return fmt.Sprintf("%s poll=%s voter=%s", e.Direction, e.Poll.Hex(), e.Voter.Hex())
		}
	case token.TransferTopic, token.ApprovalTopic:
		if len(log.Topics) == 3 {
			name := "Transfer"
			if log.Topics[0] == token.ApprovalTopic {
				name = "Approval"
			}
			return fmt.Sprintf("%s %s -> %s value=%s", name,
				common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
				common.BytesToAddress(log.Topics[2].Bytes()).Hex(),
				new(big.Int).SetBytes(log.Data))
		}
	}
	return fmt.Sprintf("log of %s topic=%s", log.Address.Hex(), log.Topics[0].Hex())
}
