package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
)

const logChanSize = 128

var _ ethereum.LogFilterer = (*Ledger)(nil)

// FilterLogs returns the committed logs matching q. A nil FromBlock starts at
// genesis, a nil or negative ToBlock ends at the latest block.
func (l *Ledger) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if q.BlockHash != nil {
		return nil, errors.New("filtering by block hash is not supported")
	}

	head := l.height.Load()
	from := blockNumberOr(q.FromBlock, 0, head)
	if q.FromBlock != nil && q.FromBlock.Sign() > 0 && (!q.FromBlock.IsUint64() || q.FromBlock.Uint64() > head) {
		return nil, nil
	}
	to := blockNumberOr(q.ToBlock, head, head)

	// only blocks that emitted logs have a key
	it := l.db.Iterator(logsKey(from), logsKey(to+1))
	var result []types.Log
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logs, err := decodeLogs(it.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "unmarshal logs at %s", it.Key())
		}
		for _, log := range filterLogs(logs, q.Addresses, q.Topics) {
			result = append(result, *log)
		}
	}

	return result, nil
}

// SubscribeFilterLogs streams logs committed after the call that match the
// addresses and topics of q.
func (l *Ledger) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	logsCh := make(chan []*types.Log, logChanSize)
	sub := l.logFeed.Subscribe(logsCh)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case logs := <-logsCh:
				for _, log := range filterLogs(logs, q.Addresses, q.Topics) {
					select {
					case ch <- *log:
					case <-quit:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}), nil
}

func blockNumberOr(n *big.Int, def, head uint64) uint64 {
	if n == nil {
		return def
	}
	if n.Sign() < 0 || !n.IsUint64() || n.Uint64() > head {
		return head
	}
	return n.Uint64()
}

// filterLogs keeps the logs emitted by one of addresses whose topics match
// the positional topic sets, an empty set matches anything.
func filterLogs(logs []*types.Log, addresses []common.Address, topics [][]common.Hash) []*types.Log {
	var ret []*types.Log
Logs:
	for _, log := range logs {
		if len(addresses) > 0 && !includes(addresses, log.Address) {
			continue
		}
		if len(topics) > len(log.Topics) {
			continue
		}
		for i, sub := range topics {
			if len(sub) == 0 {
				continue
			}
			match := false
			for _, topic := range sub {
				if log.Topics[i] == topic {
					match = true
					break
				}
			}
			if !match {
				continue Logs
			}
		}
		ret = append(ret, log)
	}
	return ret
}

func includes(addresses []common.Address, a common.Address) bool {
	for _, addr := range addresses {
		if addr == a {
			return true
		}
	}
	return false
}
