package watcher

import (
	"github.com/axiomesh/polling/core"
	"github.com/ethereum/go-ethereum/common"
)

// PollRecord is what the watcher learned about a poll from its PollCreated log.
type PollRecord struct {
	Address   common.Address `json:"address"`
	Creator   common.Address `json:"creator"`
	Proposal  common.Hash    `json:"proposal"`
	EndHeight uint64         `json:"end_height"`
	Quorum    uint64         `json:"quorum"`
	Threshold uint64         `json:"threshold"`
	CreatedAt uint64         `json:"created_at"`
}

// VoteRecord is one vote signal as it appeared on chain. Records are kept
// as emitted, repeated votes of a voter are all kept.
type VoteRecord struct {
	Poll        common.Address `json:"poll"`
	Voter       common.Address `json:"voter"`
	Direction   core.Direction `json:"direction"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	LogIndex    uint           `json:"log_index"`

	// UnknownPoll marks votes for polls whose creation the watcher never saw
	UnknownPoll bool `json:"unknown_poll"`
}
