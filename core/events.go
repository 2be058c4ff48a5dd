package core

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const pollingABIJSON = `[
	{"type":"event","name":"PollCreated","anonymous":false,"inputs":[
		{"name":"poll","type":"address","indexed":true},
		{"name":"proposal","type":"bytes32","indexed":false},
		{"name":"endBlock","type":"uint256","indexed":false},
		{"name":"quorum","type":"uint256","indexed":false},
		{"name":"threshold","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Yes","anonymous":false,"inputs":[
		{"name":"voter","type":"address","indexed":true}
	]},
	{"type":"event","name":"No","anonymous":false,"inputs":[
		{"name":"voter","type":"address","indexed":true}
	]}
]`

var (
	PollingABI = MustParseABI(pollingABIJSON)

	PollCreatedTopic = PollingABI.Events["PollCreated"].ID
	YesTopic         = PollingABI.Events["Yes"].ID
	NoTopic          = PollingABI.Events["No"].ID
)

var ErrUnknownEvent = errors.New("unknown event")

// MustParseABI parses a json abi definition known at compile time.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %s", err))
	}
	return parsed
}

// PollCreated is emitted by a PollCreator for every poll it deploys.
type PollCreated struct {
	Creator   common.Address
	Poll      common.Address
	Proposal  common.Hash
	EndHeight uint64
	Quorum    uint64
	Threshold uint64
}

func (e *PollCreated) Log() (*types.Log, error) {
	ev := PollingABI.Events["PollCreated"]
	data, err := ev.Inputs.NonIndexed().Pack(
		[32]byte(e.Proposal),
		new(big.Int).SetUint64(e.EndHeight),
		new(big.Int).SetUint64(e.Quorum),
		new(big.Int).SetUint64(e.Threshold),
	)
	if err != nil {
		return nil, fmt.Errorf("pack PollCreated: %w", err)
	}

	return &types.Log{
		Address: e.Creator,
		Topics:  []common.Hash{ev.ID, AddressTopic(e.Poll)},
		Data:    data,
	}, nil
}

func ParsePollCreated(log *types.Log) (*PollCreated, error) {
	if len(log.Topics) != 2 || log.Topics[0] != PollCreatedTopic {
		return nil, ErrUnknownEvent
	}

	values, err := PollingABI.Events["PollCreated"].Inputs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack PollCreated: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unpack PollCreated: got %d values", len(values))
	}

	proposal, ok := values[0].([32]byte)
	if !ok {
		return nil, errors.New("unpack PollCreated: proposal is not bytes32")
	}
	var nums [3]uint64
	for i, v := range values[1:] {
		n, ok := v.(*big.Int)
		if !ok || !n.IsUint64() {
			return nil, fmt.Errorf("unpack PollCreated: field %d is not a uint64", i+1)
		}
		nums[i] = n.Uint64()
	}

	return &PollCreated{
		Creator:   log.Address,
		Poll:      common.BytesToAddress(log.Topics[1].Bytes()),
		Proposal:  proposal,
		EndHeight: nums[0],
		Quorum:    nums[1],
		Threshold: nums[2],
	}, nil
}

// VoteCast is a Yes or No signal emitted by a poll. Weighting and counting
// are left to whoever reads the log.
type VoteCast struct {
	Poll      common.Address
	Voter     common.Address
	Direction Direction
}

func (d Direction) topic() (common.Hash, error) {
	switch d {
	case Yes:
		return YesTopic, nil
	case No:
		return NoTopic, nil
	}
	return common.Hash{}, ErrInvalidDirection
}

func (e *VoteCast) Log() (*types.Log, error) {
	topic, err := e.Direction.topic()
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: e.Poll,
		Topics:  []common.Hash{topic, AddressTopic(e.Voter)},
		Data:    []byte{},
	}, nil
}

func ParseVoteCast(log *types.Log) (*VoteCast, error) {
	if len(log.Topics) != 2 {
		return nil, ErrUnknownEvent
	}

	var direction Direction
	switch log.Topics[0] {
	case YesTopic:
		direction = Yes
	case NoTopic:
		direction = No
	default:
		return nil, ErrUnknownEvent
	}

	return &VoteCast{
		Poll:      log.Address,
		Voter:     common.BytesToAddress(log.Topics[1].Bytes()),
		Direction: direction,
	}, nil
}
