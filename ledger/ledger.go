package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/polling/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const (
	headKey     = "head"
	noncePrefix = "nonce/"
	logsPrefix  = "logs/"
)

var ErrReadOnly = errors.New("state write in read-only call")

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockHash   common.Hash
	BlockNumber uint64
	From        common.Address
	Logs        []*types.Log
}

// Ledger executes calls one at a time, each in its own block. A call that
// returns an error leaves neither state changes, logs nor a block behind.
type Ledger struct {
	mu     sync.Mutex
	db     storage.Storage
	height *atomic.Uint64
	logger logrus.FieldLogger

	// held while publishing logs, keeps subscribers in block order
	feedMu  sync.Mutex
	logFeed event.Feed
}

func New(db storage.Storage, logger logrus.FieldLogger) *Ledger {
	var head uint64
	if data := db.Get([]byte(headKey)); data != nil {
		head = decodeUint64(data)
	}
	headHeightGauge.Set(float64(head))

	return &Ledger{
		db:     db,
		height: atomic.NewUint64(head),
		logger: logger,
	}
}

// Height returns the number of the latest mined block.
func (l *Ledger) Height() uint64 {
	return l.height.Load()
}

// Mine appends n empty blocks and returns the new head.
func (l *Ledger) Mine(n uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	head := l.height.Load() + n
	l.db.Put([]byte(headKey), encodeUint64(head))
	l.height.Store(head)
	headHeightGauge.Set(float64(head))

	l.logger.WithFields(logrus.Fields{
		"blocks": n,
		"head":   head,
	}).Debug("mine empty blocks")

	return head
}

// Execute runs fn from the given account in the next block and commits the
// block if fn succeeds.
func (l *Ledger) Execute(from common.Address, fn func(env core.Env) error) (*Receipt, error) {
	receipt, err := l.execute(from, fn)
	if err != nil {
		return nil, err
	}
	defer l.feedMu.Unlock()

	executedTxCounter.Inc()
	emittedLogCounter.Add(float64(len(receipt.Logs)))
	l.logger.WithFields(logrus.Fields{
		"from":   from.Hex(),
		"number": receipt.BlockNumber,
		"tx":     receipt.TxHash.Hex(),
		"logs":   len(receipt.Logs),
	}).Debug("transaction committed")

	if len(receipt.Logs) > 0 {
		l.logFeed.Send(receipt.Logs)
	}
	return receipt, nil
}

// execute applies fn under the ledger lock. A committed block is returned
// with feedMu held, so blocks reach subscribers in order.
func (l *Ledger) execute(from common.Address, fn func(env core.Env) error) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	number := l.height.Load() + 1
	env := newTxEnv(l.db, from, number, false)
	if err := fn(env); err != nil {
		revertedTxCounter.Inc()
		l.logger.WithFields(logrus.Fields{
			"from":   from.Hex(),
			"number": number,
			"reason": err.Error(),
		}).Debug("transaction reverted")
		return nil, err
	}

	receipt := &Receipt{
		TxHash:      crypto.Keccak256Hash(from.Bytes(), encodeUint64(number)),
		BlockHash:   blockHash(number),
		BlockNumber: number,
		From:        from,
		Logs:        env.logs,
	}
	for i, log := range receipt.Logs {
		log.BlockNumber = number
		log.BlockHash = receipt.BlockHash
		log.TxHash = receipt.TxHash
		log.TxIndex = 0
		log.Index = uint(i)
	}

	if err := l.commit(env, receipt); err != nil {
		return nil, err
	}
	l.feedMu.Lock()

	return receipt, nil
}

// Call runs fn read-only against the latest mined block.
func (l *Ledger) Call(from common.Address, fn func(env core.Env) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	env := newTxEnv(l.db, from, l.height.Load(), true)
	if err := fn(env); err != nil {
		return err
	}
	return env.err
}

func (l *Ledger) commit(env *txEnv, receipt *Receipt) error {
	batch := l.db.NewBatch()
	env.flush(batch)

	if len(receipt.Logs) > 0 {
		data, err := json.Marshal(receipt.Logs)
		if err != nil {
			return errors.Wrap(err, "marshal logs")
		}
		batch.Put(logsKey(receipt.BlockNumber), data)
	}
	batch.Put([]byte(headKey), encodeUint64(receipt.BlockNumber))
	batch.Commit()

	l.height.Store(receipt.BlockNumber)
	headHeightGauge.Set(float64(receipt.BlockNumber))
	return nil
}

func decodeLogs(data []byte) ([]*types.Log, error) {
	var logs []*types.Log
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func blockHash(number uint64) common.Hash {
	return crypto.Keccak256Hash([]byte("block"), encodeUint64(number))
}

func nonceKey(addr common.Address) []byte {
	return []byte(noncePrefix + addr.Hex())
}

func logsKey(number uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", logsPrefix, number))
}

func encodeUint64(v uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	return data
}

func decodeUint64(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}
