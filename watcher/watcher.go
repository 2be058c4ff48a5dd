package watcher

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/polling/core"
	"github.com/axiomesh/polling/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	LogChanMaxSize = 1000

	defaultCacheSize     = 256
	defaultRetryInterval = 5 * time.Second
	reconnectAttempts    = 5

	nextFromBlockKey = "nextFromBlock"
	pollPrefix       = "poll/"
	votesPrefix      = "votes/"
)

// Watcher follows the logs of poll creators and polls and keeps an audit
// trail of them. It never counts or weighs votes.
type Watcher struct {
	Ctx    context.Context
	cancel context.CancelFunc
	Client Client
	Logger *logrus.Logger
	DB     storage.Storage
	Config *repo.Config

	// Subscribe log
	FromBlock *big.Int
	ToBlock   *big.Int
	Addresses []common.Address
	Topics    [][]common.Hash

	LogChan chan types.Log
	LogSub  ethereum.Subscription

	mu    sync.Mutex
	polls *lru.Cache
	wg    sync.WaitGroup

	dial          func(ctx context.Context, url string) (Client, error)
	retryInterval time.Duration
}

func New(ctx context.Context, config *repo.Config, client Client) (*Watcher, error) {
	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	var fromBlock, toBlock *big.Int
	if config.Watch.FromBlock != 0 {
		fromBlock = new(big.Int).SetUint64(config.Watch.FromBlock)
	}

	if config.Watch.ToBlock != 0 {
		toBlock = new(big.Int).SetUint64(config.Watch.ToBlock)
	}

	var addresses []common.Address
	for _, addr := range config.Watch.Addresses {
		if !common.IsHexAddress(addr) {
			return nil, errors.Errorf("invalid watch address %q", addr)
		}
		addresses = append(addresses, common.HexToAddress(addr))
	}

	// only poll events unless configured otherwise
	topics := [][]common.Hash{{core.PollCreatedTopic, core.YesTopic, core.NoTopic}}
	if len(config.Watch.Topics) != 0 {
		topics = nil
		for _, topic := range config.Watch.Topics {
			var dstTopic []common.Hash
			for _, s := range topic {
				dstTopic = append(dstTopic, common.HexToHash(s))
			}
			topics = append(topics, dstTopic)
		}
	}

	cacheSize := config.Watch.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	polls, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	db, err := leveldb.New(filepath.Join(config.RepoRoot, "watcher"))
	if err != nil {
		return nil, errors.Wrap(err, "open watcher db")
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Watcher{
		Ctx:       ctx,
		cancel:    cancel,
		Client:    client,
		Logger:    logger,
		DB:        db,
		Config:    config,
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: addresses,
		Topics:    topics,
		LogChan:   make(chan types.Log, LogChanMaxSize),
		polls:     polls,

		dial:          dialEthClient,
		retryInterval: defaultRetryInterval,
	}, nil
}

func dialEthClient(ctx context.Context, url string) (Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Start subscribes before fetching history so that no log falls between the
// two, logs delivered twice are recorded once.
func (w *Watcher) Start() error {
	if err := w.subscribeLog(); err != nil {
		return errors.Wrap(err, "subscribe logs")
	}

	if err := w.fetchHistoryLog(); err != nil {
		w.LogSub.Unsubscribe()
		return errors.Wrap(err, "fetch history logs")
	}

	w.wg.Add(1)
	go w.listenEvents()

	return nil
}

func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	if w.LogSub != nil {
		w.LogSub.Unsubscribe()
	}

	return w.DB.Close()
}

func (w *Watcher) fetchHistoryLog() error {
	fromBlock := w.getNewestFromBlock()

	logs, err := w.Client.FilterLogs(w.Ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   w.ToBlock,
		Addresses: w.Addresses,
		Topics:    w.Topics,
	})
	if err != nil {
		return err
	}

	w.Logger.Debugf("fetched %d history logs from block %v", len(logs), fromBlock)

	for i := range logs {
		w.handleLog(&logs[i])
	}

	return nil
}

func (w *Watcher) subscribeLog() error {
	var err error
	w.LogSub, err = w.Client.SubscribeFilterLogs(w.Ctx, ethereum.FilterQuery{
		FromBlock: w.FromBlock,
		ToBlock:   w.ToBlock,
		Addresses: w.Addresses,
		Topics:    w.Topics,
	}, w.LogChan)

	return err
}

func (w *Watcher) listenEvents() {
	defer w.wg.Done()

	w.Logger.Info("listen events")

	for {
		select {
		case <-w.Ctx.Done():
			w.Logger.Info("context done")
			return
		case err, ok := <-w.LogSub.Err():
			if !ok || err == nil {
				w.Logger.Info("subscription closed")
				return
			}
			w.Logger.Errorf("subscription error: %s", err)
			if err := w.reconnect(); err != nil {
				w.Logger.Errorf("reconnect error: %s", err)
				return
			}
		case log := <-w.LogChan:
			w.Logger.Debugf("subscribe log: %+v", log)
			w.handleLog(&log)
		}
	}
}

func (w *Watcher) handleLog(log *types.Log) {
	if log.Removed || len(log.Topics) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch log.Topics[0] {
	case core.PollCreatedTopic:
		event, err := core.ParsePollCreated(log)
		if err != nil {
			w.Logger.Errorf("parse PollCreated error: %s", err)
			return
		}
		record := &PollRecord{
			Address:   event.Poll,
			Creator:   event.Creator,
			Proposal:  event.Proposal,
			EndHeight: event.EndHeight,
			Quorum:    event.Quorum,
			Threshold: event.Threshold,
			CreatedAt: log.BlockNumber,
		}
		added, err := w.putPoll(record)
		if err != nil {
			w.Logger.Errorf("record poll error: %s", err)
			return
		}
		if added {
			observedLogs.WithLabelValues("PollCreated").Inc()
			w.Logger.WithFields(logrus.Fields{
				"poll":       record.Address.Hex(),
				"proposal":   record.Proposal.Hex(),
				"end_height": record.EndHeight,
			}).Info("poll created")
		}
	case core.YesTopic, core.NoTopic:
		vote, err := core.ParseVoteCast(log)
		if err != nil {
			w.Logger.Errorf("parse vote error: %s", err)
			return
		}
		_, known := w.poll(vote.Poll)
		record := &VoteRecord{
			Poll:        vote.Poll,
			Voter:       vote.Voter,
			Direction:   vote.Direction,
			BlockNumber: log.BlockNumber,
			TxHash:      log.TxHash,
			LogIndex:    log.Index,
			UnknownPoll: !known,
		}
		added, err := w.appendVote(record)
		if err != nil {
			w.Logger.Errorf("record vote error: %s", err)
			return
		}
		if added {
			observedLogs.WithLabelValues(vote.Direction.String()).Inc()
			if !known {
				w.Logger.Warnf("vote for unknown poll %s", vote.Poll.Hex())
			}
		}
	default:
		w.Logger.Debugf("ignore log with topic %s", log.Topics[0].Hex())
		return
	}

	w.advanceCursor(log.BlockNumber)
}

func (w *Watcher) putPoll(record *PollRecord) (bool, error) {
	key := []byte(pollPrefix + record.Address.Hex())
	if w.DB.Has(key) {
		return false, nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	w.DB.Put(key, data)
	w.polls.Add(record.Address, record)

	return true, nil
}

func (w *Watcher) appendVote(record *VoteRecord) (bool, error) {
	key := voteKey(record.Poll, record.BlockNumber, record.LogIndex)
	if w.DB.Has(key) {
		return false, nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	w.DB.Put(key, data)

	return true, nil
}

// votes of a poll sort by block, then by position in the block
func voteKey(poll common.Address, number uint64, index uint) []byte {
	return []byte(fmt.Sprintf("%s%020d/%010d", votesPollPrefix(poll), number, index))
}

func votesPollPrefix(poll common.Address) string {
	return votesPrefix + poll.Hex() + "/"
}

// advanceCursor remembers the block of the latest handled log. The block is
// fetched again after a restart since it may hold unhandled logs.
func (w *Watcher) advanceCursor(number uint64) {
	if number <= w.cursor() {
		return
	}

	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, number)
	w.DB.Put([]byte(nextFromBlockKey), data)
	cursorGauge.Set(float64(number))
}

func (w *Watcher) cursor() uint64 {
	data := w.DB.Get([]byte(nextFromBlockKey))
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (w *Watcher) getNewestFromBlock() *big.Int {
	nextFromBlock := w.cursor()
	if nextFromBlock != 0 && (w.FromBlock == nil || nextFromBlock > w.FromBlock.Uint64()) {
		w.FromBlock = new(big.Int).SetUint64(nextFromBlock)
	}

	return w.FromBlock
}

func (w *Watcher) poll(addr common.Address) (*PollRecord, bool) {
	if v, ok := w.polls.Get(addr); ok {
		return v.(*PollRecord), true
	}

	data := w.DB.Get([]byte(pollPrefix + addr.Hex()))
	if data == nil {
		return nil, false
	}
	record := &PollRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		w.Logger.Errorf("unmarshal poll record error: %s", err)
		return nil, false
	}
	w.polls.Add(addr, record)

	return record, true
}

func (w *Watcher) votes(addr common.Address) ([]*VoteRecord, error) {
	var votes []*VoteRecord
	it := w.DB.Prefix([]byte(votesPollPrefix(addr)))
	for it.Next() {
		record := &VoteRecord{}
		if err := json.Unmarshal(it.Value(), record); err != nil {
			return nil, errors.Wrapf(err, "unmarshal vote %s", it.Key())
		}
		votes = append(votes, record)
	}
	return votes, nil
}

// Poll returns the recorded creation of a poll.
func (w *Watcher) Poll(addr common.Address) (*PollRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.poll(addr)
}

// Votes returns the recorded vote signals of a poll in chain order.
func (w *Watcher) Votes(addr common.Address) ([]*VoteRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.votes(addr)
}

// Cursor returns the block the watcher resumes from.
func (w *Watcher) Cursor() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cursor()
}

func (w *Watcher) reconnect() error {
	if w.Config.DialUrl == "" {
		return errors.New("no dial url to reconnect to")
	}

	w.LogSub.Unsubscribe()

	var client Client
	var err error

	action := func(attempt uint) error {
		client, err = w.dial(w.Ctx, w.Config.DialUrl)
		if err != nil {
			w.Logger.Warnf("dial %s attempt %d: %s", w.Config.DialUrl, attempt, err)
			return err
		}

		return nil
	}

	if err = retry.Retry(action, strategy.Limit(reconnectAttempts), strategy.Backoff(backoff.Fibonacci(w.retryInterval))); err != nil {
		return err
	}

	w.Client = client

	if err := w.subscribeLog(); err != nil {
		return err
	}

	// catch up with logs emitted while disconnected
	return w.fetchHistoryLog()
}
