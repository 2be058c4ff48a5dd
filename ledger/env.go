package ledger

import (
	"sort"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/polling/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var _ core.Env = (*txEnv)(nil)

// txEnv buffers the writes of one call on top of the committed state.
type txEnv struct {
	db       storage.Storage
	caller   common.Address
	number   uint64
	readOnly bool

	dirty   map[string][]byte
	deleted map[string]struct{}
	logs    []*types.Log

	// first write attempted by a read only call
	err error
}

func newTxEnv(db storage.Storage, caller common.Address, number uint64, readOnly bool) *txEnv {
	return &txEnv{
		db:       db,
		caller:   caller,
		number:   number,
		readOnly: readOnly,
		dirty:    make(map[string][]byte),
		deleted:  make(map[string]struct{}),
	}
}

func (e *txEnv) Caller() common.Address {
	return e.caller
}

func (e *txEnv) BlockNumber() uint64 {
	return e.number
}

func (e *txEnv) Get(key []byte) []byte {
	k := string(key)
	if _, ok := e.deleted[k]; ok {
		return nil
	}
	if v, ok := e.dirty[k]; ok {
		return v
	}
	return e.db.Get(key)
}

func (e *txEnv) Has(key []byte) bool {
	k := string(key)
	if _, ok := e.deleted[k]; ok {
		return false
	}
	if _, ok := e.dirty[k]; ok {
		return true
	}
	return e.db.Has(key)
}

func (e *txEnv) Put(key, value []byte) {
	if e.checkWritable() {
		k := string(key)
		delete(e.deleted, k)
		e.dirty[k] = append(make([]byte, 0, len(value)), value...)
	}
}

func (e *txEnv) Delete(key []byte) {
	if e.checkWritable() {
		k := string(key)
		delete(e.dirty, k)
		e.deleted[k] = struct{}{}
	}
}

func (e *txEnv) CreateAddress(deployer common.Address) common.Address {
	key := nonceKey(deployer)
	var nonce uint64
	if data := e.Get(key); data != nil {
		nonce = decodeUint64(data)
	}
	e.Put(key, encodeUint64(nonce+1))
	return crypto.CreateAddress(deployer, nonce)
}

func (e *txEnv) Emit(log *types.Log) {
	if e.checkWritable() {
		e.logs = append(e.logs, log)
	}
}

func (e *txEnv) checkWritable() bool {
	if !e.readOnly {
		return true
	}
	if e.err == nil {
		e.err = ErrReadOnly
	}
	return false
}

// flush writes the buffered state into batch in key order.
func (e *txEnv) flush(batch storage.Batch) {
	keys := make([]string, 0, len(e.dirty)+len(e.deleted))
	for k := range e.dirty {
		keys = append(keys, k)
	}
	for k := range e.deleted {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if v, ok := e.dirty[k]; ok {
			batch.Put([]byte(k), v)
		} else {
			batch.Delete([]byte(k))
		}
	}
}
