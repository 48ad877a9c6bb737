package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"contentchain/storage"
)

// Manager layers a journaled write set over a storage.Database. Reads see
// uncommitted writes, snapshots can be reverted, and Commit flushes the write
// set to the backend in one batch when the backend supports it.
type Manager struct {
	db      storage.Database
	dirty   map[string]entry
	journal []change
}

type entry struct {
	value   []byte
	deleted bool
}

type change struct {
	key     string
	prev    entry
	existed bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	if db == nil {
		db = storage.NewMemDB()
	}
	return &Manager{db: db, dirty: make(map[string]entry)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	if e, ok := m.dirty[string(hashed)]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) set(hashed []byte, e entry) {
	key := string(hashed)
	prev, existed := m.dirty[key]
	m.journal = append(m.journal, change{key: key, prev: prev, existed: existed})
	m.dirty[key] = e
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the backend.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.set(kvKey(key), entry{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key from state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.set(kvKey(key), entry{deleted: true})
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}

// Snapshot returns an identifier for the current write set.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		c := m.journal[i]
		if c.existed {
			m.dirty[c.key] = c.prev
		} else {
			delete(m.dirty, c.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Pending reports the number of keys waiting to be committed.
func (m *Manager) Pending() int {
	return len(m.dirty)
}

// Commit flushes the write set to the backend and clears the journal.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	puts := make(map[string][]byte, len(m.dirty))
	var deletes []string
	for key, e := range m.dirty {
		if e.deleted {
			deletes = append(deletes, key)
			continue
		}
		puts[key] = e.value
	}
	if batcher, ok := m.db.(storage.Batcher); ok {
		if err := batcher.WriteBatch(puts, deletes); err != nil {
			return fmt.Errorf("state: commit batch: %w", err)
		}
	} else {
		for key, value := range puts {
			if err := m.db.Put([]byte(key), value); err != nil {
				return fmt.Errorf("state: commit put: %w", err)
			}
		}
		for _, key := range deletes {
			if err := m.db.Delete([]byte(key)); err != nil {
				return fmt.Errorf("state: commit delete: %w", err)
			}
		}
	}
	m.dirty = make(map[string]entry)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.dirty = make(map[string]entry)
	m.journal = m.journal[:0]
}
