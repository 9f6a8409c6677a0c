package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/plebbit/plebbit-tipping-v1/storage"
)

// Manager reads and writes ledger state on top of a key-value database. Writes
// are journaled in memory until Commit flushes them as a single batch, so a
// failed operation can be abandoned with Discard without touching the database.
type Manager struct {
	db storage.Database

	mu      sync.RWMutex
	pending map[string][]byte
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string][]byte)}
}

var rolePrefix = []byte("role:")

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// get returns the journaled value for key, falling back to the database. A
// missing key yields a nil slice.
func (m *Manager) get(key []byte) ([]byte, error) {
	m.mu.RLock()
	value, ok := m.pending[string(key)]
	m.mu.RUnlock()
	if ok {
		if value == nil {
			return nil, nil
		}
		return append([]byte(nil), value...), nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) put(key []byte, value []byte) {
	m.mu.Lock()
	m.pending[string(key)] = append([]byte{}, value...)
	m.mu.Unlock()
}

func (m *Manager) delete(key []byte) {
	m.mu.Lock()
	m.pending[string(key)] = nil
	m.mu.Unlock()
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(key, encoded)
	return nil
}

// Dirty reports the number of journaled writes awaiting Commit.
func (m *Manager) Dirty() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// Commit flushes every journaled write to the database in one batch.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for key, value := range m.pending {
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = make(map[string][]byte)
	return nil
}

// Discard drops every journaled write.
func (m *Manager) Discard() {
	m.mu.Lock()
	m.pending = make(map[string][]byte)
	m.mu.Unlock()
}

func (m *Manager) loadRole(role string) ([][]byte, error) {
	var members [][]byte
	if _, err := m.getRLP(roleKey(role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.loadRole(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.putRLP(roleKey(trimmed), members)
}

// RemoveRole dissociates an address from the specified role. Removing a
// missing member is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	members, err := m.loadRole(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(members) {
		return nil
	}
	if len(kept) == 0 {
		m.delete(roleKey(trimmed))
		return nil
	}
	return m.putRLP(roleKey(trimmed), kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	members, err := m.loadRole(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	if members == nil {
		return [][]byte{}, nil
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.loadRole(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.putRLP(kvKey(key), value)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	if out == nil {
		data, err := m.get(kvKey(key))
		return len(data) > 0, err
	}
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return false, fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	return m.getRLP(kvKey(key), out)
}
