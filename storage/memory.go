package storage

import (
	"bytes"
	"sort"
	"sync"

	"github.com/blang/semver"

	"github.com/janelia-flyem/cardiowave/cardio"
)

func init() {
	RegisterEngine(memoryEngine{semver.MustParse("0.1.0")})
}

type memoryEngine struct {
	version semver.Version
}

func (e memoryEngine) GetName() string { return "memory" }
func (e memoryEngine) GetDescription() string { return "in-process map, lost on exit" }
func (e memoryEngine) GetSemVer() semver.Version { return e.version }
func (e memoryEngine) NewStore(cardio.StoreConfig) (Store, bool, error) {
	return NewMemoryStore(), true, nil
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, found := m.data[string(key)]
	if !found {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryStore) Keys(prefix []byte) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys [][]byte
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, []byte(k))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) String() string { return "memory store" }
