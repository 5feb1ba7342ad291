/*
	Package storage persists simulation snapshots in pluggable key-value stores and
	publishes activity to kafka.

	Store engines register themselves by name at init time.  The "memory" engine is always
	available; importing storage/badger adds the "badger" engine.
*/
package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blang/semver"

	"github.com/janelia-flyem/cardiowave/cardio"
)

// Store is an ordered key-value store.  Get returns a nil value and no error for a
// missing key.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	// Keys returns all keys beginning with prefix in ascending order.
	Keys(prefix []byte) ([][]byte, error)

	Close() error
	String() string
}

// Engine creates stores of one kind.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version

	// NewStore returns a store for the configuration and true if it was newly created.
	NewStore(config cardio.StoreConfig) (Store, bool, error)
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// RegisterEngine makes a store engine available under its name.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[e.GetName()] = e
}

// GetEngine returns the engine registered under name or nil.
func GetEngine(name string) Engine {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	return engines[name]
}

// EnginesAvailable returns a description of each registered engine.
func EnginesAvailable() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	var descs []string
	for _, e := range engines {
		descs = append(descs, fmt.Sprintf("%s [%s]: %s", e.GetName(), e.GetSemVer(), e.GetDescription()))
	}
	sort.Strings(descs)
	return descs
}

// NewStore opens a store using the engine named in the configuration.
func NewStore(config cardio.StoreConfig) (Store, error) {
	e := GetEngine(config.Engine)
	if e == nil {
		return nil, fmt.Errorf("no store engine %q available", config.Engine)
	}
	store, created, err := e.NewStore(config)
	if err != nil {
		return nil, err
	}
	if created {
		cardio.Infof("Created new %s\n", store)
	} else {
		cardio.Infof("Opened %s\n", store)
	}
	return store, nil
}
