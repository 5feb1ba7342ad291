// Package badger provides a snapshot store backed by BadgerDB.
package badger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/storage"
)

func init() {
	ver, err := semver.Make("0.2.0")
	if err != nil {
		cardio.Errorf("Unable to make semver in badger: %v\n", err)
	}
	storage.RegisterEngine(Engine{"badger", "BadgerDB", ver})
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore returns a badger store.  The passed Config must contain a "path" string
// unless "in_memory" is true.
func (e Engine) NewStore(config cardio.StoreConfig) (storage.Store, bool, error) {
	return e.newDB(config)
}

func parseConfig(config cardio.StoreConfig) (path string, inMemory bool, err error) {
	inMemory, _, err = config.GetBool("in_memory")
	if err != nil {
		return
	}
	var found bool
	path, found, err = config.GetString("path")
	if err != nil {
		return
	}
	if !found && !inMemory {
		err = fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
	}
	return
}

// newDB returns a Badger backend, creating one at path if it doesn't exist.
func (e Engine) newDB(config cardio.StoreConfig) (*BadgerDB, bool, error) {
	path, inMemory, err := parseConfig(config)
	if err != nil {
		return nil, false, err
	}

	var created bool
	if inMemory {
		created = true
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		cardio.Infof("Database not already at path (%s). Creating directory...\n", path)
		created = true
		if err := os.MkdirAll(path, 0744); err != nil {
			return nil, true, fmt.Errorf("can't make directory at %s: %v", path, err)
		}
	}

	opts, err := getOptions(path, inMemory, config.Config)
	if err != nil {
		return nil, false, err
	}

	timedLog := cardio.NewTimeLog()
	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, false, err
	}
	db := &BadgerDB{
		directory:  path,
		inMemory:   inMemory,
		config:     config,
		bdp:        bdp,
		stopSyncCh: make(chan struct{}),
	}
	if !inMemory && !opts.ReadOnly {
		db.syncWG.Add(1)
		go db.syncPeriodically(30 * time.Second)
	}
	timedLog.Infof("Opened %s", db)
	return db, created, nil
}

// --- The BadgerDB Implementation must satisfy a storage.Store interface ----

type BadgerDB struct {
	// Directory of datastore
	directory string
	inMemory  bool

	// Config at time of Open()
	config cardio.StoreConfig

	bdp *badger.DB

	stopSyncCh chan struct{}
	syncWG     sync.WaitGroup
	closeOnce  sync.Once
}

func (db *BadgerDB) String() string {
	if db.inMemory {
		return "badger in memory"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// GetStoreConfig returns the configuration for this store.
func (db *BadgerDB) GetStoreConfig() cardio.StoreConfig {
	return db.config
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func (db *BadgerDB) syncPeriodically(interval time.Duration) {
	defer db.syncWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSyncCh:
			cardio.Debugf("Stopping sync goroutine for %s\n", db)
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				cardio.Errorf("Unable to sync %s: %v\n", db, err)
			}
		}
	}
}

// Close closes the BadgerDB.  It is safe to call more than once.
func (db *BadgerDB) Close() (err error) {
	db.closeOnce.Do(func() {
		close(db.stopSyncCh)
		db.syncWG.Wait()
		err = db.bdp.Close()
		cardio.Infof("Closed %s\n", db)
	})
	return
}

// Get returns a value given a key or nil if the key is not present.
func (db *BadgerDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Put writes a value with given key.
func (db *BadgerDB) Put(key, value []byte) error {
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key.  Deleting a missing key is not an error.
func (db *BadgerDB) Delete(key []byte) error {
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Keys returns all keys with the given prefix in ascending order.
func (db *BadgerDB) Keys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}
