package badger

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/cardiowave/cardio"
)

// getOptions builds badger options for the path, applying any overrides in the
// store configuration.
func getOptions(path string, inMemory bool, config cardio.Config) (badger.Options, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	readOnly, found, err := config.GetBool("read_only")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithReadOnly(readOnly)
	}

	valueSizeThresh, found, err := config.GetInt("value_threshold")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithValueThreshold(int64(valueSizeThresh))
	}

	vlogSize, found, err := config.GetInt("value_log_file_size")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithValueLogFileSize(int64(vlogSize))
	}

	syncWrites, found, err := config.GetBool("sync_writes")
	if err != nil {
		return opts, err
	}
	if found {
		opts = opts.WithSyncWrites(syncWrites)
	}
	return opts, nil
}
