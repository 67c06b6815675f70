package dataset

import (
	"errors"
	"sync"
)

// ErrNotConfigured is returned by Global before Configure has been called.
var ErrNotConfigured = errors.New("dataset path not configured")

// process-wide dataset, loaded at most once. globalMu is held for the whole
// load so resets never interleave with it.
var (
	globalPath    string
	globalOpts    Options
	globalDataset *Dataset
	globalErr     error
	globalLoaded  bool
	globalMu      sync.Mutex
)

// Configure sets the file Global loads from. It has no effect once Global has run.
func Configure(path string, opts Options) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalPath = path
	globalOpts = opts
}

// Global returns the process-wide dataset, loading it on first use. A failed
// load is remembered; only a restart (or ResetGlobal in tests) retries it.
func Global() (*Dataset, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if !globalLoaded {
		if globalPath == "" {
			globalDataset, globalErr = nil, ErrNotConfigured
		} else {
			globalDataset, globalErr = Load(globalPath, globalOpts)
		}
		globalLoaded = true
	}
	return globalDataset, globalErr
}

// SetGlobal installs ds as the process-wide dataset (used by tests).
func SetGlobal(ds *Dataset) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalDataset = ds
	globalErr = nil
	globalLoaded = true
}

// ResetGlobal drops the cached dataset so the next Global call reloads it.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalDataset = nil
	globalErr = nil
	globalPath = ""
	globalOpts = Options{}
	globalLoaded = false
}
