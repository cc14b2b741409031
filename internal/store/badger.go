// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/cloudwego/textflow/internal/log"
)

// BadgerConfig configures an on-disk or in-memory badger database.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// GCInterval runs value log GC periodically; zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
	// Verbose forwards badger's own logs at debug level.
	Verbose bool
}

// DefaultBadgerConfig stores the database under path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig keeps everything in memory, for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { log.Error("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { log.Warn("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { log.Debug("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { log.Debug("badger: "+format, args...) }

// BadgerKV is a KV backed by badger.
type BadgerKV struct {
	db   *badger.DB
	stop chan struct{}
	wg   sync.WaitGroup
}

// OpenBadger opens the database described by cfg. Callers must Close it.
func OpenBadger(cfg BadgerConfig) (*BadgerKV, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for a persistent store")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, errors.Wrapf(err, "create store directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Verbose {
		opts = opts.WithLogger(badgerLogger{})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	kv := &BadgerKV{db: db, stop: make(chan struct{})}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		kv.wg.Add(1)
		go kv.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return kv, nil
}

func (b *BadgerKV) runGC(every time.Duration, ratio float64) {
	defer b.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			for b.db.RunValueLogGC(ratio) == nil {
			}
		}
	}
}

// Close stops GC and closes the database.
func (b *BadgerKV) Close() error {
	close(b.stop)
	b.wg.Wait()
	return b.db.Close()
}

func (b *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "badger get %s", key)
	}
	return out, nil
}

func (b *BadgerKV) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return errors.Wrapf(err, "badger set %s", key)
}

func (b *BadgerKV) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "badger delete %s", key)
}

func (b *BadgerKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "badger keys")
	}
	return keys, nil
}
