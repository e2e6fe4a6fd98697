/*
 * Copyright 2023 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package workload generates synthetic sorted runs: fixed-width numeric keys
// drawn from a distribution, buffered in memtables and flushed the way an
// LSM tree flushes its level zero tables.
package workload

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/dgraph-io/lmerge/table"
	"github.com/dgraph-io/lmerge/y"
)

// Config describes a workload.
type Config struct {
	// NumKeys is the total number of keys over all runs.
	NumKeys int
	// KeyWidth is the number of zero padded decimal digits of each key.
	KeyWidth int
	// NumRuns is the number of runs the keys are flushed into.
	NumRuns int
	// Dist draws the key ordinals.
	Dist Distribution
	// Seed makes the workload reproducible.
	Seed uint64
}

// DefaultConfig is a uniform workload of a million 20 digit keys in 8 runs.
func DefaultConfig() Config {
	u, _ := NewUniform(0, 1<<40)
	return Config{
		NumKeys:  1000000,
		KeyWidth: 20,
		NumRuns:  8,
		Dist:     u,
		Seed:     1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.NumKeys < 0:
		return errors.Errorf("invalid number of keys: %d", c.NumKeys)
	case c.KeyWidth <= 0 || c.KeyWidth > 20:
		return errors.Errorf("invalid key width: %d, must be between 1 and 20", c.KeyWidth)
	case c.NumRuns <= 0:
		return errors.Errorf("invalid number of runs: %d", c.NumRuns)
	case c.Dist == nil:
		return errors.New("no key distribution")
	}
	return nil
}

// Keys returns cfg.NumKeys keys in generation order.
func Keys(cfg Config) ([][]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	keys := make([][]byte, cfg.NumKeys)
	for i := range keys {
		keys[i] = y.FixedWidthKey(cfg.Dist.Uint64(rng), cfg.KeyWidth)
	}
	return keys, nil
}

// Runs feeds the generated keys into memtables and flushes a memtable
// whenever it holds its share of the keys. Each key is also its value.
func Runs(cfg Config) ([]*Memtable, error) {
	keys, err := Keys(cfg)
	if err != nil {
		return nil, err
	}
	perRun := (cfg.NumKeys + cfg.NumRuns - 1) / cfg.NumRuns
	runs := make([]*Memtable, 0, cfg.NumRuns)
	mt := NewMemtable()
	for _, k := range keys {
		mt.Add(k, k)
		if mt.Len() >= perRun {
			runs = append(runs, mt)
			mt = NewMemtable()
		}
	}
	for len(runs) < cfg.NumRuns {
		runs = append(runs, mt)
		mt = NewMemtable()
	}
	return runs, nil
}

// RunFileName returns the file name of the i-th run.
func RunFileName(i int) string {
	return fmt.Sprintf("%06d.run", i)
}

// WriteRuns writes every run into dir as a run file and returns the paths,
// in run order.
func WriteRuns(dir string, runs []*Memtable, topt table.Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "while creating %s", dir)
	}
	paths := make([]string, len(runs))
	var g errgroup.Group
	for i, mt := range runs {
		i, mt := i, mt
		paths[i] = filepath.Join(dir, RunFileName(i))
		g.Go(func() error {
			b := table.NewTableBuilder(topt)
			defer b.Close()
			if err := mt.Flush(b); err != nil {
				return err
			}
			t, err := table.CreateTable(paths[i], b)
			if err != nil {
				return err
			}
			return t.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// BuildTables builds every run as an in-memory table.
func BuildTables(runs []*Memtable, topt table.Options) ([]*table.Table, error) {
	tables := make([]*table.Table, len(runs))
	for i, mt := range runs {
		b := table.NewTableBuilder(topt)
		if err := mt.Flush(b); err != nil {
			return nil, err
		}
		data, err := b.Finish()
		if err != nil {
			return nil, err
		}
		if tables[i], err = table.OpenInMemoryTable(data, topt); err != nil {
			return nil, err
		}
	}
	return tables, nil
}
