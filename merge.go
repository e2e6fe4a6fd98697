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


// Package lmerge merges sorted run files with a learned k-way merge. Each
// input gets a piecewise linear model of its keys, which lets the merge emit
// long stretches of one input without comparing keys across inputs.
package lmerge

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dgraph-io/lmerge/sink"
	"github.com/dgraph-io/lmerge/table"
	"github.com/dgraph-io/lmerge/y"
)

// ctxCheckInterval is the number of entries merged between context checks.
const ctxCheckInterval = 1 << 10

// Result describes a completed merge.
type Result struct {
	// Output is the path of the merged run file.
	Output string
	// OutputSize is the size of the merged run file in bytes.
	OutputSize int64
	Stats      table.MergeStats
	Duration   time.Duration
	InputCount int
	Gamma      float64
}

// Record converts r to a statistics row.
func (r *Result) Record() sink.Record {
	return sink.Record{
		Time:               time.Now(),
		NumItems:           r.Stats.TotalItems,
		Comparisons:        r.Stats.BaselineComparisons,
		LearnedComparisons: r.Stats.LearnedComparisons,
		Corrections:        r.Stats.Corrections,
		NumInputs:          r.InputCount,
		Gamma:              r.Gamma,
		Duration:           r.Duration,
	}
}

// Merge merges the run files named by inputs into a new run file at output.
// The output must not exist yet. Relative paths are resolved against
// opt.Dir.
func Merge(ctx context.Context, opt Options, inputs []string, output string) (*Result, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if output == "" {
		return nil, ErrEmptyOutput
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	cache, err := opt.newBlockCache()
	if err != nil {
		return nil, err
	}
	if cache != nil {
		defer cache.Close()
	}
	topt := opt.tableOptions(cache)

	tables, err := openTables(ctx, opt, topt, inputs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeTables(tables); err != nil {
			opt.logger().Warningf("While closing inputs: %v", err)
		}
	}()
	y.Trace(ctx, "Opened %d input tables", len(tables))

	builder := table.NewTableBuilder(topt)
	defer builder.Close()
	stats, err := MergeTables(ctx, opt, tables, builder)
	if err != nil {
		return nil, err
	}
	y.Trace(ctx, "Merged %d items", stats.TotalItems)

	out, err := table.CreateTable(opt.path(output), builder)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Output:     out.Filename(),
		OutputSize: out.Size(),
		Stats:      stats,
		InputCount: len(inputs),
		Gamma:      opt.Gamma,
	}
	if err := out.Close(); err != nil {
		return nil, errors.Wrapf(err, "while closing output: %s", res.Output)
	}
	res.Duration = time.Since(start)
	opt.logger().Infof("Merged %d inputs into %s. %s. Took: %s",
		res.InputCount, res.Output, res.Stats, res.Duration.Round(time.Millisecond))

	if opt.StatsSink != nil {
		if err := opt.StatsSink.Record(ctx, res.Record()); err != nil {
			return res, errors.Wrap(err, "while recording merge stats")
		}
	}
	return res, nil
}

// MergeTables merges already opened tables into builder and returns the
// merge statistics. The tables stay open. A single table is copied
// through.
func MergeTables(ctx context.Context, opt Options, tables []*table.Table,
	builder *table.Builder) (table.MergeStats, error) {

	if len(tables) == 0 {
		return table.MergeStats{}, ErrNoInputs
	}
	if err := opt.validate(); err != nil {
		return table.MergeStats{}, err
	}
	it := newMergeIterator(tables, opt.Validate, opt.tableOptions(nil))
	defer it.Close()

	var n int64
	for it.SeekToFirst(); it.Valid(); it.Next() {
		if n++; n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return table.MergeStats{}, err
			}
		}
		if err := builder.Add(it.Key(), it.Value()); err != nil {
			return table.MergeStats{}, errors.Wrap(err, "while writing merged entry")
		}
	}
	if err := it.Status(); err != nil {
		return table.MergeStats{}, err
	}

	stats, ok := table.StatsOf(it)
	if !ok {
		stats = table.MergeStats{TotalItems: n}
	}
	if stats.NumInputs == 0 {
		stats.NumInputs = len(tables)
	}
	return stats, nil
}

// newMergeIterator returns the learned merge over tables, checked against
// the baseline merge when validate is set.
func newMergeIterator(tables []*table.Table, validate bool, topt table.Options) y.Iterator {
	learned := make([]y.Iterator, len(tables))
	for i, t := range tables {
		learned[i] = t.NewIterator()
	}
	if !validate {
		return table.NewLearnedMergeIterator(learned, topt)
	}
	baseline := make([]y.SeekIterator, len(tables))
	for i, t := range tables {
		baseline[i] = t.NewIterator()
	}
	return table.NewShadowIterator(learned, baseline, topt)
}

func openTables(ctx context.Context, opt Options, topt table.Options,
	paths []string) ([]*table.Table, error) {

	tables := make([]*table.Table, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.NumGoroutines)
	for i, p := range paths {
		i, p := i, opt.path(p)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fd, err := os.Open(p)
			if err != nil {
				return errors.Wrapf(err, "while opening input: %s", p)
			}
			t, err := table.OpenTable(fd, topt)
			if err != nil {
				return errors.Wrapf(err, "while opening input: %s", p)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = closeTables(tables)
		return nil, err
	}
	return tables, nil
}

func closeTables(tables []*table.Table) error {
	errs := make([]error, 0, len(tables))
	for _, t := range tables {
		if t != nil {
			errs = append(errs, t.Close())
		}
	}
	return y.CombineErrors(errs...)
}
