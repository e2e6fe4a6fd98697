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

package table

import (
	"github.com/pkg/errors"

	"github.com/dgraph-io/lmerge/model"
	"github.com/dgraph-io/lmerge/y"
)

// LearnedMergeIterator merges forward-only inputs. Every input is read once
// up front to train a model of its keys. During the merge the model tells
// how many entries the leading input can emit before the runner-up's key is
// reached, and those entries are returned without any key comparisons.
//
// Entries with equal keys are returned in ascending input order, exactly as
// MergeIterator returns them.
// NOTE: LearnedMergeIterator owns the array of iterators and is responsible for closing them.
type LearnedMergeIterator struct {
	children []y.Iterator
	runs     []*model.Run
	consumed []int // Entries of each child consumed since SeekToFirst.
	cmp      y.Compare
	opt      Options

	current int
	limit   int // Rank in current's run up to which it provably leads.

	drainErr error
	stats    MergeStats
}

// NewLearnedMergeIterator drains and rewinds every input, trains one model
// per input and returns the merged iterator, unpositioned. Zero inputs give
// an iterator that is never valid, a single input is returned as is.
func NewLearnedMergeIterator(iters []y.Iterator, opt Options) y.Iterator {
	switch len(iters) {
	case 0:
		return y.NewEmptyIterator(nil)
	case 1:
		return iters[0]
	}
	return newLearnedMergeIterator(iters, opt)
}

func newLearnedMergeIterator(iters []y.Iterator, opt Options) *LearnedMergeIterator {
	mi := &LearnedMergeIterator{
		children: iters,
		runs:     make([]*model.Run, len(iters)),
		consumed: make([]int, len(iters)),
		cmp:      opt.compare(),
		opt:      opt,
		current:  -1,
		stats:    MergeStats{NumInputs: len(iters)},
	}
	var total int
	for i, child := range iters {
		var keys [][]byte
		for child.SeekToFirst(); child.Valid(); child.Next() {
			keys = append(keys, y.Copy(child.Key()))
		}
		if err := child.Status(); err != nil && mi.drainErr == nil {
			mi.drainErr = errors.Wrapf(err, "while reading merge input %d", i)
		}
		child.SeekToFirst()

		mi.runs[i] = model.NewRun(keys, opt.Gamma)
		mi.stats.Segments += len(mi.runs[i].Segments())
		total += len(keys)
	}

	y.NumMergesAdd(opt.MetricsEnabled, 1)
	y.NumSegmentsAdd(opt.MetricsEnabled, int64(mi.stats.Segments))
	opt.logger().Debugf("Trained %d segments over %d keys from %d inputs, gamma: %v",
		mi.stats.Segments, total, len(iters), opt.Gamma)
	return mi
}

// advance makes sure current points at the child holding the next entry.
func (mi *LearnedMergeIterator) advance() {
	if mi.current >= 0 && mi.children[mi.current].Valid() &&
		mi.consumed[mi.current] < mi.limit {
		return
	}

	leader, runnerUp, comps := findLeaders(len(mi.children),
		func(i int) bool { return mi.children[i].Valid() },
		func(i int) []byte { return mi.children[i].Key() },
		mi.cmp)
	mi.stats.LearnedComparisons += comps
	y.NumComparisonsAdd(mi.opt.MetricsEnabled, "learned", comps)

	mi.current = leader
	switch {
	case leader == -1:
		return
	case runnerUp == -1:
		mi.limit = mi.runs[leader].Len()
	default:
		pos, corrections := mi.runs[leader].Locate(mi.children[runnerUp].Key(), mi.cmp)
		mi.limit = pos
		mi.stats.Corrections += int64(corrections)
		y.NumCorrectionsAdd(mi.opt.MetricsEnabled, int64(corrections))
	}
}

func (mi *LearnedMergeIterator) countItem() {
	if mi.Valid() {
		mi.stats.TotalItems++
		y.NumItemsAdd(mi.opt.MetricsEnabled, 1)
	}
}

// Valid returns whether the iterator is at a valid element.
func (mi *LearnedMergeIterator) Valid() bool {
	return mi.current >= 0
}

// SeekToFirst rewinds every input and positions at the smallest entry.
func (mi *LearnedMergeIterator) SeekToFirst() {
	for i, child := range mi.children {
		child.SeekToFirst()
		mi.consumed[i] = 0
	}
	mi.current = -1
	mi.limit = 0
	mi.advance()
	mi.countItem()
}

// Next moves to the next entry in merge order.
func (mi *LearnedMergeIterator) Next() {
	y.AssertTrue(mi.Valid())
	mi.children[mi.current].Next()
	mi.consumed[mi.current]++
	mi.advance()
	mi.countItem()
}

// SeekToLast is not supported, the inputs can only be read forward.
func (mi *LearnedMergeIterator) SeekToLast() error {
	return y.ErrUnsupportedOperation
}

// Seek is not supported, the inputs can only be read forward.
func (mi *LearnedMergeIterator) Seek(key []byte) error {
	return y.ErrUnsupportedOperation
}

// Prev is not supported, the inputs can only be read forward.
func (mi *LearnedMergeIterator) Prev() error {
	return y.ErrUnsupportedOperation
}

// Key returns the key associated with the current iterator.
func (mi *LearnedMergeIterator) Key() []byte {
	y.AssertTrue(mi.Valid())
	return mi.children[mi.current].Key()
}

// Value returns the value associated with the iterator.
func (mi *LearnedMergeIterator) Value() []byte {
	y.AssertTrue(mi.Valid())
	return mi.children[mi.current].Value()
}

// Status returns the first error seen while training or merging.
func (mi *LearnedMergeIterator) Status() error {
	if mi.drainErr != nil {
		return mi.drainErr
	}
	return childStatus(len(mi.children), func(i int) error { return mi.children[i].Status() })
}

// Stats returns the work done so far.
func (mi *LearnedMergeIterator) Stats() MergeStats {
	return mi.stats
}

// Runs returns the trained model of every input, in input order.
func (mi *LearnedMergeIterator) Runs() []*model.Run {
	return mi.runs
}

// Close implements y.Iterator.
func (mi *LearnedMergeIterator) Close() error {
	errs := make([]error, 0, len(mi.children))
	for _, child := range mi.children {
		errs = append(errs, child.Close())
	}
	return errors.Wrap(y.CombineErrors(errs...), "LearnedMergeIterator")
}
