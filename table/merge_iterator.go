/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
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

	"github.com/dgraph-io/lmerge/y"
)

type direction int

const (
	forward direction = iota
	reverse
)

// findLeaders scans every valid child once and returns the index of the
// smallest key and of the second smallest. Only strict less-than comparisons
// move the choice, so on equal keys the lowest index leads. Either index is
// -1 when there is no such child.
func findLeaders(n int, valid func(i int) bool, key func(i int) []byte,
	cmp y.Compare) (leader, runnerUp int, comparisons int64) {

	leader, runnerUp = -1, -1
	for i := 0; i < n; i++ {
		if !valid(i) {
			continue
		}
		if leader == -1 {
			leader = i
			continue
		}
		comparisons++
		if cmp(key(i), key(leader)) < 0 {
			runnerUp = leader
			leader = i
			continue
		}
		if runnerUp == -1 {
			runnerUp = i
			continue
		}
		comparisons++
		if cmp(key(i), key(runnerUp)) < 0 {
			runnerUp = i
		}
	}
	return leader, runnerUp, comparisons
}

// childStatus returns the first non-nil status among children.
func childStatus(n int, status func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := status(i); err != nil {
			return errors.Wrapf(err, "merge input %d", i)
		}
	}
	return nil
}

// MergeIterator merges multiple bidirectional iterators. Once the leading
// input is known it seeks that input to the runner-up's key to learn exactly
// how far it may advance before another input must be consulted.
//
// Entries with equal keys are returned in ascending input order.
// NOTE: MergeIterator owns the array of iterators and is responsible for closing them.
type MergeIterator struct {
	children []y.SeekIterator
	cmp      y.Compare
	opt      Options

	current int
	dir     direction

	// Range state, forward direction only.
	rangeValid  bool
	lastSegment bool   // Current may be drained without comparisons.
	limit       []byte // First key of current that needs a rescan.

	stats MergeStats
}

// NewMergeIterator creates a baseline merge iterator. Zero inputs give an
// iterator that is never valid, a single input is returned as is.
func NewMergeIterator(iters []y.SeekIterator, opt Options) y.SeekIterator {
	switch len(iters) {
	case 0:
		return y.NewEmptyIterator(nil)
	case 1:
		return iters[0]
	}
	y.NumMergesAdd(opt.MetricsEnabled, 1)
	return &MergeIterator{
		children: iters,
		cmp:      opt.compare(),
		opt:      opt,
		current:  -1,
		stats:    MergeStats{NumInputs: len(iters)},
	}
}

func (mi *MergeIterator) compare(a, b []byte) int {
	mi.stats.BaselineComparisons++
	return mi.cmp(a, b)
}

func (mi *MergeIterator) resetRange() {
	mi.rangeValid = false
	mi.lastSegment = false
	mi.limit = mi.limit[:0]
}

// findSmallest picks the next current child going forward. While current is
// still inside its known range no other child is looked at.
func (mi *MergeIterator) findSmallest() {
	if mi.rangeValid && mi.current >= 0 {
		cur := mi.children[mi.current]
		if cur.Valid() && (mi.lastSegment || mi.compare(cur.Key(), mi.limit) < 0) {
			mi.stats.OracleSavings += int64(len(mi.children) - 1)
			return
		}
	}
	mi.resetRange()

	leader, runnerUp, comps := findLeaders(len(mi.children),
		func(i int) bool { return mi.children[i].Valid() },
		func(i int) []byte { return mi.children[i].Key() },
		mi.cmp)
	mi.stats.BaselineComparisons += comps
	mi.current = leader
	if leader == -1 {
		return
	}
	mi.rangeValid = true
	if runnerUp == -1 {
		mi.lastSegment = true
		return
	}
	mi.guessLimit(mi.children[leader], mi.children[runnerUp].Key())
}

// guessLimit finds the first entry of cur not less than target by seeking,
// then puts cur back where it was.
func (mi *MergeIterator) guessLimit(cur y.SeekIterator, target []byte) {
	pos := y.Copy(cur.Key())
	if mi.cmp(pos, target) == 0 {
		// An equal key in a later input must be rescanned right after this one.
		mi.limit = y.SafeCopy(mi.limit, target)
		return
	}

	// Count earlier entries equal to pos so that the position can be restored
	// by key in spite of duplicates.
	var dups int
	for cur.Prev(); cur.Valid() && mi.cmp(cur.Key(), pos) == 0; cur.Prev() {
		dups++
	}

	cur.Seek(target)
	if cur.Valid() {
		mi.limit = y.SafeCopy(mi.limit, cur.Key())
	} else {
		mi.lastSegment = true
	}

	cur.Seek(pos)
	for i := 0; i < dups; i++ {
		cur.Next()
	}
	y.AssertTruef(cur.Valid() && mi.cmp(cur.Key(), pos) == 0,
		"unable to restore merge input to %q", pos)
}

// findLargest picks the next current child going backwards. On equal keys
// the highest index wins, mirroring the forward order.
func (mi *MergeIterator) findLargest() {
	largest := -1
	for i := len(mi.children) - 1; i >= 0; i-- {
		child := mi.children[i]
		if !child.Valid() {
			continue
		}
		if largest == -1 || mi.compare(child.Key(), mi.children[largest].Key()) > 0 {
			largest = i
		}
	}
	mi.current = largest
}

// Valid returns whether the MergeIterator is at a valid element.
func (mi *MergeIterator) Valid() bool {
	return mi.current >= 0
}

// SeekToFirst positions every input at its start.
func (mi *MergeIterator) SeekToFirst() {
	for _, child := range mi.children {
		child.SeekToFirst()
	}
	mi.dir = forward
	mi.resetRange()
	mi.findSmallest()
	mi.countItem()
}

// SeekToLast positions every input at its end.
func (mi *MergeIterator) SeekToLast() {
	for _, child := range mi.children {
		child.SeekToLast()
	}
	mi.dir = reverse
	mi.resetRange()
	mi.findLargest()
	mi.countItem()
}

// Seek brings us to the first element with key >= the given key.
func (mi *MergeIterator) Seek(key []byte) {
	for _, child := range mi.children {
		child.Seek(key)
	}
	mi.dir = forward
	mi.resetRange()
	mi.findSmallest()
	mi.countItem()
}

// Next returns the next element in merge order.
func (mi *MergeIterator) Next() {
	y.AssertTrue(mi.Valid())

	if mi.dir != forward {
		// Every other child was positioned before the current key. Move it
		// after the current entry: past equal keys for lower inputs, onto
		// them for higher inputs.
		key := y.Copy(mi.Key())
		for i, child := range mi.children {
			if i == mi.current {
				continue
			}
			child.Seek(key)
			if i < mi.current {
				for child.Valid() && mi.compare(child.Key(), key) == 0 {
					child.Next()
				}
			}
		}
		mi.dir = forward
		mi.resetRange()
	}

	mi.children[mi.current].Next()
	mi.findSmallest()
	mi.countItem()
}

// Prev returns the previous element in merge order.
func (mi *MergeIterator) Prev() {
	y.AssertTrue(mi.Valid())

	if mi.dir != reverse {
		// Every other child was positioned after the current key. Move it
		// before the current entry.
		key := y.Copy(mi.Key())
		for i, child := range mi.children {
			if i == mi.current {
				continue
			}
			child.Seek(key)
			if i < mi.current {
				for child.Valid() && mi.compare(child.Key(), key) == 0 {
					child.Next()
				}
			}
			if child.Valid() {
				child.Prev()
			} else {
				child.SeekToLast()
			}
		}
		mi.dir = reverse
		mi.resetRange()
	}

	mi.children[mi.current].Prev()
	mi.findLargest()
	mi.countItem()
}

func (mi *MergeIterator) countItem() {
	if mi.Valid() {
		mi.stats.TotalItems++
	}
}

// Key returns the key associated with the current iterator.
func (mi *MergeIterator) Key() []byte {
	y.AssertTrue(mi.Valid())
	return mi.children[mi.current].Key()
}

// Value returns the value associated with the iterator.
func (mi *MergeIterator) Value() []byte {
	y.AssertTrue(mi.Valid())
	return mi.children[mi.current].Value()
}

// Status returns the first error reported by an input.
func (mi *MergeIterator) Status() error {
	return childStatus(len(mi.children), func(i int) error { return mi.children[i].Status() })
}

// Stats returns the work done so far.
func (mi *MergeIterator) Stats() MergeStats {
	return mi.stats
}

// Close implements y.Iterator.
func (mi *MergeIterator) Close() error {
	y.NumComparisonsAdd(mi.opt.MetricsEnabled, "baseline", mi.stats.BaselineComparisons)
	errs := make([]error, 0, len(mi.children))
	for _, child := range mi.children {
		errs = append(errs, child.Close())
	}
	return errors.Wrap(y.CombineErrors(errs...), "MergeIterator")
}
