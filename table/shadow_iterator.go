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
	"bytes"

	"github.com/pkg/errors"

	"github.com/dgraph-io/lmerge/y"
)

// ShadowIterator runs a learned merge and a baseline merge over the same
// data in lockstep and checks after every step that both agree. The first
// disagreement makes the iterator invalid and is reported by Status as a
// *y.ConsistencyError.
type ShadowIterator struct {
	learned  y.Iterator
	baseline y.Iterator
	opt      Options

	step  int64
	items int64
	err   error
}

// NewShadowIterator builds the learned merge over learnedInputs and the
// baseline merge over baselineInputs. Both sets must hold the same data in
// the same order. The returned iterator is unpositioned.
func NewShadowIterator(learnedInputs []y.Iterator, baselineInputs []y.SeekIterator,
	opt Options) *ShadowIterator {

	y.AssertTruef(len(learnedInputs) == len(baselineInputs),
		"learned inputs: %d, baseline inputs: %d", len(learnedInputs), len(baselineInputs))
	return &ShadowIterator{
		learned:  NewLearnedMergeIterator(learnedInputs, opt),
		baseline: NewMergeIterator(baselineInputs, opt),
		opt:      opt,
	}
}

func (s *ShadowIterator) check() {
	if s.err != nil {
		return
	}
	lv, bv := s.learned.Valid(), s.baseline.Valid()
	var cerr *y.ConsistencyError
	switch {
	case lv != bv:
		cerr = &y.ConsistencyError{Field: "valid"}
	case !lv:
		return
	case !bytes.Equal(s.learned.Key(), s.baseline.Key()):
		cerr = &y.ConsistencyError{Field: "key"}
	case !bytes.Equal(s.learned.Value(), s.baseline.Value()):
		cerr = &y.ConsistencyError{Field: "value"}
	default:
		s.items++
		return
	}

	cerr.Step = s.step
	cerr.LearnedValid, cerr.BaselineValid = lv, bv
	if lv {
		cerr.LearnedKey = y.Copy(s.learned.Key())
	}
	if bv {
		cerr.BaselineKey = y.Copy(s.baseline.Key())
	}
	s.err = cerr
	y.NumViolationsAdd(s.opt.MetricsEnabled, 1)
	s.opt.logger().Errorf("Learned merge diverged from baseline: %v", cerr)
}

// Valid returns whether both merges are at the same valid element.
func (s *ShadowIterator) Valid() bool {
	return s.err == nil && s.learned.Valid()
}

// SeekToFirst rewinds both merges. A divergence seen earlier stays reported.
func (s *ShadowIterator) SeekToFirst() {
	s.learned.SeekToFirst()
	s.baseline.SeekToFirst()
	s.step = 0
	s.check()
}

// Next advances both merges by one entry.
func (s *ShadowIterator) Next() {
	y.AssertTrue(s.Valid())
	s.learned.Next()
	s.baseline.Next()
	s.step++
	s.check()
}

// SeekToLast is not supported.
func (s *ShadowIterator) SeekToLast() error { return y.ErrUnsupportedOperation }

// Seek is not supported.
func (s *ShadowIterator) Seek(key []byte) error { return y.ErrUnsupportedOperation }

// Prev is not supported.
func (s *ShadowIterator) Prev() error { return y.ErrUnsupportedOperation }

// Key returns the current key.
func (s *ShadowIterator) Key() []byte {
	y.AssertTrue(s.Valid())
	return s.learned.Key()
}

// Value returns the current value.
func (s *ShadowIterator) Value() []byte {
	y.AssertTrue(s.Valid())
	return s.learned.Value()
}

// Status returns the consistency error, if any, or else the first input
// error of either merge.
func (s *ShadowIterator) Status() error {
	if s.err != nil {
		return s.err
	}
	if err := s.learned.Status(); err != nil {
		return err
	}
	return errors.Wrap(s.baseline.Status(), "baseline")
}

// Stats combines the counters of both merges. TotalItems counts entries
// both merges agreed on.
func (s *ShadowIterator) Stats() MergeStats {
	var st MergeStats
	if ls, ok := StatsOf(s.learned); ok {
		st = ls
	}
	if bs, ok := StatsOf(s.baseline); ok {
		st.BaselineComparisons = bs.BaselineComparisons
		st.OracleSavings = bs.OracleSavings
		if st.NumInputs == 0 {
			st.NumInputs = bs.NumInputs
		}
	}
	st.TotalItems = s.items
	return st
}

// Close closes both merges.
func (s *ShadowIterator) Close() error {
	return y.CombineErrors(s.learned.Close(), s.baseline.Close())
}
