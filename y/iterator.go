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

package y

import (
	"bytes"
	"sort"
)

// Compare defines a total order over raw keys. It returns a negative number
// if a < b, zero if they are equal and a positive number if a > b.
type Compare func(a, b []byte) int

// DefaultCompare orders keys bytewise.
var DefaultCompare Compare = bytes.Compare

// Iterator is the forward-only capability shared by merge inputs and merge
// outputs.
//
// Key and Value are only valid until the next positioning call. Calling Next,
// Key or Value on an invalid iterator is a programming error.
type Iterator interface {
	Valid() bool
	SeekToFirst()
	Next()
	Key() []byte
	Value() []byte
	// Status returns the first error the iterator ran into, if any.
	Status() error

	// All iterators should be closed so that file garbage collection works.
	Close() error
}

// SeekIterator is an Iterator that can also position itself absolutely and
// move backwards.
type SeekIterator interface {
	Iterator
	SeekToLast()
	// Seek brings the iterator to the first entry with key >= the given key.
	Seek(key []byte)
	Prev()
}

// EmptyIterator is never valid. It is what a merge over zero inputs returns.
type EmptyIterator struct {
	err error
}

// NewEmptyIterator returns an iterator with no entries that reports err as
// its status.
func NewEmptyIterator(err error) *EmptyIterator {
	return &EmptyIterator{err: err}
}

func (e *EmptyIterator) Valid() bool     { return false }
func (e *EmptyIterator) SeekToFirst()    {}
func (e *EmptyIterator) SeekToLast()     {}
func (e *EmptyIterator) Seek(key []byte) {}
func (e *EmptyIterator) Next()           { AssertTrue(false) }
func (e *EmptyIterator) Prev()           { AssertTrue(false) }
func (e *EmptyIterator) Key() []byte     { AssertTrue(false); return nil }
func (e *EmptyIterator) Value() []byte   { AssertTrue(false); return nil }
func (e *EmptyIterator) Status() error   { return e.err }
func (e *EmptyIterator) Close() error    { return nil }

// SliceIterator iterates over an in-memory sorted run. It supports the full
// SeekIterator capability and is mostly handy in tests and tools.
type SliceIterator struct {
	keys [][]byte
	vals [][]byte
	cmp  Compare
	idx  int
	err  error
}

// NewSliceIterator returns an iterator over keys and vals. keys must already
// be sorted by cmp; a nil cmp means DefaultCompare. The iterator starts
// unpositioned.
func NewSliceIterator(keys, vals [][]byte, cmp Compare) *SliceIterator {
	AssertTruef(len(keys) == len(vals), "keys: %d, vals: %d", len(keys), len(vals))
	if cmp == nil {
		cmp = DefaultCompare
	}
	return &SliceIterator{keys: keys, vals: vals, cmp: cmp, idx: -1}
}

// NewStringIterator is a convenience wrapper around NewSliceIterator.
func NewStringIterator(keys, vals []string) *SliceIterator {
	k := make([][]byte, len(keys))
	v := make([][]byte, len(vals))
	for i := range keys {
		k[i] = []byte(keys[i])
	}
	for i := range vals {
		v[i] = []byte(vals[i])
	}
	return NewSliceIterator(k, v, nil)
}

// SetStatus makes the iterator report err from Status. Used to simulate
// failing inputs.
func (s *SliceIterator) SetStatus(err error) { s.err = err }

func (s *SliceIterator) Valid() bool { return s.idx >= 0 && s.idx < len(s.keys) }

func (s *SliceIterator) SeekToFirst() { s.idx = 0 }

func (s *SliceIterator) SeekToLast() { s.idx = len(s.keys) - 1 }

func (s *SliceIterator) Seek(key []byte) {
	s.idx = sort.Search(len(s.keys), func(i int) bool {
		return s.cmp(s.keys[i], key) >= 0
	})
}

func (s *SliceIterator) Next() {
	AssertTrue(s.Valid())
	s.idx++
}

func (s *SliceIterator) Prev() {
	AssertTrue(s.Valid())
	s.idx--
}

func (s *SliceIterator) Key() []byte {
	AssertTrue(s.Valid())
	return s.keys[s.idx]
}

func (s *SliceIterator) Value() []byte {
	AssertTrue(s.Valid())
	return s.vals[s.idx]
}

func (s *SliceIterator) Status() error { return s.err }

func (s *SliceIterator) Close() error { return nil }
