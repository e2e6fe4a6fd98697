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


package workload

import (
	"bytes"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/dgraph-io/lmerge/table"
)

type memEntry struct {
	key, value []byte
	seq        uint64
}

// Equal keys are ordered by insertion.
func memLess(a, b memEntry) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// Memtable is a sorted in-memory buffer of entries. Unlike a key-value
// store it keeps every insertion of the same key, so a flushed run can
// contain duplicates.
type Memtable struct {
	tree *btree.BTreeG[memEntry]
	seq  uint64
	size int64
}

// NewMemtable returns an empty memtable.
func NewMemtable() *Memtable {
	return &Memtable{tree: btree.NewG(32, memLess)}
}

// Add inserts a copy of key and value.
func (m *Memtable) Add(key, value []byte) {
	m.seq++
	e := memEntry{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
		seq:   m.seq,
	}
	m.tree.ReplaceOrInsert(e)
	m.size += int64(len(key) + len(value))
}

// Len returns the number of entries.
func (m *Memtable) Len() int { return m.tree.Len() }

// Size returns the number of key and value bytes held.
func (m *Memtable) Size() int64 { return m.size }

// Ascend calls fn for every entry in order until fn returns false.
func (m *Memtable) Ascend(fn func(key, value []byte) bool) {
	m.tree.Ascend(func(e memEntry) bool {
		return fn(e.key, e.value)
	})
}

// Keys returns the keys in order.
func (m *Memtable) Keys() [][]byte {
	keys := make([][]byte, 0, m.Len())
	m.Ascend(func(key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Flush adds every entry to b, in order.
func (m *Memtable) Flush(b *table.Builder) error {
	var err error
	m.Ascend(func(key, value []byte) bool {
		err = b.Add(key, value)
		return err == nil
	})
	return errors.Wrap(err, "while flushing memtable")
}
