/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
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
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/dgraph-io/lmerge/y"
)

type blockIterator struct {
	data         []byte
	idx          int // Idx of the entry inside a block
	err          error
	baseKey      []byte
	key          []byte
	val          []byte
	entryOffsets []uint32
	cmp          y.Compare
}

func (itr *blockIterator) setBlock(b *block, cmp y.Compare) {
	itr.err = nil
	itr.idx = 0
	itr.baseKey = b.baseKey
	itr.key = itr.key[:0]
	itr.val = itr.val[:0]
	itr.data = b.data
	itr.entryOffsets = b.entryOffsets
	itr.cmp = cmp
}

// setIdx sets the iterator to the entry at index i and sets its key and value.
func (itr *blockIterator) setIdx(i int) {
	itr.idx = i
	if i >= len(itr.entryOffsets) || i < 0 {
		itr.err = io.EOF
		return
	}
	itr.err = nil
	startOffset := int(itr.entryOffsets[i])

	// Set end offset.
	endOffset := len(itr.data)
	// We're at last entry in the block.
	if i+1 < len(itr.entryOffsets) {
		endOffset = int(itr.entryOffsets[i+1])
	}
	if startOffset+headerSize > endOffset || endOffset > len(itr.data) {
		itr.err = errors.Wrapf(ErrCorruptTable, "entry %d spans [%d, %d)", i, startOffset, endOffset)
		return
	}

	entryData := itr.data[startOffset:endOffset]
	var h header
	h.Decode(entryData)
	if int(h.plen) > len(itr.baseKey) || headerSize+int(h.klen)+int(h.vlen) > len(entryData) {
		itr.err = errors.Wrapf(ErrCorruptTable, "entry %d header out of range", i)
		return
	}
	itr.key = append(itr.key[:0], itr.baseKey[:h.plen]...)
	itr.key = append(itr.key, entryData[headerSize:headerSize+int(h.klen)]...)
	valueOff := headerSize + int(h.klen)
	itr.val = entryData[valueOff : valueOff+int(h.vlen)]
}

// seek brings us to the first entry with key >= the given key.
func (itr *blockIterator) seek(key []byte) {
	itr.err = nil
	foundEntryIdx := sort.Search(len(itr.entryOffsets), func(idx int) bool {
		itr.setIdx(idx)
		return itr.cmp(itr.key, key) >= 0
	})
	itr.setIdx(foundEntryIdx)
}

func (itr *blockIterator) seekToFirst() {
	itr.setIdx(0)
}

func (itr *blockIterator) seekToLast() {
	itr.setIdx(len(itr.entryOffsets) - 1)
}

func (itr *blockIterator) next() {
	itr.setIdx(itr.idx + 1)
}

func (itr *blockIterator) prev() {
	itr.setIdx(itr.idx - 1)
}

// Iterator is an iterator for a Table. It implements y.SeekIterator.
type Iterator struct {
	t    *Table
	bpos int
	bi   blockIterator
	err  error
	cmp  y.Compare
}

// NewIterator returns a new iterator of the Table. The iterator starts
// unpositioned.
func (t *Table) NewIterator() *Iterator {
	return &Iterator{t: t, bpos: -1, err: io.EOF, cmp: t.opt.compare()}
}

// Close closes the iterator. The table stays open.
func (itr *Iterator) Close() error {
	return nil
}

func (itr *Iterator) reset() {
	itr.bpos = 0
	itr.err = nil
}

// Valid follows the y.Iterator interface
func (itr *Iterator) Valid() bool {
	return itr.err == nil
}

// Status returns the first decoding error, if any. Reaching either end of
// the table is not an error.
func (itr *Iterator) Status() error {
	if itr.err == io.EOF {
		return nil
	}
	return itr.err
}

// loadBlock positions the block iterator on block bpos. It returns false and
// sets itr.err when bpos is out of range or the block cannot be read.
func (itr *Iterator) loadBlock() bool {
	if itr.bpos < 0 || itr.bpos >= itr.t.NumBlocks() {
		itr.err = io.EOF
		return false
	}
	blk, err := itr.t.block(itr.bpos, false)
	if err != nil {
		itr.err = err
		return false
	}
	itr.bi.setBlock(blk, itr.cmp)
	return true
}

func (itr *Iterator) fromBlock() {
	itr.err = itr.bi.err
}

// SeekToFirst brings us to the first element.
func (itr *Iterator) SeekToFirst() {
	itr.reset()
	if !itr.loadBlock() {
		return
	}
	itr.bi.seekToFirst()
	itr.fromBlock()
}

// SeekToLast brings us to the last element.
func (itr *Iterator) SeekToLast() {
	itr.reset()
	itr.bpos = itr.t.NumBlocks() - 1
	if !itr.loadBlock() {
		return
	}
	itr.bi.seekToLast()
	itr.fromBlock()
}

func (itr *Iterator) seekHelper(blockIdx int, key []byte) {
	itr.bpos = blockIdx
	if !itr.loadBlock() {
		return
	}
	itr.bi.seek(key)
	itr.fromBlock()
}

// Seek brings us to the first entry with key >= the given key.
func (itr *Iterator) Seek(key []byte) {
	itr.reset()

	idx := sort.Search(itr.t.NumBlocks(), func(idx int) bool {
		return itr.cmp(itr.t.blocks[idx].baseKey, key) >= 0
	})
	if idx == 0 {
		// The smallest key in our table is already >= key. We can return that.
		// This matches the behavior of SeekToFirst.
		itr.seekHelper(0, key)
		return
	}

	// Block[idx-1] has a base key < key, so the entry we want is either in
	// that block or is the first entry of block[idx].
	itr.seekHelper(idx-1, key)
	if itr.err == io.EOF {
		// Case 1. Need to visit block[idx].
		if idx == itr.t.NumBlocks() {
			// If idx == len(itr.t.blocks), then input key is greater than ANY element of table.
			// There's nothing we can do. Valid() should return false as we seek to end of table.
			return
		}
		// Since block[idx].smallest is > key. This is essentially a block[idx].SeekToFirst.
		itr.seekHelper(idx, key)
	}
	// Case 2: No need to do anything. We already did the seek in block[idx-1].
}

// Next moves to the next entry.
func (itr *Iterator) Next() {
	y.AssertTrue(itr.Valid())
	itr.bi.next()
	if itr.bi.err == io.EOF {
		itr.bpos++
		if !itr.loadBlock() {
			return
		}
		itr.bi.seekToFirst()
	}
	itr.fromBlock()
}

// Prev moves to the previous entry.
func (itr *Iterator) Prev() {
	y.AssertTrue(itr.Valid())
	itr.bi.prev()
	if itr.bi.err == io.EOF {
		itr.bpos--
		if !itr.loadBlock() {
			return
		}
		itr.bi.seekToLast()
	}
	itr.fromBlock()
}

// Key follows the y.Iterator interface.
func (itr *Iterator) Key() []byte {
	return itr.bi.key
}

// Value follows the y.Iterator interface
func (itr *Iterator) Value() []byte {
	return itr.bi.val
}

// KeyUint64 decodes the key's numeric prefix. Handy for tools that print runs.
func (itr *Iterator) KeyUint64() uint64 {
	return y.KeyToUint64(itr.Key())
}

var _ y.SeekIterator = (*Iterator)(nil)

