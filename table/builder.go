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
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/y"
)

const (
	headerSize   = 8
	checksumSize = 8
	footerSize   = 16
	magic        = uint64(0x6c6d657267652e31) // "lmerge.1"
)

var (
	// ErrOutOfOrder is returned when keys are not added in ascending order.
	ErrOutOfOrder = errors.New("Keys must be added in ascending order")
	// ErrKeyTooLarge is returned for keys that do not fit the entry header.
	ErrKeyTooLarge = errors.New("Key is too large")
)

func newBuffer(sz int) *bytes.Buffer {
	b := new(bytes.Buffer)
	b.Grow(sz)
	return b
}

type header struct {
	plen uint16 // Overlap with base key.
	klen uint16 // Length of the diff.
	vlen uint32 // Length of value.
}

// Encode encodes the header.
func (h header) Encode(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], h.plen)
	binary.BigEndian.PutUint16(b[2:4], h.klen)
	binary.BigEndian.PutUint32(b[4:8], h.vlen)
}

// Decode decodes the header.
func (h *header) Decode(buf []byte) int {
	h.plen = binary.BigEndian.Uint16(buf[0:2])
	h.klen = binary.BigEndian.Uint16(buf[2:4])
	h.vlen = binary.BigEndian.Uint32(buf[4:8])
	return headerSize
}

type blockOffset struct {
	baseKey []byte
	offset  uint32
	len     uint32
	entries uint32
}

// Builder is used in building a table.
type Builder struct {
	opt Options

	// Typically tens or hundreds of meg. This is for one single file.
	buf *bytes.Buffer
	// Raw contents of the block being filled.
	block *bytes.Buffer

	baseKey      []byte   // Base key for the current block.
	lastKey      []byte   // Last key added to the table.
	entryOffsets []uint32 // Offsets of entries in the current block.

	offsets  []blockOffset
	keyCount uint64
	smallest []byte
	biggest  []byte
	compBuf  []byte
}

// NewTableBuilder makes a new TableBuilder.
func NewTableBuilder(opt Options) *Builder {
	if opt.BlockSize <= 0 {
		opt.BlockSize = 4 * 1024
	}
	return &Builder{
		opt:   opt,
		buf:   newBuffer(1 << 20),
		block: newBuffer(opt.BlockSize + opt.BlockSize/4),
	}
}

// Close closes the TableBuilder.
func (b *Builder) Close() {}

// Empty returns whether it's empty.
func (b *Builder) Empty() bool { return b.keyCount == 0 }

// KeyCount returns the number of entries added so far.
func (b *Builder) KeyCount() uint64 { return b.keyCount }

// keyDiff returns a suffix of newKey that is different from b.baseKey.
func (b *Builder) keyDiff(newKey []byte) []byte {
	var i int
	for i = 0; i < len(newKey) && i < len(b.baseKey); i++ {
		if newKey[i] != b.baseKey[i] {
			break
		}
	}
	return newKey[i:]
}

func (b *Builder) addHelper(key, value []byte) {
	// diffKey stores the difference of key with baseKey.
	var diffKey []byte
	if len(b.entryOffsets) == 0 {
		// Make a copy. Builder should not keep references. Otherwise, caller has to be very careful
		// and will have to make copies of keys every time they add to builder, which is even worse.
		b.baseKey = append(b.baseKey[:0], key...)
		diffKey = key
	} else {
		diffKey = b.keyDiff(key)
	}

	h := header{
		plen: uint16(len(key) - len(diffKey)),
		klen: uint16(len(diffKey)),
		vlen: uint32(len(value)),
	}
	b.entryOffsets = append(b.entryOffsets, uint32(b.block.Len()))

	// Layout: header, diffKey, value.
	var hbuf [headerSize]byte
	h.Encode(hbuf[:])
	b.block.Write(hbuf[:])
	b.block.Write(diffKey) // We only need to store the key difference.
	b.block.Write(value)
}

// Add adds a key-value pair to the table. Keys must be added in ascending
// order of opt.Compare; equal keys are kept.
func (b *Builder) Add(key, value []byte) error {
	if len(key) > math.MaxUint16 {
		return errors.Wrapf(ErrKeyTooLarge, "key of %d bytes", len(key))
	}
	if b.keyCount > 0 && b.opt.compare()(b.lastKey, key) > 0 {
		return errors.Wrapf(ErrOutOfOrder, "%q added after %q", key, b.lastKey)
	}
	if b.shouldFinishBlock(key, value) {
		if err := b.finishBlock(); err != nil {
			return err
		}
	}
	b.addHelper(key, value)
	if b.keyCount == 0 {
		b.smallest = y.Copy(key)
	}
	b.lastKey = y.SafeCopy(b.lastKey, key)
	b.keyCount++
	return nil
}

func (b *Builder) shouldFinishBlock(key, value []byte) bool {
	if len(b.entryOffsets) == 0 {
		return false
	}
	// Entry offsets and their count are appended at the end of the block.
	entries := len(b.entryOffsets) + 1
	estimate := b.block.Len() + headerSize + len(key) + len(value) + 4*entries + 4
	return estimate > b.opt.BlockSize
}

// finishBlock seals the current block: appends the entry offsets, compresses
// it and writes it followed by its checksum.
func (b *Builder) finishBlock() error {
	if len(b.entryOffsets) == 0 {
		return nil
	}
	var tmp [4]byte
	for _, off := range b.entryOffsets {
		binary.BigEndian.PutUint32(tmp[:], off)
		b.block.Write(tmp[:])
	}
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b.entryOffsets)))
	b.block.Write(tmp[:])

	data, err := b.compressData(b.block.Bytes())
	if err != nil {
		return errors.Wrapf(err, "while compressing block %d", len(b.offsets))
	}
	start := b.buf.Len()
	b.buf.Write(data)

	var cs [checksumSize]byte
	binary.BigEndian.PutUint64(cs[:], y.CalculateChecksum(data, y.XXHash64))
	b.buf.Write(cs[:])

	b.offsets = append(b.offsets, blockOffset{
		baseKey: y.Copy(b.baseKey),
		offset:  uint32(start),
		len:     uint32(b.buf.Len() - start),
		entries: uint32(len(b.entryOffsets)),
	})
	b.biggest = y.SafeCopy(b.biggest, b.lastKey)

	b.block.Reset()
	b.entryOffsets = b.entryOffsets[:0]
	b.baseKey = b.baseKey[:0]
	return nil
}

// compressData compresses the given data.
func (b *Builder) compressData(data []byte) ([]byte, error) {
	switch b.opt.Compression {
	case options.None:
		return data, nil
	case options.Snappy:
		b.compBuf = y.SnappyCompress(b.compBuf[:cap(b.compBuf)], data)
		return b.compBuf, nil
	case options.ZSTD:
		var err error
		b.compBuf, err = y.ZSTDCompress(b.compBuf, data, b.opt.ZSTDCompressionLevel)
		return b.compBuf, err
	}
	return nil, errors.New("Unsupported compression type")
}

// ReachedCapacity returns true if the estimated final size exceeds cap.
func (b *Builder) ReachedCapacity(cap int64) bool {
	estimateSz := b.buf.Len() + b.block.Len() + footerSize +
		len(b.offsets)*(len(b.baseKey)+12) /* approximate index size */
	return int64(estimateSz) > cap
}

// blockIndex generates the index for the table.
func (b *Builder) blockIndex() []byte {
	var out []byte
	putBytes := func(v []byte) {
		out = binary.AppendUvarint(out, uint64(len(v)))
		out = append(out, v...)
	}
	out = binary.AppendUvarint(out, uint64(b.opt.Compression))
	out = binary.AppendUvarint(out, b.keyCount)
	putBytes(b.smallest)
	putBytes(b.biggest)
	out = binary.AppendUvarint(out, uint64(len(b.offsets)))
	for _, bo := range b.offsets {
		putBytes(bo.baseKey)
		out = binary.AppendUvarint(out, uint64(bo.offset))
		out = binary.AppendUvarint(out, uint64(bo.len))
		out = binary.AppendUvarint(out, uint64(bo.entries))
	}
	return out
}

// Finish finishes the table by appending the index and the footer, and
// returns the encoded table.
func (b *Builder) Finish() ([]byte, error) {
	if err := b.finishBlock(); err != nil {
		return nil, err
	}

	index := b.blockIndex()
	y.AssertTrue(len(index) < math.MaxUint32)
	b.buf.Write(index)

	var footer [footerSize]byte
	binary.BigEndian.PutUint32(footer[0:4], uint32(len(index)))
	binary.BigEndian.PutUint32(footer[4:8], uint32(y.CalculateChecksum(index, y.CRC32C)))
	binary.BigEndian.PutUint64(footer[8:16], magic)
	b.buf.Write(footer[:])
	return b.buf.Bytes(), nil
}
