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
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/y"
)

// ErrCorruptTable is returned when a run file cannot be decoded.
var ErrCorruptTable = errors.New("Table is corrupt")

var nextTableID uint64

// Table represents a loaded run file.
type Table struct {
	opt Options

	fd        *os.File // Own fd. Nil for in-memory tables.
	tableSize int
	id        uint64
	mmap      []byte // Memory mapped, or read fully, or in-memory data.
	mapped    bool

	compression options.CompressionType
	keyCount    uint64
	smallest    []byte
	biggest     []byte
	blocks      []blockOffset
}

type block struct {
	data         []byte // Entries, without the trailer.
	entryOffsets []uint32
	baseKey      []byte
}

func (b *block) size() int64 {
	return int64(len(b.data) + 4*len(b.entryOffsets) + len(b.baseKey))
}

// CreateTable writes the contents of the builder to filename and opens it.
func CreateTable(filename string, builder *Builder) (*Table, error) {
	data, err := builder.Finish()
	if err != nil {
		return nil, err
	}
	fd, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "while creating table: %s", filename)
	}
	if _, err := fd.Write(data); err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "while writing to table: %s", filename)
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "while syncing table: %s", filename)
	}
	if _, err := fd.Seek(0, io.SeekStart); err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "while seeking table: %s", filename)
	}
	return OpenTable(fd, builder.opt)
}

// OpenTable assumes file has only one table and opens it. Takes ownership of
// fd upon function entry. Returns a table with the file open.
func OpenTable(fd *os.File, opts Options) (*Table, error) {
	fileInfo, err := fd.Stat()
	if err != nil {
		// It's OK to ignore fd.Close() errs in this function because we have only read
		// from the file.
		_ = fd.Close()
		return nil, y.Wrap(err, "")
	}

	t := &Table{
		opt:       opts,
		fd:        fd,
		tableSize: int(fileInfo.Size()),
		id:        atomic.AddUint64(&nextTableID, 1),
	}

	switch opts.LoadingMode {
	case options.MemoryMap:
		t.mmap, err = mmap(fd, fileInfo.Size())
		if err != nil {
			_ = fd.Close()
			return nil, y.Wrapf(err, "Unable to map file: %q", fileInfo.Name())
		}
		t.mapped = true
	case options.FileIO:
		t.mmap = make([]byte, t.tableSize)
		if _, err := io.ReadFull(io.NewSectionReader(fd, 0, int64(t.tableSize)), t.mmap); err != nil {
			_ = fd.Close()
			return nil, y.Wrapf(err, "Unable to read file: %q", fileInfo.Name())
		}
	default:
		_ = fd.Close()
		return nil, errors.Errorf("Invalid loading mode: %v", opts.LoadingMode)
	}

	if err := t.initIndex(); err != nil {
		_ = t.Close()
		return nil, y.Wrapf(err, "failed to read index of %s", fd.Name())
	}
	if opts.ChkMode == options.OnTableRead || opts.ChkMode == options.OnTableAndBlockRead {
		if err := t.VerifyChecksum(); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}

// OpenInMemoryTable is similar to OpenTable but it opens a new table from
// the provided data, as returned by Builder.Finish.
func OpenInMemoryTable(data []byte, opts Options) (*Table, error) {
	t := &Table{
		opt:       opts,
		tableSize: len(data),
		mmap:      data,
		id:        atomic.AddUint64(&nextTableID, 1),
	}
	if err := t.initIndex(); err != nil {
		return nil, y.Wrap(err, "failed to read index of in-memory table")
	}
	return t, nil
}

func (t *Table) initIndex() error {
	if t.tableSize < footerSize {
		return errors.Wrapf(ErrCorruptTable, "size %d is smaller than the footer", t.tableSize)
	}
	footer := t.mmap[t.tableSize-footerSize:]
	if got := binary.BigEndian.Uint64(footer[8:16]); got != magic {
		return errors.Wrapf(ErrCorruptTable, "bad magic %#x", got)
	}
	indexLen := int(binary.BigEndian.Uint32(footer[0:4]))
	indexStart := t.tableSize - footerSize - indexLen
	if indexStart < 0 {
		return errors.Wrapf(ErrCorruptTable, "index length %d", indexLen)
	}
	index := t.mmap[indexStart : indexStart+indexLen]
	expected := uint64(binary.BigEndian.Uint32(footer[4:8]))
	if err := y.VerifyChecksum(index, y.CRC32C, expected); err != nil {
		return y.Wrapf(err, "failed to verify checksum for table index")
	}
	return t.decodeIndex(index, indexStart)
}

func (t *Table) decodeIndex(buf []byte, limit int) error {
	var err error
	uvarint := func() uint64 {
		if err != nil {
			return 0
		}
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			err = errors.Wrap(ErrCorruptTable, "bad varint in index")
			return 0
		}
		buf = buf[n:]
		return v
	}
	bytesField := func() []byte {
		l := uvarint()
		if err != nil {
			return nil
		}
		if uint64(len(buf)) < l {
			err = errors.Wrap(ErrCorruptTable, "short index")
			return nil
		}
		out := buf[:l]
		buf = buf[l:]
		return out
	}

	t.compression = options.CompressionType(uvarint())
	t.keyCount = uvarint()
	t.smallest = bytesField()
	t.biggest = bytesField()
	n := uvarint()
	if err == nil && n > uint64(limit) {
		return errors.Wrapf(ErrCorruptTable, "%d blocks", n)
	}
	for i := uint64(0); i < n && err == nil; i++ {
		bo := blockOffset{baseKey: bytesField()}
		bo.offset = uint32(uvarint())
		bo.len = uint32(uvarint())
		bo.entries = uint32(uvarint())
		if err == nil && (int(bo.offset)+int(bo.len) > limit || bo.len < checksumSize) {
			err = errors.Wrapf(ErrCorruptTable, "block %d out of bounds", i)
		}
		t.blocks = append(t.blocks, bo)
	}
	return err
}

// VerifyChecksum verifies checksum for all blocks of table.
func (t *Table) VerifyChecksum() error {
	for i := range t.blocks {
		if _, err := t.block(i, true); err != nil {
			return y.Wrapf(err, "checksum validation failed for table: %s, block: %d",
				t.Filename(), i)
		}
	}
	return nil
}

func (t *Table) blockCacheKey(idx int) uint64 {
	y.AssertTrue(idx < 1<<32)
	return t.id<<32 | uint64(idx)
}

func (t *Table) block(idx int, verify bool) (*block, error) {
	y.AssertTruef(idx >= 0, "idx=%d", idx)
	if idx >= len(t.blocks) {
		return nil, errors.New("block out of index")
	}
	if t.opt.BlockCache != nil && !verify {
		if blk, ok := t.opt.BlockCache.Get(t.blockCacheKey(idx)); ok && blk != nil {
			return blk.(*block), nil
		}
	}

	bo := t.blocks[idx]
	raw := t.mmap[bo.offset : bo.offset+bo.len]
	data := raw[:len(raw)-checksumSize]
	if verify || t.opt.ChkMode == options.OnBlockRead || t.opt.ChkMode == options.OnTableAndBlockRead {
		expected := binary.BigEndian.Uint64(raw[len(raw)-checksumSize:])
		if err := y.VerifyChecksum(data, y.XXHash64, expected); err != nil {
			return nil, err
		}
	}

	var err error
	if data, err = t.decompress(data); err != nil {
		return nil, y.Wrapf(err, "failed to decode compressed data in file: %s at offset: %d",
			t.Filename(), bo.offset)
	}

	if len(data) < 4 {
		return nil, errors.Wrapf(ErrCorruptTable, "block %d too short", idx)
	}
	numEntries := int(binary.BigEndian.Uint32(data[len(data)-4:]))
	trailer := len(data) - 4 - 4*numEntries
	if trailer < 0 || numEntries == 0 {
		return nil, errors.Wrapf(ErrCorruptTable, "block %d has %d entries", idx, numEntries)
	}
	blk := &block{
		data:         data[:trailer],
		entryOffsets: make([]uint32, numEntries),
	}
	for i := range blk.entryOffsets {
		blk.entryOffsets[i] = binary.BigEndian.Uint32(data[trailer+4*i:])
	}
	blk.baseKey = bo.baseKey

	if t.opt.BlockCache != nil {
		t.opt.BlockCache.Set(t.blockCacheKey(idx), blk, blk.size())
	}
	return blk, nil
}

func (t *Table) decompress(data []byte) ([]byte, error) {
	switch t.compression {
	case options.None:
		return data, nil
	case options.Snappy:
		return y.SnappyDecompress(nil, data)
	case options.ZSTD:
		return y.ZSTDDecompress(nil, data)
	}
	return nil, errors.Errorf("Unsupported compression type %d", t.compression)
}

// KeyCount returns the number of entries in the table.
func (t *Table) KeyCount() uint64 { return t.keyCount }

// Smallest is its smallest key, or nil if there are none.
func (t *Table) Smallest() []byte { return t.smallest }

// Biggest is its biggest key, or nil if there are none.
func (t *Table) Biggest() []byte { return t.biggest }

// Size is its file size in bytes.
func (t *Table) Size() int64 { return int64(t.tableSize) }

// ID is the table's process-unique id.
func (t *Table) ID() uint64 { return t.id }

// NumBlocks returns the number of blocks in the table.
func (t *Table) NumBlocks() int { return len(t.blocks) }

// Compression returns the compression the table was written with.
func (t *Table) Compression() options.CompressionType { return t.compression }

// Filename is NOT the file name. Just kidding, it is.
func (t *Table) Filename() string {
	if t.fd == nil {
		return fmt.Sprintf("<in-memory %d>", t.id)
	}
	return t.fd.Name()
}

// Close unmaps and closes the underlying file, if any.
func (t *Table) Close() error {
	if t.fd == nil {
		return nil
	}
	if t.mapped {
		if err := munmap(t.mmap); err != nil {
			return err
		}
		t.mmap = nil
	}
	return t.fd.Close()
}
