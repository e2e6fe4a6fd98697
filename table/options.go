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
	"github.com/dgraph-io/ristretto"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/y"
)

// Options contains configurable options for Table/Builder and for the merge
// iterators built on top of them.
type Options struct {
	// Options for opening/building tables.

	// BlockSize is the size of each block inside the run file in bytes.
	BlockSize int
	// Compression indicates the compression algorithm used for block compression.
	Compression options.CompressionType
	// ZSTDCompressionLevel is the ZSTD compression level used for compressing blocks.
	ZSTDCompressionLevel int
	// ChkMode is the checksum verification mode for Table.
	ChkMode options.ChecksumVerificationMode
	// LoadingMode tells how run files are read.
	LoadingMode options.FileLoadingMode
	// BlockCache caches decoded blocks. May be nil.
	BlockCache *ristretto.Cache

	// Options for merging.

	// Gamma is the error bound of the learned model.
	Gamma float64
	// Compare orders keys. Nil means bytewise order.
	Compare y.Compare
	// Logger receives diagnostics. Nil means no logging.
	Logger y.Logger
	// MetricsEnabled turns on expvar accounting.
	MetricsEnabled bool
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		BlockSize:            4 * 1024,
		Compression:          options.Snappy,
		ZSTDCompressionLevel: 1,
		ChkMode:              options.OnBlockRead,
		LoadingMode:          options.MemoryMap,
		Gamma:                10,
		Compare:              y.DefaultCompare,
		Logger:               y.NopLogger,
	}
}

func (opt Options) compare() y.Compare {
	if opt.Compare == nil {
		return y.DefaultCompare
	}
	return opt.Compare
}

func (opt Options) logger() y.Logger {
	if opt.Logger == nil {
		return y.NopLogger
	}
	return opt.Logger
}
