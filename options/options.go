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

// Package options holds the enumerated settings shared by run files and the
// merge driver. They live here to avoid namespace pollution of the lmerge
// API.
package options

import (
	"strings"

	"github.com/pkg/errors"
)

// FileLoadingMode specifies how data in run files is loaded.
type FileLoadingMode int

const (
	// FileIO indicates that files must be loaded using standard I/O.
	FileIO FileLoadingMode = iota
	// MemoryMap indicates that the file must be memory-mapped.
	MemoryMap
)

func (m FileLoadingMode) String() string {
	switch m {
	case FileIO:
		return "fileio"
	case MemoryMap:
		return "mmap"
	}
	return "unknown"
}

// CompressionType specifies how a block should be compressed.
type CompressionType uint32

const (
	// None mode indicates that a block is not compressed.
	None CompressionType = 0
	// Snappy mode indicates that a block is compressed using Snappy algorithm.
	Snappy CompressionType = 1
	// ZSTD mode indicates that a block is compressed using ZSTD algorithm.
	ZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case ZSTD:
		return "zstd"
	}
	return "unknown"
}

// ChecksumVerificationMode tells when block checksums are verified.
type ChecksumVerificationMode int

const (
	// NoVerification indicates checksums are never verified.
	NoVerification ChecksumVerificationMode = iota
	// OnTableRead indicates every block is verified once, when the table is
	// opened.
	OnTableRead
	// OnBlockRead indicates a block is verified every time it is decoded.
	OnBlockRead
	// OnTableAndBlockRead is OnTableRead plus OnBlockRead.
	OnTableAndBlockRead
)

func (m ChecksumVerificationMode) String() string {
	switch m {
	case NoVerification:
		return "none"
	case OnTableRead:
		return "table"
	case OnBlockRead:
		return "block"
	case OnTableAndBlockRead:
		return "table-and-block"
	}
	return "unknown"
}

// ParseCompression parses the names printed by CompressionType.String.
func ParseCompression(s string) (CompressionType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return ZSTD, nil
	}
	return None, errors.Errorf("unknown compression %q", s)
}

// ParseLoadingMode parses the names printed by FileLoadingMode.String.
func ParseLoadingMode(s string) (FileLoadingMode, error) {
	switch strings.ToLower(s) {
	case "", "fileio":
		return FileIO, nil
	case "mmap", "memorymap":
		return MemoryMap, nil
	}
	return FileIO, errors.Errorf("unknown loading mode %q", s)
}

// ParseChecksumVerification parses the names printed by
// ChecksumVerificationMode.String.
func ParseChecksumVerification(s string) (ChecksumVerificationMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return NoVerification, nil
	case "table":
		return OnTableRead, nil
	case "block":
		return OnBlockRead, nil
	case "table-and-block":
		return OnTableAndBlockRead, nil
	}
	return NoVerification, errors.Errorf("unknown checksum verification mode %q", s)
}
