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
	"hash/crc32"

	"github.com/cespare/xxhash"
)

// ChecksumAlgorithm selects how blocks and indexes are checksummed.
type ChecksumAlgorithm uint8

const (
	// CRC32C uses the Castagnoli polynomial.
	CRC32C ChecksumAlgorithm = iota
	// XXHash64 uses xxhash.
	XXHash64
)

// CalculateChecksum calculates checksum for data using ct checksum type.
func CalculateChecksum(data []byte, ct ChecksumAlgorithm) uint64 {
	switch ct {
	case CRC32C:
		return uint64(crc32.Checksum(data, CastagnoliCrcTable))
	case XXHash64:
		return xxhash.Sum64(data)
	default:
		panic("checksum type not supported")
	}
}

// VerifyChecksum validates the checksum for the data against the given expected checksum.
func VerifyChecksum(data []byte, ct ChecksumAlgorithm, expected uint64) error {
	actual := CalculateChecksum(data, ct)
	if actual != expected {
		return Wrapf(ErrChecksumMismatch, "actual: %d, expected: %d", actual, expected)
	}
	return nil
}
