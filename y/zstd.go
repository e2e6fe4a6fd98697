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

package y

import (
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdDec *zstd.Decoder

	zstdDecOnce sync.Once

	zstdEncMu sync.Mutex
	zstdEncs  = make(map[int]*zstd.Encoder)
)

// ZSTDDecompress decompresses a block using ZSTD algorithm.
func ZSTDDecompress(dst, src []byte) ([]byte, error) {
	var err error
	zstdDecOnce.Do(func() {
		zstdDec, err = zstd.NewReader(nil)
		AssertTrue(err == nil)
	})
	return zstdDec.DecodeAll(src, dst[:0])
}

// ZSTDCompress compresses a block using ZSTD algorithm. One encoder is kept
// per compression level.
func ZSTDCompress(dst, src []byte, level int) ([]byte, error) {
	zstdEncMu.Lock()
	enc, ok := zstdEncs[level]
	if !ok {
		var err error
		enc, err = zstd.NewWriter(
			nil, zstd.WithZeroFrames(true),
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderCRC(false))
		if err != nil {
			zstdEncMu.Unlock()
			return nil, Wrapf(err, "while creating zstd encoder at level %d", level)
		}
		zstdEncs[level] = enc
	}
	zstdEncMu.Unlock()
	return enc.EncodeAll(src, dst[:0]), nil
}

// SnappyCompress compresses a block using Snappy.
func SnappyCompress(dst, src []byte) []byte {
	return snappy.Encode(dst, src)
}

// SnappyDecompress decompresses a Snappy block.
func SnappyDecompress(dst, src []byte) ([]byte, error) {
	out, err := snappy.Decode(dst, src)
	return out, Wrap(err, "while decoding snappy block")
}
