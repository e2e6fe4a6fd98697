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

import "strconv"

// KeyToUint64 projects a key onto the integer domain used by the learned
// models. It reads the ASCII decimal digit prefix of key and stops at the
// first byte that is not a digit, so "00000042" is 42, "12a34" is 12 and an
// empty key (or one starting with a non-digit) is 0. There is no overflow
// detection.
//
// The projection only preserves order for fixed-width, zero-padded numeric
// keys, for which byte order and numeric order coincide.
func KeyToUint64(key []byte) uint64 {
	var num uint64
	for _, c := range key {
		if c < '0' || c > '9' {
			break
		}
		num = num*10 + uint64(c-'0')
	}
	return num
}

// FixedWidthKey renders n as a zero-padded decimal key of the given width.
// If n needs more digits than width, the key is longer than width.
func FixedWidthKey(n uint64, width int) []byte {
	digits := strconv.AppendUint(nil, n, 10)
	if len(digits) >= width {
		return digits
	}
	key := make([]byte, width)
	pad := width - len(digits)
	for i := 0; i < pad; i++ {
		key[i] = '0'
	}
	copy(key[pad:], digits)
	return key
}
