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

package plr

import (
	"github.com/dgraph-io/lmerge/y"
)

// Train fits segments over keys, which must be in ascending order. The rank
// of keys[i] is i. Consecutive keys with the same integer projection are fed
// once, at the rank of their first occurrence.
func Train(keys [][]byte, gamma float64) []Segment {
	b := NewGreedyPLR(gamma)
	var segs []Segment
	var prev uint64
	for i, key := range keys {
		x := y.KeyToUint64(key)
		if i > 0 && x == prev {
			continue
		}
		prev = x
		if seg, ok := b.Process(Point{X: float64(x), Y: float64(i)}); ok {
			segs = append(segs, seg)
		}
	}
	if seg, ok := b.Finish(); ok {
		segs = append(segs, seg)
	}
	return segs
}

// TrainPoints is Train over already projected points.
func TrainPoints(pts []Point, gamma float64) []Segment {
	b := NewGreedyPLR(gamma)
	var segs []Segment
	for _, pt := range pts {
		if seg, ok := b.Process(pt); ok {
			segs = append(segs, seg)
		}
	}
	if seg, ok := b.Finish(); ok {
		segs = append(segs, seg)
	}
	return segs
}
