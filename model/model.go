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

// Package model holds the immutable per-run snapshot used by the learned
// merge: the run's keys plus the segments trained over them.
package model

import (
	"math"
	"sort"

	"github.com/dgraph-io/lmerge/plr"
	"github.com/dgraph-io/lmerge/y"
)

// Run is a trained snapshot of one sorted run. It is never mutated after
// NewRun returns.
type Run struct {
	keys     [][]byte
	segments []plr.Segment
	minKey   uint64
	maxKey   uint64
	gamma    float64
}

// NewRun trains a model over keys, which must be sorted ascending and may
// contain duplicates. keys is retained, callers must not modify it.
func NewRun(keys [][]byte, gamma float64) *Run {
	r := &Run{
		keys:     keys,
		segments: plr.Train(keys, gamma),
		gamma:    gamma,
	}
	if len(keys) > 0 {
		r.minKey = y.KeyToUint64(keys[0])
		r.maxKey = y.KeyToUint64(keys[len(keys)-1])
	}
	return r
}

// Len returns the number of keys in the run, duplicates included.
func (r *Run) Len() int { return len(r.keys) }

// Key returns the key at rank i.
func (r *Run) Key(i int) []byte { return r.keys[i] }

// Segments returns the trained segments in ascending StartKey order.
func (r *Run) Segments() []plr.Segment { return r.segments }

// Gamma returns the error bound the run was trained with.
func (r *Run) Gamma() float64 { return r.gamma }

// Predict returns the approximate rank of target, clamped to [0, Len()-1].
// Targets beyond the run's largest key predict Len() and targets below its
// smallest key predict 0.
func (r *Run) Predict(target []byte) int {
	n := len(r.keys)
	if n == 0 {
		return 0
	}
	x := y.KeyToUint64(target)
	if x > r.maxKey {
		return n
	}
	if x < r.minKey {
		return 0
	}
	seg := r.segmentFor(x)
	p := math.Floor(seg.Predict(float64(x)))
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > float64(n-1):
		return n - 1
	}
	return int(p)
}

func (r *Run) segmentFor(x uint64) plr.Segment {
	i := sort.Search(len(r.segments), func(i int) bool {
		return r.segments[i].StartKey > x
	})
	if i > 0 {
		i--
	}
	return r.segments[i]
}

// Locate returns the first rank whose key is not less than target, starting
// from the model's prediction and walking in either direction. corrections
// counts the steps walked. The walk also settles equal keys, so the result is
// exact even when the prediction lands inside a run of duplicates.
func (r *Run) Locate(target []byte, cmp y.Compare) (pos, corrections int) {
	n := len(r.keys)
	pos = r.Predict(target)
	for pos > 0 && cmp(r.keys[pos-1], target) >= 0 {
		pos--
		corrections++
	}
	for pos < n && cmp(r.keys[pos], target) < 0 {
		pos++
		corrections++
	}
	return pos, corrections
}

// MaxTrainingError returns the largest distance between a key's rank and
// the model's unrounded prediction for it, over the first occurrence of
// every distinct projected key.
func (r *Run) MaxTrainingError() float64 {
	var worst float64
	var prev uint64
	for i, k := range r.keys {
		x := y.KeyToUint64(k)
		if i > 0 && x == prev {
			continue
		}
		prev = x
		d := math.Abs(r.segmentFor(x).Predict(float64(x)) - float64(i))
		if d > worst {
			worst = d
		}
	}
	return worst
}

// MeanAbsError returns the mean distance between every key's rank,
// duplicates included, and the clamped prediction for it.
func (r *Run) MeanAbsError() float64 {
	if len(r.keys) == 0 {
		return 0
	}
	var sum float64
	for i, k := range r.keys {
		sum += math.Abs(float64(r.Predict(k) - i))
	}
	return sum / float64(len(r.keys))
}
