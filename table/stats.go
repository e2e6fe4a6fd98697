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
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dgraph-io/lmerge/y"
)

// MergeStats describes the work done by a merge. Counters accumulate across
// SeekToFirst calls on the same iterator.
type MergeStats struct {
	// TotalItems is the number of entries the merge has emitted.
	TotalItems int64
	// BaselineComparisons counts key comparisons made by the baseline merge.
	BaselineComparisons int64
	// LearnedComparisons counts key comparisons made by the learned merge
	// while picking the leading input.
	LearnedComparisons int64
	// Corrections counts the steps taken to turn model predictions into
	// exact positions.
	Corrections int64
	// OracleSavings counts comparisons the baseline avoided by skipping
	// ahead inside a known range.
	OracleSavings int64
	// Segments is the total number of trained segments over all inputs.
	Segments int
	// NumInputs is the number of merged inputs.
	NumInputs int
}

func (s MergeStats) String() string {
	return fmt.Sprintf("items: %s, inputs: %d, segments: %s, baseline comparisons: %s, "+
		"learned comparisons: %s, corrections: %s",
		humanize.Comma(s.TotalItems), s.NumInputs, humanize.Comma(int64(s.Segments)),
		humanize.Comma(s.BaselineComparisons), humanize.Comma(s.LearnedComparisons),
		humanize.Comma(s.Corrections))
}

// StatsReporter is implemented by merge iterators that keep statistics.
type StatsReporter interface {
	Stats() MergeStats
}

// StatsOf returns the statistics of it, if it keeps any.
func StatsOf(it y.Iterator) (MergeStats, bool) {
	if r, ok := it.(StatsReporter); ok {
		return r.Stats(), true
	}
	return MergeStats{}, false
}
