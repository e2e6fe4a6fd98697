/*
 * Copyright (C) 2023 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package y

import (
	"expvar"
)

var (
	// These are cumulative

	// numMerges has cumulative number of merge iterators constructed
	numMerges *expvar.Int
	// numItems has cumulative number of entries seen by learned merges
	numItems *expvar.Int
	// numComparisons has cumulative number of cross-input key comparisons,
	// keyed by "baseline" and "learned"
	numComparisons *expvar.Map
	// numCorrections has cumulative number of correction steps taken after a
	// model prediction
	numCorrections *expvar.Int
	// numSegments has cumulative number of trained segments
	numSegments *expvar.Int
	// numViolations is the number of consistency violations seen by shadow
	// iterators
	numViolations *expvar.Int
)

// These variables are global and have cumulative values for all merges.
func init() {
	numMerges = expvar.NewInt("lmerge_merges_total")
	numItems = expvar.NewInt("lmerge_items_total")
	numComparisons = expvar.NewMap("lmerge_comparisons_total")
	numCorrections = expvar.NewInt("lmerge_corrections_total")
	numSegments = expvar.NewInt("lmerge_segments_total")
	numViolations = expvar.NewInt("lmerge_consistency_violations_total")
}

// NumMergesAdd adds val to the number of constructed merges.
func NumMergesAdd(enabled bool, val int64) {
	addInt(enabled, numMerges, val)
}

// NumItemsAdd adds val to the number of merged items.
func NumItemsAdd(enabled bool, val int64) {
	addInt(enabled, numItems, val)
}

// NumComparisonsAdd adds val to the comparisons of the given merge kind.
func NumComparisonsAdd(enabled bool, kind string, val int64) {
	addToMap(enabled, numComparisons, kind, val)
}

// NumCorrectionsAdd adds val to the correction steps.
func NumCorrectionsAdd(enabled bool, val int64) {
	addInt(enabled, numCorrections, val)
}

// NumSegmentsAdd adds val to the trained segments.
func NumSegmentsAdd(enabled bool, val int64) {
	addInt(enabled, numSegments, val)
}

// NumViolationsAdd adds val to the consistency violations.
func NumViolationsAdd(enabled bool, val int64) {
	addInt(enabled, numViolations, val)
}

func addInt(enabled bool, metric *expvar.Int, val int64) {
	if !enabled {
		return
	}
	metric.Add(val)
}

func addToMap(enabled bool, metric *expvar.Map, key string, val int64) {
	if !enabled {
		return
	}
	metric.Add(key, val)
}
